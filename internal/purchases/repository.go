package purchases

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapsticker/backend/internal/models"
)

// Repository is the PostgreSQL-backed transaction-record store. The
// idempotency guarantee rests on ON CONFLICT DO NOTHING: the check for a
// prior transaction id and the write are one statement, so concurrent
// deliveries of the same receipt cannot both insert.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) InsertIfAbsent(ctx context.Context, rec *models.TransactionRecord) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO transaction_records (transaction_id, user_id, product_id, platform, credits_granted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO NOTHING
	`, rec.TransactionID, rec.UserID, rec.ProductID, rec.Platform, rec.CreditsGranted)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *Repository) Find(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := r.pool.QueryRow(ctx, `
		SELECT transaction_id, user_id, product_id, platform, credits_granted, created_at
		FROM transaction_records WHERE transaction_id = $1
	`, transactionID).Scan(&rec.TransactionID, &rec.UserID, &rec.ProductID, &rec.Platform, &rec.CreditsGranted, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &rec, nil
}
