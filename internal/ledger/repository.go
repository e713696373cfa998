package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapsticker/backend/internal/models"
)

// Repository is the PostgreSQL-backed Store. The debit path relies on a
// conditional UPDATE (WHERE credit_balance >= amount) so the check and the
// decrement are a single atomic statement; concurrent debits for the same
// user serialize on the row and can never both pass a balance that covers
// only one of them.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) CreateUser(ctx context.Context, u *models.User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, credit_balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreditBalance).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, credit_balance, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreditBalance, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `SELECT credit_balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return balance, nil
}

// ApplyDebit decrements the balance and inserts the history entry in one
// database transaction. The conditional UPDATE leaves the row untouched when
// the balance is short, in which case no entry is written either.
func (r *Repository) ApplyDebit(ctx context.Context, entry *models.CreditTransaction) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var newBalance int
	err = tx.QueryRow(ctx, `
		UPDATE users SET credit_balance = credit_balance - $1, updated_at = now()
		WHERE id = $2 AND credit_balance >= $1
		RETURNING credit_balance
	`, entry.Amount, entry.UserID).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing user from a short balance.
			var one int
			if checkErr := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, entry.UserID).Scan(&one); checkErr != nil {
				if errors.Is(checkErr, pgx.ErrNoRows) {
					return 0, ErrUserNotFound
				}
				return 0, checkErr
			}
			return 0, ErrInsufficientCredits
		}
		return 0, err
	}

	entry.BalanceAfter = newBalance
	if err := insertEntry(ctx, tx, entry); err != nil {
		return 0, err
	}
	return newBalance, tx.Commit(ctx)
}

// ApplyCredit increments the balance and inserts the history entry in one
// database transaction.
func (r *Repository) ApplyCredit(ctx context.Context, entry *models.CreditTransaction) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var newBalance int
	err = tx.QueryRow(ctx, `
		UPDATE users SET credit_balance = credit_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING credit_balance
	`, entry.Amount, entry.UserID).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	entry.BalanceAfter = newBalance
	if err := insertEntry(ctx, tx, entry); err != nil {
		return 0, err
	}
	return newBalance, tx.Commit(ctx)
}

func (r *Repository) Entries(ctx context.Context, userID uuid.UUID) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, user_id, tx_type, amount, description, related_ids, balance_after, created_at
		FROM credit_transactions WHERE user_id = $1 ORDER BY created_at ASC, seq ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		var related []string
		if err := rows.Scan(&t.ID, &t.Seq, &t.UserID, &t.Type, &t.Amount, &t.Description, &related, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.RelatedIDs, err = parseUUIDs(related)
		if err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

func insertEntry(ctx context.Context, tx pgx.Tx, entry *models.CreditTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, user_id, tx_type, amount, description, related_ids, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at
	`, entry.ID, entry.UserID, entry.Type, entry.Amount, entry.Description,
		uuidStrings(entry.RelatedIDs), entry.BalanceAfter).Scan(&entry.Seq, &entry.CreatedAt)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(ss []string) ([]uuid.UUID, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, len(ss))
	for i, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
