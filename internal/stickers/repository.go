package stickers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapsticker/backend/internal/models"
)

// ErrNotFound is returned for an unknown sticker id.
var ErrNotFound = errors.New("sticker not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts the sticker row inside the given transaction, so the row
// and its queue job commit or roll back together.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, s *models.Sticker) error {
	return tx.QueryRow(ctx, `
		INSERT INTO stickers (id, user_id, style_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, s.ID, s.UserID, s.StyleID, s.Status).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Sticker, error) {
	var s models.Sticker
	var related []string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, style_id, status, artifact_ids, fail_reason, created_at, updated_at
		FROM stickers WHERE id = $1
	`, id).Scan(&s.ID, &s.UserID, &s.StyleID, &s.Status, &related, &s.FailReason, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.ArtifactIDs, err = parseUUIDs(related)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Sticker, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, style_id, status, artifact_ids, fail_reason, created_at, updated_at
		FROM stickers WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Sticker
	for rows.Next() {
		var s models.Sticker
		var related []string
		if err := rows.Scan(&s.ID, &s.UserID, &s.StyleID, &s.Status, &related, &s.FailReason, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.ArtifactIDs, err = parseUUIDs(related)
		if err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, artifactIDs []uuid.UUID) error {
	ss := make([]string, len(artifactIDs))
	for i, a := range artifactIDs {
		ss[i] = a.String()
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE stickers SET status = $2, artifact_ids = $3, updated_at = now() WHERE id = $1
	`, id, models.StickerCompleted, ss)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE stickers SET status = $2, fail_reason = $3, updated_at = now() WHERE id = $1
	`, id, models.StickerFailed, reason)
	return err
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
