// Package stickers tracks generation requests from submission to completion.
package stickers

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/snapsticker/backend/internal/execution"
	"github.com/snapsticker/backend/internal/models"
)

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, image []byte, styleID, stylePrompt string) (*models.Sticker, error)
	Get(ctx context.Context, userID, stickerID uuid.UUID) (*models.Sticker, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Sticker, error)
}

// InsertGenerateTxFunc enqueues a generation job within the given transaction.
// Provided by main using river.Client.InsertTx.
type InsertGenerateTxFunc func(ctx context.Context, tx pgx.Tx, args execution.GenerateStickerJobArgs) error

type service struct {
	repo           *Repository
	insertGenerate InsertGenerateTxFunc
}

// NewService creates a stickers service. insertGenerate is typically a closure
// over river.Client.InsertTx. Returns *service so it can be used as
// execution.StickerStore for the River worker.
func NewService(repo *Repository, insertGenerate InsertGenerateTxFunc) *service {
	return &service{repo: repo, insertGenerate: insertGenerate}
}

var _ Service = (*service)(nil)
var _ execution.StickerStore = (*service)(nil)

// Create records the sticker as PENDING and enqueues its generation job in
// the same transaction. Either both commit or neither does.
func (s *service) Create(ctx context.Context, userID uuid.UUID, image []byte, styleID, stylePrompt string) (*models.Sticker, error) {
	sticker := &models.Sticker{
		ID:      uuid.New(),
		UserID:  userID,
		StyleID: styleID,
		Status:  models.StickerPending,
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.repo.CreateTx(ctx, tx, sticker); err != nil {
		return nil, err
	}
	if err := s.insertGenerate(ctx, tx, execution.GenerateStickerJobArgs{
		StickerID:   sticker.ID,
		UserID:      userID,
		Image:       image,
		StylePrompt: stylePrompt,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return sticker, nil
}

// Get returns the sticker only to its owner. An unknown id and a foreign id
// both look like ErrNotFound to the caller.
func (s *service) Get(ctx context.Context, userID, stickerID uuid.UUID) (*models.Sticker, error) {
	sticker, err := s.repo.GetByID(ctx, stickerID)
	if err != nil {
		return nil, err
	}
	if sticker.UserID != userID {
		return nil, ErrNotFound
	}
	return sticker, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Sticker, error) {
	return s.repo.ListByUser(ctx, userID)
}

// MarkCompleted implements execution.StickerStore.
func (s *service) MarkCompleted(ctx context.Context, id uuid.UUID, artifactIDs []uuid.UUID) error {
	return s.repo.MarkCompleted(ctx, id, artifactIDs)
}

// MarkFailed implements execution.StickerStore.
func (s *service) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.repo.MarkFailed(ctx, id, reason)
}
