// Package execution holds the background worker that drives sticker
// generation jobs through the usage gate.
package execution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/snapsticker/backend/internal/apperr"
	"github.com/snapsticker/backend/internal/generation"
)

// GenerateStickerJobArgs is the queued payload for one generation request.
type GenerateStickerJobArgs struct {
	StickerID   uuid.UUID `json:"sticker_id"`
	UserID      uuid.UUID `json:"user_id"`
	Image       []byte    `json:"image"`
	StylePrompt string    `json:"style_prompt"`
}

func (GenerateStickerJobArgs) Kind() string { return "generate_sticker" }

// UsageGate is the generation contract the worker needs.
type UsageGate interface {
	Generate(ctx context.Context, userID uuid.UUID, image []byte, stylePrompt string) (*generation.Result, error)
}

// StickerStore is how the worker reports the job outcome.
type StickerStore interface {
	MarkCompleted(ctx context.Context, id uuid.UUID, artifactIDs []uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type GenerateStickerWorker struct {
	river.WorkerDefaults[GenerateStickerJobArgs]
	gate     UsageGate
	stickers StickerStore
	log      *slog.Logger
}

func NewGenerateStickerWorker(gate UsageGate, stickers StickerStore, log *slog.Logger) *GenerateStickerWorker {
	if log == nil {
		log = slog.Default()
	}
	return &GenerateStickerWorker{gate: gate, stickers: stickers, log: log}
}

// Work runs one generation. The gate already retries transient model
// failures with backoff, so a gate failure is final for this job: record it
// and consume the job rather than letting the queue retry on top.
func (w *GenerateStickerWorker) Work(ctx context.Context, job *river.Job[GenerateStickerJobArgs]) error {
	args := job.Args

	result, err := w.gate.Generate(ctx, args.UserID, args.Image, args.StylePrompt)
	if err != nil {
		classified := apperr.Classify(err)
		reason := fmt.Sprintf("%s: %s", classified.Code, classified.Message)
		if markErr := w.stickers.MarkFailed(ctx, args.StickerID, reason); markErr != nil {
			return fmt.Errorf("generation failed (%s) AND failed to mark sticker: %w", reason, markErr)
		}
		w.log.Warn("sticker generation failed", "sticker_id", args.StickerID, "code", classified.Code)
		return nil
	}

	ids := make([]uuid.UUID, len(result.Stickers))
	for i, s := range result.Stickers {
		ids[i] = s.ID
	}
	if err := w.stickers.MarkCompleted(ctx, args.StickerID, ids); err != nil {
		return fmt.Errorf("failed to mark sticker completed: %w", err)
	}
	return nil
}
