// Package generation is the usage gate in front of the AI model: it spends
// credits to produce sticker artifacts, and only spends them on success.
package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snapsticker/backend/internal/apperr"
	"github.com/snapsticker/backend/internal/ledger"
	"github.com/snapsticker/backend/internal/models"
	"github.com/snapsticker/backend/internal/monitoring"
	"github.com/snapsticker/backend/internal/retry"
)

// Generator is the AI-generation collaborator. The service treats it as
// opaque and only inspects returned errors for classification.
type Generator interface {
	Predict(ctx context.Context, image []byte, stylePrompt string) ([][]byte, error)
}

// Sticker is one produced artifact with its minted id.
type Sticker struct {
	ID   uuid.UUID `json:"id"`
	Data []byte    `json:"data"`
}

// Result is a successful generation.
type Result struct {
	Stickers     []Sticker `json:"stickers"`
	CreditsSpent int       `json:"credits_spent"`
	NewBalance   int       `json:"new_balance"`
}

type Service struct {
	ledger    ledger.Service
	generator Generator
	sink      monitoring.Sink
	cost      int
	retryOpts retry.Options
	log       *slog.Logger
}

// NewService wires the usage gate. cost is the credit price of one
// generation; retryOpts bounds AI-call retries.
func NewService(ledgerSvc ledger.Service, generator Generator, sink monitoring.Sink, cost int, retryOpts retry.Options, log *slog.Logger) *Service {
	if sink == nil {
		sink = monitoring.NopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cost <= 0 {
		cost = 1
	}
	return &Service{
		ledger:    ledgerSvc,
		generator: generator,
		sink:      sink,
		cost:      cost,
		retryOpts: retryOpts,
		log:       log,
	}
}

// Generate spends credits for one AI generation. The protocol: check the
// balance up front (no external call when it is short), run the model with
// bounded retries, then debit only after a confirmed success. A failed
// generation, content-safety blocks included, never charges the user.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, image []byte, stylePrompt string) (*Result, error) {
	started := time.Now()

	balance, err := s.ledger.CheckBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < s.cost {
		return nil, apperr.New(apperr.CodeInsufficientCredits, "balance too low for generation").
			WithDetails(map[string]any{"required": s.cost, "available": balance})
	}

	opts := s.retryOpts
	opts.RetryIf = aiRetryable
	artifacts, err := retry.Do(ctx, opts, func(ctx context.Context) ([][]byte, error) {
		return s.generator.Predict(ctx, image, stylePrompt)
	})
	if err != nil {
		classified := apperr.Classify(err)
		s.log.Warn("generation failed", "user_id", userID, "code", classified.Code, "error", err)
		s.sink.RecordGeneration(ctx, monitoring.GenerationEvent{
			UserID:      userID,
			StylePrompt: stylePrompt,
			Duration:    time.Since(started),
			ErrorCode:   classified.Code,
		})
		return nil, classified
	}

	stickers := make([]Sticker, len(artifacts))
	relatedIDs := make([]uuid.UUID, len(artifacts))
	for i, data := range artifacts {
		id := uuid.New()
		stickers[i] = Sticker{ID: id, Data: data}
		relatedIDs[i] = id
	}

	newBalance, err := s.ledger.Debit(ctx, userID, s.cost, models.TxConsumption, "sticker generation", relatedIDs)
	if err != nil {
		// The artifact exists but the debit raced a concurrent spend.
		// Surface the error; the artifact is not returned unpaid.
		return nil, err
	}

	s.sink.RecordGeneration(ctx, monitoring.GenerationEvent{
		UserID:       userID,
		StylePrompt:  stylePrompt,
		Success:      true,
		CreditsSpent: s.cost,
		Duration:     time.Since(started),
	})

	return &Result{Stickers: stickers, CreditsSpent: s.cost, NewBalance: newBalance}, nil
}

// aiRetryable retries 5xx and rate-limit signals. Content-safety blocks and
// other 4xx are terminal: retrying a blocked photo wastes quota and will not
// change the model's judgment.
func aiRetryable(err error) bool {
	classified := apperr.Classify(err)
	if classified.Code == apperr.CodeContentBlocked {
		return false
	}
	return classified.Retryable
}
