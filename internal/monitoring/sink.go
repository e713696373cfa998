// Package monitoring receives usage and cost telemetry from the generation
// path. It is a fire-and-forget collaborator: sinks must never fail the
// request they observe.
package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// GenerationEvent describes one generation attempt, successful or not.
type GenerationEvent struct {
	UserID       uuid.UUID
	StylePrompt  string
	Success      bool
	CreditsSpent int
	Duration     time.Duration
	ErrorCode    string
}

// Sink consumes telemetry events.
type Sink interface {
	RecordGeneration(ctx context.Context, ev GenerationEvent)
}

// SlogSink writes events to structured logs.
type SlogSink struct {
	log *slog.Logger
}

func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{log: log}
}

func (s *SlogSink) RecordGeneration(_ context.Context, ev GenerationEvent) {
	s.log.Info("generation",
		"user_id", ev.UserID,
		"success", ev.Success,
		"credits_spent", ev.CreditsSpent,
		"duration_ms", ev.Duration.Milliseconds(),
		"error_code", ev.ErrorCode)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordGeneration(context.Context, GenerationEvent) {}
