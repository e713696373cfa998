package models

import (
	"time"

	"github.com/google/uuid"
)

// Sticker generation job states.
const (
	StickerPending   = "PENDING"
	StickerCompleted = "COMPLETED"
	StickerFailed    = "FAILED"
)

// Sticker tracks one generation request from enqueue to result. ArtifactIDs
// reference the produced images; storage of the image bytes themselves is
// the delivery layer's concern.
type Sticker struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	StyleID     string      `json:"style_id"`
	Status      string      `json:"status"`
	ArtifactIDs []uuid.UUID `json:"artifact_ids,omitempty"`
	FailReason  *string     `json:"fail_reason,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
