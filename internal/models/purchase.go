package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies the store a purchase receipt came from.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Supported reports whether the platform value is one we can validate.
func (p Platform) Supported() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// PurchaseReceipt is the client-supplied proof of purchase. It is ephemeral:
// validated, never persisted as-is.
type PurchaseReceipt struct {
	Platform      Platform  `json:"platform"`
	Payload       string    `json:"payload"`
	ProductID     string    `json:"product_id"`
	TransactionID string    `json:"transaction_id"`
	PurchaseDate  time.Time `json:"purchase_date"`
}

// TransactionRecord maps a platform transaction id to the purchase it paid
// for. TransactionID is globally unique once recorded and serves as the
// idempotency key for purchases and the lookup key for refunds. Records are
// never deleted; CreditsGranted freezes the package amount at purchase time
// so later catalog changes cannot skew refunds.
type TransactionRecord struct {
	TransactionID  string    `json:"transaction_id"`
	UserID         uuid.UUID `json:"user_id"`
	ProductID      string    `json:"product_id"`
	Platform       Platform  `json:"platform"`
	CreditsGranted int       `json:"credits_granted"`
	CreatedAt      time.Time `json:"created_at"`
}
