package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit transaction types. Amount is always stored as a positive magnitude;
// the direction of the balance change is carried by the operation that
// created the entry (credit vs debit) and is auditable via BalanceAfter.
type TransactionType string

const (
	TxPurchase    TransactionType = "purchase"
	TxConsumption TransactionType = "consumption"
	TxRefund      TransactionType = "refund"
)

// CreditTransaction is one row of the append-only audit log. Entries are
// never mutated or deleted. History ordering is ascending CreatedAt with
// Seq (insertion sequence) breaking ties.
type CreditTransaction struct {
	ID           uuid.UUID       `json:"id"`
	Seq          int64           `json:"seq"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         TransactionType `json:"type"`
	Amount       int             `json:"amount"`
	Description  string          `json:"description"`
	RelatedIDs   []uuid.UUID     `json:"related_ids,omitempty"`
	BalanceAfter int             `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}
