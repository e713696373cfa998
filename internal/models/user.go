package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the account record behind a mobile install. The credit balance is
// owned by the ledger service; nothing else mutates it.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	PasswordHash  string    `json:"-"`
	CreditBalance int       `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
