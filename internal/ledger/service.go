// Package ledger is the sole owner of user credit balances and their
// append-only transaction history. Every balance change goes through Debit
// or Credit; both are atomic with the history entry they record.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/snapsticker/backend/internal/apperr"
	"github.com/snapsticker/backend/internal/models"
)

// Storage-level sentinels. The service translates these into classified
// errors before they cross the package boundary.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicateEmail      = errors.New("email already registered")
)

// Store is the persistence contract the service needs. ApplyDebit must be
// atomic: the balance check and decrement happen as one step, so two
// concurrent debits against the same user can never both succeed on a
// balance that covers only one.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	ApplyDebit(ctx context.Context, entry *models.CreditTransaction) (newBalance int, err error)
	ApplyCredit(ctx context.Context, entry *models.CreditTransaction) (newBalance int, err error)
	Entries(ctx context.Context, userID uuid.UUID) ([]*models.CreditTransaction, error)
}

type Service interface {
	Register(ctx context.Context, email, passwordHash, displayName string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CheckBalance(ctx context.Context, userID uuid.UUID) (int, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int, txType models.TransactionType, description string, relatedIDs []uuid.UUID) (int, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int, txType models.TransactionType, description string, relatedIDs []uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID) ([]*models.CreditTransaction, error)
}

type service struct {
	store       Store
	signupGrant int
}

// NewService creates the ledger service. signupGrant is the credit balance
// a freshly registered user starts with.
func NewService(store Store, signupGrant int) Service {
	return &service{store: store, signupGrant: signupGrant}
}

var _ Service = (*service)(nil)

func (s *service) Register(ctx context.Context, email, passwordHash, displayName string) (*models.User, error) {
	u := &models.User{
		ID:            uuid.New(),
		Email:         email,
		DisplayName:   displayName,
		PasswordHash:  passwordHash,
		CreditBalance: s.signupGrant,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.CodeDatabaseError, err)
	}
	return u, nil
}

func (s *service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.store.UserByEmail(ctx, email)
}

func (s *service) CheckBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return 0, apperr.Wrap(apperr.CodeUserNotFound, err)
		}
		return 0, apperr.Wrap(apperr.CodeDatabaseError, err)
	}
	return balance, nil
}

// Debit atomically checks and decrements the balance, appending the history
// entry in the same step. On insufficient credits the balance is untouched
// and no entry is recorded.
func (s *service) Debit(ctx context.Context, userID uuid.UUID, amount int, txType models.TransactionType, description string, relatedIDs []uuid.UUID) (int, error) {
	if amount <= 0 {
		return 0, apperr.New(apperr.CodeInvalidAmount, fmt.Sprintf("debit amount must be > 0, got %d", amount))
	}
	entry := &models.CreditTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		RelatedIDs:  relatedIDs,
	}
	newBalance, err := s.store.ApplyDebit(ctx, entry)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			return 0, apperr.Wrap(apperr.CodeUserNotFound, err)
		case errors.Is(err, ErrInsufficientCredits):
			available, balErr := s.store.Balance(ctx, userID)
			if balErr != nil {
				available = 0
			}
			return 0, apperr.Wrap(apperr.CodeInsufficientCredits, err).
				WithDetails(map[string]any{"required": amount, "available": available})
		default:
			return 0, apperr.Wrap(apperr.CodeDatabaseError, err)
		}
	}
	return newBalance, nil
}

// Credit increments the balance and appends the history entry atomically.
// Always succeeds for a known user and a positive amount.
func (s *service) Credit(ctx context.Context, userID uuid.UUID, amount int, txType models.TransactionType, description string, relatedIDs []uuid.UUID) (int, error) {
	if amount <= 0 {
		return 0, apperr.New(apperr.CodeInvalidAmount, fmt.Sprintf("credit amount must be > 0, got %d", amount))
	}
	entry := &models.CreditTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		RelatedIDs:  relatedIDs,
	}
	newBalance, err := s.store.ApplyCredit(ctx, entry)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return 0, apperr.Wrap(apperr.CodeUserNotFound, err)
		}
		return 0, apperr.Wrap(apperr.CodeDatabaseError, err)
	}
	return newBalance, nil
}

// History returns the user's transactions in insertion order: ascending
// created_at, ties broken by sequence number.
func (s *service) History(ctx context.Context, userID uuid.UUID) ([]*models.CreditTransaction, error) {
	entries, err := s.store.Entries(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDatabaseError, err)
	}
	return entries, nil
}
