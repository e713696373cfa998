// Package purchases turns platform purchase and refund events into ledger
// operations exactly once per transaction id.
package purchases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snapsticker/backend/internal/apperr"
	"github.com/snapsticker/backend/internal/catalog"
	"github.com/snapsticker/backend/internal/ledger"
	"github.com/snapsticker/backend/internal/models"
	"github.com/snapsticker/backend/internal/retry"
)

// ErrTransactionNotFound is the storage-level sentinel for a missing record.
var ErrTransactionNotFound = errors.New("transaction record not found")

// ValidationResult is what a platform validator extracts from a receipt.
type ValidationResult struct {
	ProductID     string    `json:"product_id"`
	TransactionID string    `json:"transaction_id"`
	PurchaseDate  time.Time `json:"purchase_date"`
}

// ReceiptValidator verifies a raw receipt payload against the platform's
// verification endpoint. Invalid receipts come back as classified errors.
type ReceiptValidator interface {
	Validate(ctx context.Context, payload, productID string) (*ValidationResult, error)
}

// Store persists transaction records. InsertIfAbsent must be a single atomic
// insert-if-absent on the transaction id: two concurrent deliveries of the
// same receipt see exactly one true.
type Store interface {
	InsertIfAbsent(ctx context.Context, rec *models.TransactionRecord) (inserted bool, err error)
	Find(ctx context.Context, transactionID string) (*models.TransactionRecord, error)
}

// PurchaseResult reports a successfully applied purchase.
type PurchaseResult struct {
	CreditsAdded  int    `json:"credits_added"`
	TransactionID string `json:"transaction_id"`
	NewBalance    int    `json:"new_balance"`
}

// RefundResult reports an applied refund. CreditsAdded is negative.
type RefundResult struct {
	CreditsAdded int `json:"credits_added"`
	NewBalance   int `json:"new_balance"`
}

type Service struct {
	validators map[models.Platform]ReceiptValidator
	store      Store
	ledger     ledger.Service
	retryOpts  retry.Options
	log        *slog.Logger
}

// NewService wires the purchase processor. retryOpts bounds receipt
// validation retries; the payment predicate is applied on top of it.
func NewService(validators map[models.Platform]ReceiptValidator, store Store, ledgerSvc ledger.Service, retryOpts retry.Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		validators: validators,
		store:      store,
		ledger:     ledgerSvc,
		retryOpts:  retryOpts,
		log:        log,
	}
}

// ValidateReceipt runs the platform validator with bounded retries. Only
// network-class failures and 5xx responses are retried; business validation
// failures (bad receipt, cancelled purchase) surface immediately.
func (s *Service) ValidateReceipt(ctx context.Context, platform models.Platform, payload, productID string) (*ValidationResult, error) {
	validator, ok := s.validators[platform]
	if !ok {
		return nil, apperr.New(apperr.CodeUnsupportedPlatform, fmt.Sprintf("no validator for platform %q", platform))
	}

	opts := s.retryOpts
	opts.RetryIf = paymentRetryable
	return retry.Do(ctx, opts, func(ctx context.Context) (*ValidationResult, error) {
		return validator.Validate(ctx, payload, productID)
	})
}

// ProcessPurchase applies a validated purchase to the ledger exactly once.
// Catalog lookup and the duplicate check both happen before any ledger
// mutation, so a failed purchase never leaves a partial entry.
func (s *Service) ProcessPurchase(ctx context.Context, userID uuid.UUID, receipt *models.PurchaseReceipt) (*PurchaseResult, error) {
	if !receipt.Platform.Supported() {
		return nil, apperr.New(apperr.CodeUnsupportedPlatform, fmt.Sprintf("unsupported platform %q", receipt.Platform))
	}

	validation, err := s.ValidateReceipt(ctx, receipt.Platform, receipt.Payload, receipt.ProductID)
	if err != nil {
		return nil, err
	}

	productID := validation.ProductID
	if productID == "" {
		productID = receipt.ProductID
	}
	pkg, ok := catalog.PackageByID(productID)
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidProduct, fmt.Sprintf("product %q not in catalog", productID))
	}

	transactionID := validation.TransactionID
	if transactionID == "" {
		transactionID = receipt.TransactionID
	}

	inserted, err := s.store.InsertIfAbsent(ctx, &models.TransactionRecord{
		TransactionID:  transactionID,
		UserID:         userID,
		ProductID:      pkg.ID,
		Platform:       receipt.Platform,
		CreditsGranted: pkg.Credits,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDatabaseError, err)
	}
	if !inserted {
		return nil, apperr.New(apperr.CodeDuplicateTransaction,
			fmt.Sprintf("transaction %s already processed", transactionID)).
			WithDetails(map[string]any{"transaction_id": transactionID})
	}

	newBalance, err := s.ledger.Credit(ctx, userID, pkg.Credits, models.TxPurchase,
		fmt.Sprintf("credit package %s", pkg.ID), nil)
	if err != nil {
		return nil, err
	}

	s.log.Info("purchase applied",
		"user_id", userID, "transaction_id", transactionID,
		"product_id", pkg.ID, "credits", pkg.Credits)

	return &PurchaseResult{
		CreditsAdded:  pkg.Credits,
		TransactionID: transactionID,
		NewBalance:    newBalance,
	}, nil
}

// ProcessRefund claws back the credits a purchase granted. The clawback uses
// the amount frozen on the TransactionRecord, and never drives the balance
// below zero: a short balance fails the refund with nothing mutated.
func (s *Service) ProcessRefund(ctx context.Context, userID uuid.UUID, transactionID, reason string) (*RefundResult, error) {
	rec, err := s.store.Find(ctx, transactionID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, apperr.Wrap(apperr.CodeTransactionNotFound, err)
		}
		return nil, apperr.Wrap(apperr.CodeDatabaseError, err)
	}
	if rec.UserID != userID {
		return nil, apperr.New(apperr.CodeTransactionNotFound,
			fmt.Sprintf("transaction %s does not belong to user %s", transactionID, userID))
	}

	description := fmt.Sprintf("refund of %s", transactionID)
	if reason != "" {
		description = fmt.Sprintf("refund of %s: %s", transactionID, reason)
	}

	newBalance, err := s.ledger.Debit(ctx, userID, rec.CreditsGranted, models.TxRefund, description, nil)
	if err != nil {
		if apperr.Is(err, apperr.CodeInsufficientCredits) {
			classified := apperr.Classify(err)
			return nil, apperr.New(apperr.CodeRefundExceedsBalance,
				fmt.Sprintf("refund of %d credits exceeds current balance", rec.CreditsGranted)).
				WithDetails(classified.Details)
		}
		return nil, err
	}

	s.log.Info("refund applied",
		"user_id", userID, "transaction_id", transactionID, "credits", rec.CreditsGranted)

	return &RefundResult{CreditsAdded: -rec.CreditsGranted, NewBalance: newBalance}, nil
}

// paymentRetryable retries only network-class failures and provider 5xx.
// Business validation failures will not change outcome on retry.
func paymentRetryable(err error) bool {
	classified := apperr.Classify(err)
	if classified.Kind == apperr.KindNetwork {
		return true
	}
	return classified.StatusCode >= 500
}
