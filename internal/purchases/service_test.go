package purchases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/snapsticker/backend/internal/apperr"
	"github.com/snapsticker/backend/internal/ledger"
	"github.com/snapsticker/backend/internal/models"
	"github.com/snapsticker/backend/internal/retry"
)

// ---------------------------------------------------------------------------
// In-memory fakes: ledger, record store, receipt validator.
// ---------------------------------------------------------------------------

type fakeLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
	entries  []*models.CreditTransaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[uuid.UUID]int)}
}

func (f *fakeLedger) Register(_ context.Context, _, _, _ string) (*models.User, error) {
	panic("not used")
}

func (f *fakeLedger) UserByEmail(_ context.Context, _ string) (*models.User, error) {
	panic("not used")
}

func (f *fakeLedger) seed(userID uuid.UUID, balance int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = balance
}

func (f *fakeLedger) CheckBalance(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return 0, apperr.Wrap(apperr.CodeUserNotFound, ledger.ErrUserNotFound)
	}
	return b, nil
}

func (f *fakeLedger) Debit(_ context.Context, userID uuid.UUID, amount int, txType models.TransactionType, description string, related []uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.balances[userID]
	if b < amount {
		return 0, apperr.Wrap(apperr.CodeInsufficientCredits, ledger.ErrInsufficientCredits).
			WithDetails(map[string]any{"required": amount, "available": b})
	}
	f.balances[userID] = b - amount
	f.entries = append(f.entries, &models.CreditTransaction{
		UserID: userID, Type: txType, Amount: amount, Description: description, RelatedIDs: related,
	})
	return f.balances[userID], nil
}

func (f *fakeLedger) Credit(_ context.Context, userID uuid.UUID, amount int, txType models.TransactionType, description string, related []uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
	f.entries = append(f.entries, &models.CreditTransaction{
		UserID: userID, Type: txType, Amount: amount, Description: description, RelatedIDs: related,
	})
	return f.balances[userID], nil
}

func (f *fakeLedger) History(_ context.Context, userID uuid.UUID) ([]*models.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CreditTransaction
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ ledger.Service = (*fakeLedger)(nil)

// ---

type memStore struct {
	mu      sync.Mutex
	records map[string]*models.TransactionRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.TransactionRecord)}
}

func (m *memStore) InsertIfAbsent(_ context.Context, rec *models.TransactionRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.TransactionID]; ok {
		return false, nil
	}
	cp := *rec
	cp.CreatedAt = time.Now().UTC()
	m.records[rec.TransactionID] = &cp
	return true, nil
}

func (m *memStore) Find(_ context.Context, transactionID string) (*models.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[transactionID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *rec
	return &cp, nil
}

var _ Store = (*memStore)(nil)

// ---

// scriptedValidator returns queued errors before succeeding, counting calls.
type scriptedValidator struct {
	mu       sync.Mutex
	failures []error
	calls    int
	result   ValidationResult
}

func (v *scriptedValidator) Validate(_ context.Context, _, productID string) (*ValidationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if len(v.failures) > 0 {
		err := v.failures[0]
		v.failures = v.failures[1:]
		return nil, err
	}
	r := v.result
	if r.ProductID == "" {
		r.ProductID = productID
	}
	return &r, nil
}

func (v *scriptedValidator) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func fastRetry() retry.Options {
	return retry.Options{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestService(validator ReceiptValidator) (*Service, *fakeLedger, *memStore) {
	led := newFakeLedger()
	store := newMemStore()
	svc := NewService(map[models.Platform]ReceiptValidator{
		models.PlatformIOS:     validator,
		models.PlatformAndroid: validator,
	}, store, led, fastRetry(), nil)
	return svc, led, store
}

func iosReceipt(transactionID, productID string) *models.PurchaseReceipt {
	return &models.PurchaseReceipt{
		Platform:      models.PlatformIOS,
		Payload:       "base64-receipt-data",
		ProductID:     productID,
		TransactionID: transactionID,
		PurchaseDate:  time.Now().UTC(),
	}
}

// ---------------------------------------------------------------------------
// Purchase happy path and replay.
// ---------------------------------------------------------------------------

func TestProcessPurchase_CreditsOnce(t *testing.T) {
	validator := &scriptedValidator{result: ValidationResult{TransactionID: "tx1", ProductID: "credits_25"}}
	svc, led, _ := newTestService(validator)

	user := uuid.New()
	led.seed(user, 10)
	ctx := context.Background()

	res, err := svc.ProcessPurchase(ctx, user, iosReceipt("tx1", "credits_25"))
	if err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	if res.CreditsAdded != 25 || res.NewBalance != 35 {
		t.Errorf("result: got +%d -> %d, want +25 -> 35", res.CreditsAdded, res.NewBalance)
	}
	if res.TransactionID != "tx1" {
		t.Errorf("transaction id: got %s, want tx1", res.TransactionID)
	}

	// Replaying the same transaction id must not credit twice.
	_, err = svc.ProcessPurchase(ctx, user, iosReceipt("tx1", "credits_25"))
	if !apperr.Is(err, apperr.CodeDuplicateTransaction) {
		t.Fatalf("replay: got %v, want DUPLICATE_TRANSACTION", err)
	}
	if b, _ := led.CheckBalance(ctx, user); b != 35 {
		t.Errorf("balance after replay: got %d, want 35", b)
	}

	history, _ := led.History(ctx, user)
	if len(history) != 1 || history[0].Type != models.TxPurchase {
		t.Errorf("expected exactly one purchase entry, got %d", len(history))
	}
}

func TestProcessPurchase_ConcurrentReplay(t *testing.T) {
	validator := &scriptedValidator{result: ValidationResult{TransactionID: "tx-conc", ProductID: "credits_10"}}
	svc, led, _ := newTestService(validator)

	user := uuid.New()
	led.seed(user, 0)
	ctx := context.Background()

	const deliveries = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, duplicates := 0, 0

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessPurchase(ctx, user, iosReceipt("tx-conc", "credits_10"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.Is(err, apperr.CodeDuplicateTransaction):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || duplicates != deliveries-1 {
		t.Errorf("got %d successes and %d duplicates, want 1 and %d", successes, duplicates, deliveries-1)
	}
	if b, _ := led.CheckBalance(ctx, user); b != 10 {
		t.Errorf("balance: got %d, want 10", b)
	}
}

// ---------------------------------------------------------------------------
// Rejections happen before any ledger mutation.
// ---------------------------------------------------------------------------

func TestProcessPurchase_Rejections(t *testing.T) {
	validator := &scriptedValidator{result: ValidationResult{TransactionID: "tx2", ProductID: "credits_25"}}
	svc, led, _ := newTestService(validator)

	user := uuid.New()
	led.seed(user, 10)
	ctx := context.Background()

	// Unsupported platform is rejected before the validator runs.
	bad := iosReceipt("tx2", "credits_25")
	bad.Platform = "windows"
	if _, err := svc.ProcessPurchase(ctx, user, bad); !apperr.Is(err, apperr.CodeUnsupportedPlatform) {
		t.Errorf("unsupported platform: got %v", err)
	}
	if validator.callCount() != 0 {
		t.Errorf("validator should not be called for unsupported platform, got %d calls", validator.callCount())
	}

	// Unknown product fails before any record or credit is written.
	unknown := &scriptedValidator{result: ValidationResult{TransactionID: "tx3", ProductID: "credits_9999"}}
	svc2, led2, store2 := newTestService(unknown)
	led2.seed(user, 10)
	if _, err := svc2.ProcessPurchase(ctx, user, iosReceipt("tx3", "credits_9999")); !apperr.Is(err, apperr.CodeInvalidProduct) {
		t.Errorf("invalid product: got %v", err)
	}
	if b, _ := led2.CheckBalance(ctx, user); b != 10 {
		t.Errorf("balance must be unchanged, got %d", b)
	}
	if _, err := store2.Find(ctx, "tx3"); err != ErrTransactionNotFound {
		t.Error("no transaction record should be written for an invalid product")
	}
}

// ---------------------------------------------------------------------------
// Validation retry policy.
// ---------------------------------------------------------------------------

func TestValidateReceipt_RetriesTransientOnly(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	// Two 503s, then success: the purchase goes through on the third attempt.
	flaky := &scriptedValidator{
		failures: []error{
			&apperr.StatusError{Status: 503, Message: "verification unavailable"},
			&apperr.StatusError{Status: 502, Message: "bad gateway"},
		},
		result: ValidationResult{TransactionID: "tx4", ProductID: "credits_10"},
	}
	svc, led, _ := newTestService(flaky)
	led.seed(user, 0)
	if _, err := svc.ProcessPurchase(ctx, user, iosReceipt("tx4", "credits_10")); err != nil {
		t.Fatalf("expected success after transient failures: %v", err)
	}
	if flaky.callCount() != 3 {
		t.Errorf("validator calls: got %d, want 3", flaky.callCount())
	}

	// A business validation failure is terminal: exactly one attempt.
	rejected := &scriptedValidator{
		failures: []error{apperr.New(apperr.CodeInvalidReceipt, "receipt signature mismatch")},
	}
	svc2, led2, _ := newTestService(rejected)
	led2.seed(user, 0)
	_, err := svc2.ProcessPurchase(ctx, user, iosReceipt("tx5", "credits_10"))
	if !apperr.Is(err, apperr.CodeInvalidReceipt) {
		t.Fatalf("expected INVALID_RECEIPT, got %v", err)
	}
	if rejected.callCount() != 1 {
		t.Errorf("validator calls: got %d, want 1 (no retry on validation failure)", rejected.callCount())
	}
	if b, _ := led2.CheckBalance(ctx, user); b != 0 {
		t.Errorf("balance must be unchanged, got %d", b)
	}
}

// ---------------------------------------------------------------------------
// Refunds.
// ---------------------------------------------------------------------------

func TestProcessRefund(t *testing.T) {
	validator := &scriptedValidator{result: ValidationResult{TransactionID: "tx6", ProductID: "credits_25"}}
	svc, led, _ := newTestService(validator)

	user := uuid.New()
	led.seed(user, 0)
	ctx := context.Background()

	if _, err := svc.ProcessPurchase(ctx, user, iosReceipt("tx6", "credits_25")); err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}

	res, err := svc.ProcessRefund(ctx, user, "tx6", "accidental purchase")
	if err != nil {
		t.Fatalf("ProcessRefund: %v", err)
	}
	if res.CreditsAdded != -25 || res.NewBalance != 0 {
		t.Errorf("refund: got %d -> %d, want -25 -> 0", res.CreditsAdded, res.NewBalance)
	}

	history, _ := led.History(ctx, user)
	if len(history) != 2 || history[1].Type != models.TxRefund || history[1].Amount != 25 {
		t.Errorf("expected a refund entry of amount 25, got %+v", history)
	}
}

func TestProcessRefund_Bounds(t *testing.T) {
	validator := &scriptedValidator{result: ValidationResult{TransactionID: "tx7", ProductID: "credits_25"}}
	svc, led, _ := newTestService(validator)

	user := uuid.New()
	led.seed(user, 0)
	ctx := context.Background()

	if _, err := svc.ProcessPurchase(ctx, user, iosReceipt("tx7", "credits_25")); err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	// Spend credits down to 10: the 25-credit clawback no longer fits.
	if _, err := led.Debit(ctx, user, 15, models.TxConsumption, "sticker generation", nil); err != nil {
		t.Fatalf("Debit: %v", err)
	}

	_, err := svc.ProcessRefund(ctx, user, "tx7", "chargeback")
	if !apperr.Is(err, apperr.CodeRefundExceedsBalance) {
		t.Fatalf("expected INSUFFICIENT_CREDITS_FOR_REFUND, got %v", err)
	}
	if b, _ := led.CheckBalance(ctx, user); b != 10 {
		t.Errorf("balance must be unchanged: got %d, want 10", b)
	}

	// Unknown transaction id.
	if _, err := svc.ProcessRefund(ctx, user, "tx-missing", ""); !apperr.Is(err, apperr.CodeTransactionNotFound) {
		t.Errorf("unknown transaction: got %v", err)
	}

	// Record owned by another user is invisible to this one.
	if _, err := svc.ProcessRefund(ctx, uuid.New(), "tx7", ""); !apperr.Is(err, apperr.CodeTransactionNotFound) {
		t.Errorf("foreign transaction: got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Unsupported platform at the ValidateReceipt level.
// ---------------------------------------------------------------------------

func TestValidateReceipt_NoValidator(t *testing.T) {
	svc := NewService(map[models.Platform]ReceiptValidator{}, newMemStore(), newFakeLedger(), fastRetry(), nil)
	_, err := svc.ValidateReceipt(context.Background(), models.PlatformIOS, "payload", "credits_10")
	if !apperr.Is(err, apperr.CodeUnsupportedPlatform) {
		t.Errorf("got %v, want UNSUPPORTED_PLATFORM", err)
	}
}
