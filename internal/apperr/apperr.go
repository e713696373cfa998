// Package apperr normalizes every failure that crosses a service boundary
// into one closed taxonomy. Raw errors from collaborators (AI service,
// receipt validators, storage) are classified once, at the boundary where
// they are first observed, and flow outward unchanged.
package apperr

import (
	"fmt"
	"time"
)

// Kind is the closed category set.
type Kind string

const (
	KindNetwork             Kind = "NETWORK"
	KindAuthentication      Kind = "AUTHENTICATION"
	KindAIProcessing        Kind = "AI_PROCESSING"
	KindPayment             Kind = "PAYMENT"
	KindFileProcessing      Kind = "FILE_PROCESSING"
	KindInsufficientCredits Kind = "INSUFFICIENT_CREDITS"
	KindUnknown             Kind = "UNKNOWN"
)

// Error codes. Each code has fixed defaults (kind, retryability, HTTP status,
// user-facing message) in the table below.
const (
	CodeNoConnection       = "NO_CONNECTION"
	CodeServerError        = "SERVER_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeContentBlocked     = "CONTENT_BLOCKED"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodePaymentCancelled   = "CANCELLED"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodePaymentFailed      = "FAILED"
	CodeInvalidReceipt     = "INVALID_RECEIPT"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	CodeCorruptedFile      = "CORRUPTED_FILE"

	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"

	CodeUserNotFound             = "USER_NOT_FOUND"
	CodeInvalidAmount            = "INVALID_AMOUNT"
	CodeUnsupportedPlatform      = "UNSUPPORTED_PLATFORM"
	CodeInvalidProduct           = "INVALID_PRODUCT"
	CodeDuplicateTransaction     = "DUPLICATE_TRANSACTION"
	CodeTransactionNotFound      = "TRANSACTION_NOT_FOUND"
	CodeRefundExceedsBalance     = "INSUFFICIENT_CREDITS_FOR_REFUND"

	CodeUnknown = "UNKNOWN_ERROR"
)

type defaults struct {
	kind        Kind
	retryable   bool
	status      int
	userMessage string
}

var codeDefaults = map[string]defaults{
	CodeNoConnection:       {KindNetwork, true, 503, "No connection. Please check your network and try again."},
	CodeServerError:        {KindNetwork, true, 503, "Something went wrong on our side. Please try again."},
	CodeRateLimited:        {KindNetwork, true, 429, "Too many requests right now. Please wait a moment."},
	CodeDatabaseError:      {KindNetwork, true, 503, "Something went wrong on our side. Please try again."},
	CodeUnauthorized:       {KindAuthentication, false, 401, "Please sign in to continue."},
	CodeForbidden:          {KindAuthentication, false, 403, "You don't have access to this."},
	CodeContentBlocked:     {KindAIProcessing, false, 422, "This photo can't be turned into a sticker. Try a different one."},
	CodeQuotaExceeded:      {KindAIProcessing, true, 429, "The sticker service is busy. Please try again shortly."},
	CodeServiceUnavailable: {KindAIProcessing, true, 503, "The sticker service is temporarily unavailable."},
	CodePaymentCancelled:   {KindPayment, false, 400, "The purchase was cancelled."},
	CodeInsufficientFunds:  {KindPayment, false, 402, "The payment method has insufficient funds."},
	CodePaymentFailed:      {KindPayment, true, 502, "The payment couldn't be completed. Please try again."},
	CodeInvalidReceipt:     {KindPayment, false, 400, "This purchase couldn't be verified."},
	CodeFileTooLarge:       {KindFileProcessing, false, 413, "That image is too large."},
	CodeUnsupportedFormat:  {KindFileProcessing, false, 415, "That image format isn't supported."},
	CodeCorruptedFile:      {KindFileProcessing, false, 422, "That image couldn't be read."},

	CodeInsufficientCredits: {KindInsufficientCredits, false, 402, "You don't have enough credits. Top up to continue."},

	CodeUserNotFound:         {KindUnknown, false, 404, "Account not found."},
	CodeInvalidAmount:        {KindUnknown, false, 400, "Invalid amount."},
	CodeUnsupportedPlatform:  {KindPayment, false, 400, "Purchases from this platform aren't supported."},
	CodeInvalidProduct:       {KindPayment, false, 400, "This product is no longer available."},
	CodeDuplicateTransaction: {KindPayment, false, 409, "This purchase was already applied."},
	CodeTransactionNotFound:  {KindPayment, false, 404, "No matching purchase was found."},
	CodeRefundExceedsBalance: {KindPayment, false, 409, "The refund can't be applied to this account."},

	CodeUnknown: {KindUnknown, false, 500, "Something went wrong. Please try again."},
}

// Error is a classified error. Message is the technical text for logs;
// UserMessage is safe to display and never carries internal detail.
type Error struct {
	Kind        Kind           `json:"kind"`
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	UserMessage string         `json:"user_message"`
	Retryable   bool           `json:"retryable"`
	StatusCode  int            `json:"status_code"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	cause       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the raw cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// New builds a classified error for a known code. Unknown codes fall back to
// the UNKNOWN defaults but keep the given code string.
func New(code, message string) *Error {
	d, ok := codeDefaults[code]
	if !ok {
		d = codeDefaults[CodeUnknown]
	}
	return &Error{
		Kind:        d.kind,
		Code:        code,
		Message:     message,
		UserMessage: d.userMessage,
		Retryable:   d.retryable,
		StatusCode:  d.status,
		Timestamp:   time.Now().UTC(),
	}
}

// Wrap is New with the raw cause attached.
func Wrap(code string, err error) *Error {
	e := New(code, err.Error())
	e.cause = err
	return e
}

// WithDetails attaches structured context (e.g. required/available credits).
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithRetryable overrides the code's default retryability.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}
