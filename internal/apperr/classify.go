package apperr

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// StatusCoder is implemented by errors that carry an HTTP status from a
// collaborator response.
type StatusCoder interface {
	error
	HTTPStatusCode() int
}

// StatusError wraps a collaborator HTTP status as an error.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unexpected HTTP status"
}

func (e *StatusError) HTTPStatusCode() int { return e.Status }

// Classify maps any error into the closed taxonomy. Priority: already
// classified > HTTP status > network error types > message heuristics >
// UNKNOWN. A nil input returns nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return fromStatus(sc.HTTPStatusCode(), err)
	}

	if isNetworkError(err) {
		return Wrap(CodeNoConnection, err)
	}

	if code, ok := codeFromMessage(err.Error()); ok {
		return Wrap(code, err)
	}

	return Wrap(CodeUnknown, err)
}

// Retryable reports whether the classified form of err is worth retrying.
func Retryable(err error) bool {
	e := Classify(err)
	return e != nil && e.Retryable
}

// Is reports whether err classifies to the given code.
func Is(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func fromStatus(status int, cause error) *Error {
	var code string
	switch {
	case status == 401:
		code = CodeUnauthorized
	case status == 403:
		code = CodeForbidden
	case status == 429:
		code = CodeRateLimited
	case status == 413:
		code = CodeFileTooLarge
	case status == 415:
		code = CodeUnsupportedFormat
	case status >= 500:
		code = CodeServerError
	default:
		code = CodeUnknown
	}
	e := Wrap(code, cause)
	e.StatusCode = status
	return e
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// codeFromMessage is the last-resort heuristic for collaborators that only
// hand back flat message strings.
func codeFromMessage(msg string) (string, bool) {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "timeout"), strings.Contains(m, "timed out"),
		strings.Contains(m, "connection refused"), strings.Contains(m, "no such host"),
		strings.Contains(m, "network"), strings.Contains(m, "connection reset"):
		return CodeNoConnection, true
	case strings.Contains(m, "rate limit"), strings.Contains(m, "too many requests"):
		return CodeRateLimited, true
	case strings.Contains(m, "safety"), strings.Contains(m, "blocked"):
		return CodeContentBlocked, true
	case strings.Contains(m, "quota"):
		return CodeQuotaExceeded, true
	default:
		return "", false
	}
}
