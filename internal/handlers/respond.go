// Package handlers is the HTTP surface. Every error response goes through
// the classifier so clients always see a stable code, a user-facing message
// and a retryable flag.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/snapsticker/backend/internal/apperr"
)

type errorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError classifies err and renders the envelope. The technical message
// goes to the log; the response only carries the user-facing one.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	classified := apperr.Classify(err)
	if classified.StatusCode >= 500 {
		log.Error("request failed", "code", classified.Code, "error", classified.Message)
	} else {
		log.Info("request rejected", "code", classified.Code, "error", classified.Message)
	}
	writeJSON(w, classified.StatusCode, errorEnvelope{
		Error: errorBody{
			Code:      classified.Code,
			Message:   classified.UserMessage,
			Retryable: classified.Retryable,
			Details:   classified.Details,
		},
	})
}
