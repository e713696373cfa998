package handlers

import (
	"log/slog"
	"net/http"

	"github.com/snapsticker/backend/internal/catalog"
	"github.com/snapsticker/backend/internal/ledger"
	"github.com/snapsticker/backend/internal/middleware"
	"github.com/snapsticker/backend/internal/models"
)

type BalanceResponse struct {
	Balance int `json:"balance"`
}

type TransactionResponse struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Amount       int      `json:"amount"`
	Description  string   `json:"description"`
	RelatedIDs   []string `json:"related_ids,omitempty"`
	BalanceAfter int      `json:"balance_after"`
	CreatedAt    string   `json:"created_at"`
}

type CatalogResponse struct {
	Packages []catalog.Package `json:"packages"`
	Plans    []catalog.Plan    `json:"plans"`
}

type CreditsHandler struct {
	ledger ledger.Service
	log    *slog.Logger
}

func NewCreditsHandler(ledgerSvc ledger.Service, log *slog.Logger) *CreditsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CreditsHandler{ledger: ledgerSvc, log: log}
}

func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	balance, err := h.ledger.CheckBalance(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

// History returns the full transaction history in insertion order.
func (h *CreditsHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	entries, err := h.ledger.History(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]TransactionResponse, len(entries))
	for i, e := range entries {
		out[i] = transactionToResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// Catalog is public: the purchasable packages and subscription plans.
func (h *CreditsHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CatalogResponse{
		Packages: catalog.Packages(),
		Plans:    catalog.Plans(),
	})
}

func transactionToResponse(e *models.CreditTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:           e.ID.String(),
		Type:         string(e.Type),
		Amount:       e.Amount,
		Description:  e.Description,
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, id := range e.RelatedIDs {
		resp.RelatedIDs = append(resp.RelatedIDs, id.String())
	}
	return resp
}
