package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/snapsticker/backend/internal/middleware"
	"github.com/snapsticker/backend/internal/models"
	"github.com/snapsticker/backend/internal/purchases"
)

type PurchaseRequest struct {
	Platform      string `json:"platform"`
	Payload       string `json:"payload"`
	ProductID     string `json:"product_id"`
	TransactionID string `json:"transaction_id"`
}

type RefundRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type PurchaseHandler struct {
	svc *purchases.Service
	log *slog.Logger
}

func NewPurchaseHandler(svc *purchases.Service, log *slog.Logger) *PurchaseHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PurchaseHandler{svc: svc, log: log}
}

func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Platform == "" || req.Payload == "" {
		http.Error(w, "platform and payload are required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ProcessPurchase(r.Context(), userID, &models.PurchaseReceipt{
		Platform:      models.Platform(req.Platform),
		Payload:       req.Payload,
		ProductID:     req.ProductID,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PurchaseHandler) Refund(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.TransactionID == "" {
		http.Error(w, "transaction_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ProcessRefund(r.Context(), userID, req.TransactionID, req.Reason)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
