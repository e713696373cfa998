package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/snapsticker/backend/internal/middleware"
	"github.com/snapsticker/backend/internal/models"
	"github.com/snapsticker/backend/internal/stickers"
)

type CreateStickerRequest struct {
	Image       string `json:"image"` // base64-encoded photo
	StyleID     string `json:"style_id"`
	StylePrompt string `json:"style_prompt"`
}

type StickerResponse struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	StyleID     string   `json:"style_id"`
	ArtifactIDs []string `json:"artifact_ids,omitempty"`
	FailReason  *string  `json:"fail_reason,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

type StickerHandler struct {
	svc stickers.Service
	log *slog.Logger
}

func NewStickerHandler(svc stickers.Service, log *slog.Logger) *StickerHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StickerHandler{svc: svc, log: log}
}

// Create accepts the photo and style, records the request and enqueues
// generation. The response is 202: generation happens in the background and
// the client polls Get for the outcome.
func (h *StickerHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req CreateStickerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Image == "" || req.StylePrompt == "" {
		http.Error(w, "image and style_prompt are required", http.StatusBadRequest)
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		http.Error(w, "image must be base64-encoded", http.StatusBadRequest)
		return
	}

	sticker, err := h.svc.Create(r.Context(), userID, image, req.StyleID, req.StylePrompt)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, stickerToResponse(sticker))
}

func (h *StickerHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	stickerID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid sticker id", http.StatusBadRequest)
		return
	}
	sticker, err := h.svc.Get(r.Context(), userID, stickerID)
	if err != nil {
		if errors.Is(err, stickers.ErrNotFound) {
			http.Error(w, "sticker not found", http.StatusNotFound)
			return
		}
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stickerToResponse(sticker))
}

func (h *StickerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]StickerResponse, len(list))
	for i, s := range list {
		out[i] = stickerToResponse(s)
	}
	writeJSON(w, http.StatusOK, out)
}

func stickerToResponse(s *models.Sticker) StickerResponse {
	resp := StickerResponse{
		ID:         s.ID.String(),
		Status:     s.Status,
		StyleID:    s.StyleID,
		FailReason: s.FailReason,
		CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, a := range s.ArtifactIDs {
		resp.ArtifactIDs = append(resp.ArtifactIDs, a.String())
	}
	return resp
}
