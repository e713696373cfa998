package router

import (
	"net/http"

	"github.com/snapsticker/backend/internal/auth"
	"github.com/snapsticker/backend/internal/handlers"
	"github.com/snapsticker/backend/internal/middleware"
)

// New returns an http.Handler serving the API under /api/v1. Auth and the
// catalog are public; everything else requires a Bearer token.
func New(
	authHandler *auth.Handler,
	stickerHandler *handlers.StickerHandler,
	purchaseHandler *handlers.PurchaseHandler,
	creditsHandler *handlers.CreditsHandler,
	validator middleware.TokenValidator,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)
	mux.HandleFunc("GET "+base+"/catalog", creditsHandler.Catalog)

	protected := http.NewServeMux()
	protected.HandleFunc("POST "+base+"/stickers", stickerHandler.Create)
	protected.HandleFunc("GET "+base+"/stickers", stickerHandler.List)
	protected.HandleFunc("GET "+base+"/stickers/{id}", stickerHandler.Get)
	protected.HandleFunc("POST "+base+"/purchases", purchaseHandler.Purchase)
	protected.HandleFunc("POST "+base+"/purchases/refund", purchaseHandler.Refund)
	protected.HandleFunc("GET "+base+"/credits/balance", creditsHandler.Balance)
	protected.HandleFunc("GET "+base+"/credits/history", creditsHandler.History)

	mux.Handle(base+"/", middleware.JWTAuth(validator)(protected))

	return mux
}
