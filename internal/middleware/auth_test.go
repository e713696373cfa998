package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type fakeValidator struct {
	userID uuid.UUID
	err    error
	seen   string
}

func (f *fakeValidator) ValidateToken(_ context.Context, token string) (uuid.UUID, error) {
	f.seen = token
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.userID, nil
}

func TestJWTAuth_SetsUserID(t *testing.T) {
	userID := uuid.New()
	validator := &fakeValidator{userID: userID}

	var got uuid.UUID
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = UserIDFromCtx(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	rec := httptest.NewRecorder()

	JWTAuth(validator)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if !ok || got != userID {
		t.Errorf("context user: got %v (ok=%v), want %v", got, ok, userID)
	}
	if validator.seen != "token-123" {
		t.Errorf("token passed to validator: got %q", validator.seen)
	}
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	JWTAuth(&fakeValidator{})(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
	if called {
		t.Error("next handler must not run without a token")
	}
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	validator := &fakeValidator{err: errors.New("token expired")}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not run with an invalid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()

	JWTAuth(validator)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestUserIDFromCtx_Absent(t *testing.T) {
	if _, ok := UserIDFromCtx(context.Background()); ok {
		t.Error("empty context must not report a user")
	}
}
