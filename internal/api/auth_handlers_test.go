package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wrenlabs/tidepool/internal/auth"
)

func newTestAuthHandlers(t *testing.T) (*AuthHandlers, *auth.JWTService) {
	t.Helper()
	svc := auth.NewJWTService("test-secret-for-token-minting")
	return NewAuthHandlers(svc, nil), svc
}

func TestDevToken_MintsValidTokenPair(t *testing.T) {
	handlers, svc := newTestAuthHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"userId": "user-42"}`))
	rec := httptest.NewRecorder()
	handlers.DevToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("expected token type Bearer, got %q", resp.TokenType)
	}

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("minted access token failed validation: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Errorf("expected subject user-42, got %q", claims.Subject)
	}

	// The refresh token must not pass as an access token.
	if _, err := svc.ValidateAccessToken(resp.RefreshToken); err == nil {
		t.Error("expected refresh token to be rejected as access token")
	}
}

func TestDevToken_RejectsBadRequests(t *testing.T) {
	handlers, _ := newTestAuthHandlers(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"invalid json", "{not json"},
		{"missing user id", `{}`},
		{"blank user id", `{"userId": "   "}`},
		{"user id with invalid characters", `{"userId": "user id!"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handlers.DevToken(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if code := decodeErrorCode(t, rec); code != ErrCodeValidation {
				t.Errorf("expected error code %q, got %q", ErrCodeValidation, code)
			}
		})
	}
}

func TestDevToken_MethodNotAllowed(t *testing.T) {
	handlers, _ := newTestAuthHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	rec := httptest.NewRecorder()
	handlers.DevToken(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}
