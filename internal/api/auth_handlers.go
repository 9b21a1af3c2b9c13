package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wrenlabs/tidepool/internal/auth"
	"github.com/wrenlabs/tidepool/internal/middleware"
	"github.com/wrenlabs/tidepool/internal/validate"
)

// AuthHandlers holds dependencies for the development token endpoint.
// The endpoint mints access tokens for an arbitrary user ID so that the
// recommendation routes can be exercised without a full identity
// provider. It must never be mounted in production.
type AuthHandlers struct {
	jwtService *auth.JWTService
	logger     *slog.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance.
func NewAuthHandlers(jwtService *auth.JWTService, logger *slog.Logger) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{
		jwtService: jwtService,
		logger:     logger,
	}
}

// TokenRequest is the request body for POST /auth/token.
type TokenRequest struct {
	UserID string `json:"userId"`
}

// TokenResponse is the response body for POST /auth/token.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

// DevToken handles POST /auth/token - mints an access/refresh token pair
// for the requested user ID.
func (h *AuthHandlers) DevToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid request body")
		return
	}

	userID, err := validate.UserID(req.UserID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "userId is invalid")
		return
	}

	accessToken, err := h.jwtService.GenerateAccessToken(userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to generate access token", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate token")
		return
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to generate refresh token", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode token response", "error", err)
	}
}
