package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wrenlabs/tidepool/internal/middleware"
	"github.com/wrenlabs/tidepool/internal/recs"
)

// Pagination bounds for the recommendation endpoints. The recommender
// clamps again internally; validating here gives clients a 400 instead
// of a silently adjusted page.
const (
	MaxRecsLimit = recs.MaxLimit
	MaxRecsPage  = 10000
)

// RecommendationHandlers holds dependencies for recommendation HTTP handlers.
type RecommendationHandlers struct {
	recommender *recs.Recommender
	logger      *slog.Logger
}

// NewRecommendationHandlers creates a new RecommendationHandlers instance.
func NewRecommendationHandlers(recommender *recs.Recommender, logger *slog.Logger) *RecommendationHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecommendationHandlers{
		recommender: recommender,
		logger:      logger,
	}
}

// PostFeed handles GET /recommendations/posts - the ranked post feed for
// the authenticated viewer.
//
// Query parameters:
//   - page: 1-based page number (optional, default 1)
//   - limit: page size (optional, clamped to the configured maximum)
func (h *RecommendationHandlers) PostFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	viewerID := middleware.GetUserID(r.Context())
	if viewerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	feed := h.recommender.RankPosts(r.Context(), viewerID, page, limit)

	h.writeJSON(w, r, feed)
}

// UserSuggestions handles GET /recommendations/users - suggested users to
// follow for the authenticated viewer.
//
// Query parameters:
//   - limit: number of suggestions (optional, clamped to the configured maximum)
func (h *RecommendationHandlers) UserSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	viewerID := middleware.GetUserID(r.Context())
	if viewerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	suggestions := h.recommender.RankUsers(r.Context(), viewerID, limit)

	h.writeJSON(w, r, suggestions)
}

// parsePage reads and validates the page query parameter. A missing
// parameter defaults to page 1. Writes a 400 and returns false on
// invalid input.
func (h *RecommendationHandlers) parsePage(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, true
	}

	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidPage)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidPage, "page must be a positive integer")
		return 0, false
	}
	if page > MaxRecsPage {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidPage)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidPage, "page is out of range")
		return 0, false
	}
	return page, true
}

// parseLimit reads and validates the limit query parameter. A missing
// parameter defaults to zero, letting the recommender apply its
// configured default.
func (h *RecommendationHandlers) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidLimit)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLimit, "limit must be a positive integer")
		return 0, false
	}
	if limit > MaxRecsLimit {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidLimit)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLimit,
			"limit must not exceed "+strconv.Itoa(MaxRecsLimit))
		return 0, false
	}
	return limit, true
}

func (h *RecommendationHandlers) writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response",
			"path", r.URL.Path,
			"error", err)
	}
}
