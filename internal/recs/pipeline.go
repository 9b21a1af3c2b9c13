// Package recs orchestrates the recommendation pipelines: candidate
// retrieval, scoring, sorting, pagination, and aggregate statistics for
// both the post feed and follow suggestions.
package recs

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wrenlabs/tidepool/internal/ranking"
	"github.com/wrenlabs/tidepool/internal/tracing"
)

// CandidateRepository supplies candidate snapshots and the viewer's
// follow graph. Implementations must return posts ordered newest first;
// the relative fetch order is the tie-breaker for equal scores.
type CandidateRepository interface {
	// CandidatePosts returns up to limit posts not authored by
	// excludeAuthorID, ordered by creation time descending.
	CandidatePosts(ctx context.Context, excludeAuthorID string, limit int) ([]ranking.Post, error)

	// CandidateUsers returns up to limit users whose IDs are not in
	// excludeIDs.
	CandidateUsers(ctx context.Context, excludeIDs map[string]struct{}, limit int) ([]ranking.User, error)

	// FollowedIDs returns the set of user IDs the viewer follows as a
	// single bulk lookup.
	FollowedIDs(ctx context.Context, viewerID string) (map[string]struct{}, error)
}

// Default pipeline settings.
const (
	// DefaultFetchMultiplier over-fetches candidates relative to the
	// requested page so the scorer has enough material to produce a
	// meaningful top page. Fetching exactly one page worth would change
	// result quality, not just performance.
	DefaultFetchMultiplier = 3

	// DefaultFetchCeiling caps the candidate fetch regardless of the
	// requested page size.
	DefaultFetchCeiling = 200

	// DefaultLimit is the page size when the caller does not specify one.
	DefaultLimit = 20

	// MaxLimit bounds the page size a caller may request.
	MaxLimit = 50
)

// Config holds the tunable settings for a Recommender.
type Config struct {
	// FetchMultiplier scales the candidate fetch relative to the page
	// size. Zero selects DefaultFetchMultiplier.
	FetchMultiplier int

	// FetchCeiling caps the candidate fetch size. Zero selects
	// DefaultFetchCeiling.
	FetchCeiling int

	// DefaultLimit is used when a caller passes a non-positive limit.
	// Zero selects DefaultLimit.
	DefaultLimit int

	// MaxLimit bounds the requested page size. Zero selects MaxLimit.
	MaxLimit int

	// FetchTimeout bounds the candidate fetch. Zero means no timeout.
	FetchTimeout time.Duration

	// Logger for pipeline activity.
	Logger *slog.Logger

	// Metrics for performance tracking. Optional.
	Metrics *Metrics
}

// Recommender runs both ranking pipelines against an injected
// candidate repository. All state is request-local; a single
// Recommender is safe for concurrent use.
type Recommender struct {
	repo   CandidateRepository
	posts  *ranking.PostScorer
	users  *ranking.UserScorer
	config Config
}

// NewRecommender creates a recommender over the given repository. Nil
// weights select the default scoring model; a nil random source selects
// the system generator.
func NewRecommender(repo CandidateRepository, weights *ranking.Weights, src ranking.RandSource, config Config) *Recommender {
	if config.FetchMultiplier <= 0 {
		config.FetchMultiplier = DefaultFetchMultiplier
	}
	if config.FetchCeiling <= 0 {
		config.FetchCeiling = DefaultFetchCeiling
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = MaxLimit
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Recommender{
		repo:   repo,
		posts:  ranking.NewPostScorer(weights, src),
		users:  ranking.NewUserScorer(weights, src),
		config: config,
	}
}

// RankedPost pairs a post candidate with its score and breakdown.
type RankedPost struct {
	Post      ranking.Post          `json:"post"`
	Score     float64               `json:"recommendationScore"`
	Breakdown ranking.PostBreakdown `json:"debugScore"`
}

// RankedUser pairs a user candidate with its score and breakdown.
type RankedUser struct {
	User      ranking.User          `json:"user"`
	Score     float64               `json:"recommendationScore"`
	Breakdown ranking.UserBreakdown `json:"debugScore"`
}

// Pagination describes the returned page. HasMore is true while
// page*limit is below the number of candidates scored.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// Stats aggregates debug statistics over the scored candidate set.
// PageAverageScore averages the returned page only, not the full set.
type Stats struct {
	TotalScored      int     `json:"totalScored"`
	Following        int     `json:"following"`
	Verified         int     `json:"verified"`
	Admin            int     `json:"admin"`
	PageAverageScore float64 `json:"pageAverageScore"`
}

// PostFeed is the result of one RankPosts call.
type PostFeed struct {
	Items      []RankedPost `json:"items"`
	Pagination Pagination   `json:"pagination"`
	Stats      Stats        `json:"stats"`
}

// UserSuggestions is the result of one RankUsers call.
type UserSuggestions struct {
	Items []RankedUser `json:"items"`
	Stats Stats        `json:"stats"`
}

// RankPosts builds one page of the personalized post feed for the
// viewer. Pages are 1-based. A candidate fetch failure degrades to an
// empty page with HasMore=false; the failure is logged and counted but
// never surfaced to the caller.
func (r *Recommender) RankPosts(ctx context.Context, viewerID string, page, limit int) PostFeed {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "rank_posts")
	defer endSpan(nil)

	page, limit = r.normalize(page, limit)
	feed := PostFeed{
		Items:      []RankedPost{},
		Pagination: Pagination{Page: page, Limit: limit},
	}

	fetchCtx, cancel := r.fetchContext(ctx)
	defer cancel()

	followed, err := r.repo.FollowedIDs(fetchCtx, viewerID)
	if err != nil {
		r.emptyResult(ctx, "posts", "follow graph fetch failed", viewerID, err)
		return feed
	}

	fetchSize := r.fetchSize(limit)
	posts, err := r.repo.CandidatePosts(fetchCtx, viewerID, fetchSize)
	if err != nil {
		r.emptyResult(ctx, "posts", "candidate fetch failed", viewerID, err)
		return feed
	}

	viewer := ranking.Viewer{ID: viewerID, Followed: followed}
	now := time.Now()

	scored := make([]RankedPost, 0, len(posts))
	for _, post := range posts {
		// The repository already excludes self-authored posts; guard
		// against implementations that do not.
		if post.AuthorID == viewerID {
			continue
		}
		total, breakdown := r.posts.Score(post, viewer, now)
		scored = append(scored, RankedPost{Post: post, Score: total, Breakdown: breakdown})

		if viewer.Follows(post.AuthorID) {
			feed.Stats.Following++
		}
		if ranking.AuthorVerified(post) {
			feed.Stats.Verified++
		}
		if ranking.AuthorRole(post) == ranking.RoleAdmin {
			feed.Stats.Admin++
		}
	}
	feed.Stats.TotalScored = len(scored)

	// Stable sort keeps fetch order (newest first) among equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	feed.Items = pageSlice(scored, page, limit)
	feed.Stats.PageAverageScore = averagePostScore(feed.Items)
	feed.Pagination.HasMore = page*limit < feed.Stats.TotalScored

	tracing.SetAttributes(ctx,
		attribute.Int("recs.candidates", feed.Stats.TotalScored),
		attribute.Int("recs.page", page),
	)
	if r.config.Metrics != nil {
		r.config.Metrics.ObserveRequest(SurfacePosts, time.Since(start).Seconds(), feed.Stats.TotalScored)
	}

	return feed
}

// RankUsers builds the "suggested to follow" list for the viewer,
// excluding the viewer and anyone already followed. A candidate fetch
// failure degrades to an empty list.
func (r *Recommender) RankUsers(ctx context.Context, viewerID string, limit int) UserSuggestions {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "rank_users")
	defer endSpan(nil)

	_, limit = r.normalize(1, limit)
	suggestions := UserSuggestions{Items: []RankedUser{}}

	fetchCtx, cancel := r.fetchContext(ctx)
	defer cancel()

	followed, err := r.repo.FollowedIDs(fetchCtx, viewerID)
	if err != nil {
		r.emptyResult(ctx, "users", "follow graph fetch failed", viewerID, err)
		return suggestions
	}

	exclude := make(map[string]struct{}, len(followed)+1)
	for id := range followed {
		exclude[id] = struct{}{}
	}
	exclude[viewerID] = struct{}{}

	users, err := r.repo.CandidateUsers(fetchCtx, exclude, r.fetchSize(limit))
	if err != nil {
		r.emptyResult(ctx, "users", "candidate fetch failed", viewerID, err)
		return suggestions
	}

	now := time.Now()
	scored := make([]RankedUser, 0, len(users))
	for _, user := range users {
		if _, excluded := exclude[user.ID]; excluded {
			continue
		}
		total, breakdown := r.users.Score(user, now)
		scored = append(scored, RankedUser{User: user, Score: total, Breakdown: breakdown})

		switch user.Role {
		case ranking.RoleVerified:
			suggestions.Stats.Verified++
		case ranking.RoleAdmin:
			suggestions.Stats.Admin++
		}
	}
	suggestions.Stats.TotalScored = len(scored)

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	suggestions.Items = scored
	suggestions.Stats.PageAverageScore = averageUserScore(scored)

	tracing.SetAttributes(ctx,
		attribute.Int("recs.candidates", suggestions.Stats.TotalScored),
	)
	if r.config.Metrics != nil {
		r.config.Metrics.ObserveRequest(SurfaceUsers, time.Since(start).Seconds(), suggestions.Stats.TotalScored)
	}

	return suggestions
}

// normalize clamps page and limit into their valid ranges.
func (r *Recommender) normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = r.config.DefaultLimit
	}
	if limit > r.config.MaxLimit {
		limit = r.config.MaxLimit
	}
	return page, limit
}

// fetchSize over-fetches relative to the page size, capped at the ceiling.
func (r *Recommender) fetchSize(limit int) int {
	size := limit * r.config.FetchMultiplier
	if size > r.config.FetchCeiling {
		size = r.config.FetchCeiling
	}
	return size
}

// fetchContext applies the configured fetch timeout, if any.
func (r *Recommender) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.FetchTimeout > 0 {
		return context.WithTimeout(ctx, r.config.FetchTimeout)
	}
	return ctx, func() {}
}

// emptyResult logs and counts a degraded empty response. Upstream
// failures are deliberately not propagated; callers see the same shape
// as "no content".
func (r *Recommender) emptyResult(ctx context.Context, surface, msg, viewerID string, err error) {
	r.config.Logger.WarnContext(ctx, msg,
		"surface", surface,
		"viewer_id", viewerID,
		"error", err)
	if r.config.Metrics != nil {
		r.config.Metrics.IncEmptyResult(surface, "fetch_error")
	}
}

// pageSlice returns the 1-based page of the given size.
func pageSlice(items []RankedPost, page, limit int) []RankedPost {
	offset := (page - 1) * limit
	if offset >= len(items) {
		return []RankedPost{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func averagePostScore(items []RankedPost) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += item.Score
	}
	return sum / float64(len(items))
}

func averageUserScore(items []RankedUser) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += item.Score
	}
	return sum / float64(len(items))
}
