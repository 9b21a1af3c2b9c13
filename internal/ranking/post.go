package ranking

import (
	"math"
	"time"
)

// PostScorer computes recommendation scores for post candidates.
// Safe for concurrent use; all state is read-only after construction.
type PostScorer struct {
	weights PostWeights
	rand    RandSource
}

// NewPostScorer creates a post scorer with the given weights and random
// source. A nil weights pointer selects the defaults; a nil random
// source selects the system generator.
func NewPostScorer(weights *Weights, src RandSource) *PostScorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	if src == nil {
		src = NewRandSource()
	}
	return &PostScorer{
		weights: weights.Post,
		rand:    src,
	}
}

// Score computes the recommendation score for a post as seen by the
// viewer at the given time. Each term is computed independently and
// clamped before summing; the breakdown records the pre-sum terms.
//
// When the raw sum is exactly zero, the total is replaced by a uniform
// random value in [0, ZeroScoreFloorCeiling) so that unengaged old
// posts are shuffled rather than pinned at a visible zero. The
// breakdown terms stay at zero in that case; only Total carries the
// floor value.
func (s *PostScorer) Score(post Post, viewer Viewer, now time.Time) (float64, PostBreakdown) {
	var b PostBreakdown

	if viewer.Follows(post.AuthorID) {
		b.Following = s.weights.Following
	}

	popularity := float64(post.LikeCount)*s.weights.LikeWeight +
		float64(post.CommentCount)*s.weights.CommentWeight
	b.Popularity = math.Min(s.weights.PopularityCap, popularity)

	age := AgeInHours(post.CreatedAt, now)
	if age <= RecencyWindowHours {
		recency := s.weights.RecencyCap - age/recencyDecayHours
		b.Recency = math.Max(0, math.Min(s.weights.RecencyCap, recency))
	}

	// Verified and admin bonuses stack: an admin flagged as verified
	// receives both.
	if AuthorVerified(post) {
		b.RoleBonus += s.weights.VerifiedBonus
	}
	if AuthorRole(post) == RoleAdmin {
		b.RoleBonus += s.weights.AdminBonus
	}

	total := b.Following + b.Popularity + b.Recency + b.RoleBonus
	if total == 0 {
		total = s.rand.Float64() * ZeroScoreFloorCeiling
	}
	b.Total = total

	return total, b
}
