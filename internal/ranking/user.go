package ranking

import (
	"math"
	"time"
)

// UserScorer computes "suggested to follow" scores for user candidates.
// Safe for concurrent use; all state is read-only after construction.
type UserScorer struct {
	weights UserWeights
	rand    RandSource
}

// NewUserScorer creates a user scorer with the given weights and random
// source. A nil weights pointer selects the defaults; a nil random
// source selects the system generator.
func NewUserScorer(weights *Weights, src RandSource) *UserScorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	if src == nil {
		src = NewRandSource()
	}
	return &UserScorer{
		weights: weights.User,
		rand:    src,
	}
}

// Score computes the follow-suggestion score for a user at the given
// time. Every score includes a uniform random jitter in
// [0, JitterCeiling), so two calls on identical input differ slightly.
// That is an intentional diversity injector, not a bug; compare ranges
// rather than exact totals.
func (s *UserScorer) Score(user User, now time.Time) (float64, UserBreakdown) {
	b := UserBreakdown{Base: s.weights.Base}

	// The role bonus branches on a single enum: admin does not also
	// receive the verified bonus.
	switch user.Role {
	case RoleAdmin:
		b.RoleBonus = s.weights.AdminBonus
	case RoleVerified:
		b.RoleBonus = s.weights.VerifiedBonus
	}

	b.Activity = math.Min(float64(user.RecentPostCount)*s.weights.ActivityWeight, s.weights.ActivityCap)
	b.Popularity = math.Min(float64(user.FollowerCount)*s.weights.FollowerWeight, s.weights.PopularityCap)

	if WithinDays(user.CreatedAt, now, NewcomerWindowDays) {
		b.Newcomer = s.weights.NewcomerBonus
	}

	b.Random = s.rand.Float64() * JitterCeiling

	b.Total = b.Base + b.RoleBonus + b.Activity + b.Popularity + b.Newcomer + b.Random
	return b.Total, b
}
