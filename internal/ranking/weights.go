package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// PostWeights defines the weighted-sum model for post recommendation scores.
type PostWeights struct {
	Following     float64 `json:"following"`      // Flat bonus for followed authors (default: 70)
	LikeWeight    float64 `json:"like_weight"`    // Per-like popularity contribution (default: 3)
	CommentWeight float64 `json:"comment_weight"` // Per-comment popularity contribution (default: 5)
	PopularityCap float64 `json:"popularity_cap"` // Upper bound on the popularity term (default: 20)
	RecencyCap    float64 `json:"recency_cap"`    // Upper bound on the recency term (default: 10)
	VerifiedBonus float64 `json:"verified_bonus"` // Bonus for verified authors (default: 5)
	AdminBonus    float64 `json:"admin_bonus"`    // Additional bonus for admin authors (default: 3)
}

// UserWeights defines the weighted-sum model for follow suggestions.
type UserWeights struct {
	Base           float64 `json:"base"`            // Flat base score (default: 10)
	VerifiedBonus  float64 `json:"verified_bonus"`  // Bonus for verified role (default: 20)
	AdminBonus     float64 `json:"admin_bonus"`     // Bonus for admin role (default: 30)
	ActivityWeight float64 `json:"activity_weight"` // Per recent post (default: 5)
	ActivityCap    float64 `json:"activity_cap"`    // Upper bound on the activity term (default: 50)
	FollowerWeight float64 `json:"follower_weight"` // Per follower (default: 2)
	PopularityCap  float64 `json:"popularity_cap"`  // Upper bound on the popularity term (default: 40)
	NewcomerBonus  float64 `json:"newcomer_bonus"`  // Bonus for accounts joined recently (default: 15)
}

// Weights holds all scoring weight configurations.
type Weights struct {
	Post PostWeights `json:"post"`
	User UserWeights `json:"user"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// Fixed model parameters that are not calibration knobs.
const (
	// RecencyWindowHours bounds the recency term: posts older than
	// this score zero recency.
	RecencyWindowHours = 168.0

	// recencyDecayHours is the number of hours of age that costs one
	// point of recency.
	recencyDecayHours = 24.0

	// ZeroScoreFloorCeiling is the exclusive upper bound of the random
	// floor applied when a post's raw score is exactly zero.
	ZeroScoreFloorCeiling = 5.0

	// NewcomerWindowDays is the account-age cutoff for the newcomer bonus.
	NewcomerWindowDays = 30

	// JitterCeiling is the exclusive upper bound of the random
	// diversity term added to every user score.
	JitterCeiling = 10.0
)

// DefaultWeights returns the default scoring weight configuration.
//
// Post formula: following(0|70) + min(20, likes*3 + comments*5) +
// recency(0-10 over a 7 day window) + role bonus (+5 verified, +3 admin,
// stacking). A raw total of exactly zero is replaced by a uniform random
// value in [0, 5) so fresh content is not pinned to the bottom.
//
// User formula: 10 + role bonus (20 verified or 30 admin) +
// min(50, posts*5) + min(40, followers*2) + newcomer(0|15) + uniform
// jitter in [0, 10).
func DefaultWeights() *Weights {
	return &Weights{
		Post: PostWeights{
			Following:     70,
			LikeWeight:    3,
			CommentWeight: 5,
			PopularityCap: 20,
			RecencyCap:    10,
			VerifiedBonus: 5,
			AdminBonus:    3,
		},
		User: UserWeights{
			Base:           10,
			VerifiedBonus:  20,
			AdminBonus:     30,
			ActivityWeight: 5,
			ActivityCap:    50,
			FollowerWeight: 2,
			PopularityCap:  40,
			NewcomerBonus:  15,
		},
	}
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// Partial configurations are merged with defaults. On any read or parse
// failure the defaults are returned along with the error so callers can
// degrade gracefully.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights into base weights. Only
// non-zero override values are applied, which allows partial overrides
// in the calibration file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base

	mergeWeight(&result.Post.Following, override.Post.Following)
	mergeWeight(&result.Post.LikeWeight, override.Post.LikeWeight)
	mergeWeight(&result.Post.CommentWeight, override.Post.CommentWeight)
	mergeWeight(&result.Post.PopularityCap, override.Post.PopularityCap)
	mergeWeight(&result.Post.RecencyCap, override.Post.RecencyCap)
	mergeWeight(&result.Post.VerifiedBonus, override.Post.VerifiedBonus)
	mergeWeight(&result.Post.AdminBonus, override.Post.AdminBonus)

	mergeWeight(&result.User.Base, override.User.Base)
	mergeWeight(&result.User.VerifiedBonus, override.User.VerifiedBonus)
	mergeWeight(&result.User.AdminBonus, override.User.AdminBonus)
	mergeWeight(&result.User.ActivityWeight, override.User.ActivityWeight)
	mergeWeight(&result.User.ActivityCap, override.User.ActivityCap)
	mergeWeight(&result.User.FollowerWeight, override.User.FollowerWeight)
	mergeWeight(&result.User.PopularityCap, override.User.PopularityCap)
	mergeWeight(&result.User.NewcomerBonus, override.User.NewcomerBonus)

	return &result
}

// mergeWeight applies an override value if it is non-zero.
func mergeWeight(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	type field struct {
		name string
		def  float64
		got  float64
	}
	fields := []field{
		{"post.following", defaults.Post.Following, loaded.Post.Following},
		{"post.like_weight", defaults.Post.LikeWeight, loaded.Post.LikeWeight},
		{"post.comment_weight", defaults.Post.CommentWeight, loaded.Post.CommentWeight},
		{"post.popularity_cap", defaults.Post.PopularityCap, loaded.Post.PopularityCap},
		{"post.recency_cap", defaults.Post.RecencyCap, loaded.Post.RecencyCap},
		{"post.verified_bonus", defaults.Post.VerifiedBonus, loaded.Post.VerifiedBonus},
		{"post.admin_bonus", defaults.Post.AdminBonus, loaded.Post.AdminBonus},
		{"user.base", defaults.User.Base, loaded.User.Base},
		{"user.verified_bonus", defaults.User.VerifiedBonus, loaded.User.VerifiedBonus},
		{"user.admin_bonus", defaults.User.AdminBonus, loaded.User.AdminBonus},
		{"user.activity_weight", defaults.User.ActivityWeight, loaded.User.ActivityWeight},
		{"user.activity_cap", defaults.User.ActivityCap, loaded.User.ActivityCap},
		{"user.follower_weight", defaults.User.FollowerWeight, loaded.User.FollowerWeight},
		{"user.popularity_cap", defaults.User.PopularityCap, loaded.User.PopularityCap},
		{"user.newcomer_bonus", defaults.User.NewcomerBonus, loaded.User.NewcomerBonus},
	}

	var overrides []string
	for _, f := range fields {
		if f.got != f.def {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", f.name, f.def, f.got))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded scoring calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded scoring calibration (using all defaults)")
	}
}
