// Package ranking computes recommendation scores for posts and users
// with calibration support for deploy-time weight tuning.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/scoring.calibration.json")
//	if err != nil {
//		slog.Warn("using default weights", "error", err)
//	}
//
//	src := ranking.NewRandSource()
//	posts := ranking.NewPostScorer(weights, src)
//	users := ranking.NewUserScorer(weights, src)
//
//	score, breakdown := posts.Score(post, viewer, time.Now())
//
// Scoring Model:
//
// Both scorers are weighted sums of independent signals. Post scores are
// deterministic except for the zero-score floor: a raw total of exactly
// zero is replaced by a uniform random value in [0, 5). User scores
// always include a uniform jitter in [0, 10) as a diversity injector,
// so identical inputs produce slightly different totals. Inject a
// deterministic RandSource to pin down either behavior in tests.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of scoring weights via
// JSON configuration files loaded at startup. Partial files merge over
// the defaults; a missing or malformed file degrades to the defaults.
package ranking
