// Package ranking turns raw per-review ratings into display averages and
// confidence-adjusted ranking scores for the "best of" listing pages.
//
// Basic Usage:
//
//	// Load ranking profiles (typically at startup)
//	profiles, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default ranking profiles", "error", err)
//	}
//
//	// Rank every product with enough reviews
//	params, ok := profiles.Profile(ranking.ProfileOverall)
//	if !ok {
//		return fmt.Errorf("unknown profile %q", ranking.ProfileOverall)
//	}
//	entries, err := ranking.Rank(ranking.RankInput{
//		Ratings:  ratingsByProduct,          // product ID -> raw ratings
//		Fallback: profiles.BaselineFallback, // neutral-midpoint default
//		Scale:    profiles.Scale,
//	}, params)
//
// Scoring:
//
// A product's Bayesian score blends the sum of its own ratings with the
// baseline mean of the whole candidate pool:
//
//	score = (C * baseline + sum) / (C + count)
//
// C is the confidence constant. Products with fewer than MinReviews ratings
// are dropped from ranked output instead of being scored. The unadjusted mean
// (TrueAverage) is reported for display only and never used for ordering.
//
// Calibration:
//
// Named profiles (overall, tiers, brand, flavor) are loaded from a JSON file
// at startup and merged over the defaults, so each page can be tuned without
// code changes. See configs/ranking.calibration.json.
package ranking
