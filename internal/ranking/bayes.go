package ranking

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when a rating is not a finite number inside the
// configured scale, or when ranking parameters are unusable.
var ErrInvalidInput = errors.New("invalid rating input")

// DefaultBaselineFallback is the neutral-midpoint default used as the baseline
// when the rating pool is empty. It is only a default; callers pass their own.
const DefaultBaselineFallback = 3.5

// Scale is the inclusive range of valid rating values.
type Scale struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DefaultScale is the 1-5 star scale used across the site.
var DefaultScale = Scale{Min: 1, Max: 5}

// Validate checks a single rating value against the scale.
func (s Scale) Validate(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: rating %v is not a finite number", ErrInvalidInput, v)
	}
	if v < s.Min || v > s.Max {
		return fmt.Errorf("%w: rating %v outside scale [%v, %v]", ErrInvalidInput, v, s.Min, s.Max)
	}
	return nil
}

// Params are the per-page ranking parameters.
type Params struct {
	Confidence float64 `json:"confidence"`  // C: weight given to the baseline
	MinReviews int     `json:"min_reviews"` // M: products below this count are excluded
	TopN       int     `json:"top_n"`       // N: truncate ranked output; 0 means unbounded
}

// Validate rejects parameters the formula cannot work with.
func (p Params) Validate() error {
	if p.Confidence < 0 || math.IsNaN(p.Confidence) || math.IsInf(p.Confidence, 0) {
		return fmt.Errorf("%w: confidence must be a finite value >= 0 (got %v)", ErrInvalidInput, p.Confidence)
	}
	if p.MinReviews < 0 {
		return fmt.Errorf("%w: min reviews must be >= 0 (got %d)", ErrInvalidInput, p.MinReviews)
	}
	if p.TopN < 0 {
		return fmt.Errorf("%w: top N must be >= 0 (got %d)", ErrInvalidInput, p.TopN)
	}
	return nil
}

// Result is the aggregate for a single product. BayesianScore is only
// meaningful when Ranked is true.
type Result struct {
	TrueAverage   float64 `json:"true_average"`
	BayesianScore float64 `json:"bayesian_score"`
	RatingCount   int     `json:"rating_count"`
	Ranked        bool    `json:"ranked"`
}

// Baseline returns the arithmetic mean of every rating in the pool, or
// fallback when the pool is empty.
func Baseline(pool []float64, fallback float64, scale Scale) (float64, error) {
	if len(pool) == 0 {
		return fallback, nil
	}
	var sum float64
	for _, v := range pool {
		if err := scale.Validate(v); err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(pool)), nil
}

// Aggregate computes the display average and Bayesian score for one product.
//
// RatingCount is always reported. When it is below p.MinReviews the product is
// not ranked and BayesianScore stays zero; TrueAverage is still filled in for
// display whenever there is at least one rating. Empty input is not an error.
func Aggregate(ratings []float64, baseline float64, p Params, scale Scale) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{RatingCount: len(ratings)}
	if len(ratings) == 0 {
		return res, nil
	}

	var sum float64
	for _, v := range ratings {
		if err := scale.Validate(v); err != nil {
			return Result{}, err
		}
		sum += v
	}

	count := float64(len(ratings))
	res.TrueAverage = sum / count

	if len(ratings) < p.MinReviews {
		return res, nil
	}

	res.BayesianScore = (p.Confidence*baseline + sum) / (p.Confidence + count)
	res.Ranked = true
	return res, nil
}
