package ranking

import (
	"fmt"
	"sort"
)

// Entry is one ranked product.
type Entry struct {
	ProductID string `json:"product_id"`
	Result
}

// RankInput carries the ratings to rank.
type RankInput struct {
	// Ratings maps product ID to that product's raw ratings.
	Ratings map[string][]float64
	// Pool is the set of ratings the baseline mean is computed from.
	// When nil, the union of all Ratings is used.
	Pool []float64
	// Fallback is the baseline used when the pool is empty.
	Fallback float64
	// Scale bounds every rating value. Zero value means DefaultScale.
	Scale Scale
}

// Rank aggregates every product, drops those with too few reviews and orders
// the rest by Bayesian score descending. Ties go to the product with more
// reviews, then to the lower product ID so the order is total. The result is
// truncated to p.TopN when it is positive.
func Rank(in RankInput, p Params) ([]Entry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	scale := in.Scale
	if scale == (Scale{}) {
		scale = DefaultScale
	}

	pool := in.Pool
	if pool == nil {
		for _, ratings := range in.Ratings {
			pool = append(pool, ratings...)
		}
	}

	baseline, err := Baseline(pool, in.Fallback, scale)
	if err != nil {
		return nil, fmt.Errorf("computing baseline: %w", err)
	}

	entries := make([]Entry, 0, len(in.Ratings))
	for productID, ratings := range in.Ratings {
		res, err := Aggregate(ratings, baseline, p, scale)
		if err != nil {
			return nil, fmt.Errorf("aggregating product %s: %w", productID, err)
		}
		if !res.Ranked {
			continue
		}
		entries = append(entries, Entry{ProductID: productID, Result: res})
	}

	SortEntries(entries)

	if p.TopN > 0 && len(entries) > p.TopN {
		entries = entries[:p.TopN]
	}
	return entries, nil
}

// SortEntries orders entries by BayesianScore DESC, RatingCount DESC, ProductID ASC.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BayesianScore != entries[j].BayesianScore {
			return entries[i].BayesianScore > entries[j].BayesianScore
		}
		if entries[i].RatingCount != entries[j].RatingCount {
			return entries[i].RatingCount > entries[j].RatingCount
		}
		return entries[i].ProductID < entries[j].ProductID
	})
}

// Tier is a named score band for tier-grouped views.
type Tier struct {
	Name     string  `json:"name"`
	MinScore float64 `json:"min_score"`
}

// TierGroup holds the ranked entries that fell into one tier.
type TierGroup struct {
	Tier    Tier    `json:"tier"`
	Entries []Entry `json:"entries"`
}

// DefaultTiers are the bands shown on the tier list page, highest first.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "S", MinScore: 4.5},
		{Name: "A", MinScore: 4.0},
		{Name: "B", MinScore: 3.5},
		{Name: "C", MinScore: 3.0},
		{Name: "D", MinScore: 0},
	}
}

// GroupByTier places each entry into the first tier (in slice order) whose
// MinScore it meets. Tiers are returned in the order given, including empty
// ones, and entries keep their relative order. Entries below every tier are
// dropped.
func GroupByTier(entries []Entry, tiers []Tier) []TierGroup {
	groups := make([]TierGroup, len(tiers))
	for i, t := range tiers {
		groups[i] = TierGroup{Tier: t, Entries: []Entry{}}
	}

	for _, e := range entries {
		for i, t := range tiers {
			if e.BayesianScore >= t.MinScore {
				groups[i].Entries = append(groups[i].Entries, e)
				break
			}
		}
	}
	return groups
}
