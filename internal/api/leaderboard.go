package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/ranking"
	"github.com/onnwee/fizzrank/internal/review"
)

// ErrUnknownProfile is returned for a ranking profile name that is not configured.
var ErrUnknownProfile = errors.New("unknown ranking profile")

// RankedProduct is one row of a ranked list.
type RankedProduct struct {
	Position int              `json:"position"`
	Product  *catalog.Product `json:"product"`
	ranking.Result
}

// ProductCard is a product with its display aggregate.
type ProductCard struct {
	Product   *catalog.Product `json:"product"`
	ImageURL  string           `json:"image_url,omitempty"`
	Aggregate ranking.Result   `json:"aggregate"`
}

// TierView is one tier of the tier list page.
type TierView struct {
	Tier     ranking.Tier    `json:"tier"`
	Products []RankedProduct `json:"products"`
}

// Leaderboard computes aggregates and ranked lists from the catalog and the
// counted review ratings.
type Leaderboard struct {
	catalog  catalog.Repository
	reviews  review.Repository
	profiles *ranking.Profiles
	logger   *slog.Logger
}

// NewLeaderboard creates a Leaderboard. A nil profiles uses ranking.DefaultProfiles.
func NewLeaderboard(cat catalog.Repository, reviews review.Repository, profiles *ranking.Profiles, logger *slog.Logger) *Leaderboard {
	if profiles == nil {
		profiles = ranking.DefaultProfiles()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Leaderboard{catalog: cat, reviews: reviews, profiles: profiles, logger: logger}
}

// Ranked ranks the products matching filter with the named profile. The
// baseline is the mean of every counted rating of the candidate products.
func (l *Leaderboard) Ranked(ctx context.Context, profile string, filter catalog.Filter) ([]RankedProduct, error) {
	params, ok := l.profiles.Profile(profile)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	entries, byID, err := l.rank(ctx, params, filter)
	if err != nil {
		return nil, err
	}
	return toRanked(entries, byID), nil
}

// Tiers ranks every product with the tiers profile and groups the result by
// the configured score bands.
func (l *Leaderboard) Tiers(ctx context.Context) ([]TierView, error) {
	params, ok := l.profiles.Profile(ranking.ProfileTiers)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, ranking.ProfileTiers)
	}
	entries, byID, err := l.rank(ctx, params, catalog.Filter{})
	if err != nil {
		return nil, err
	}

	groups := ranking.GroupByTier(entries, l.profiles.Tiers)
	views := make([]TierView, len(groups))
	for i, g := range groups {
		views[i] = TierView{Tier: g.Tier, Products: toRanked(g.Entries, byID)}
	}
	return views, nil
}

// Aggregates computes the display aggregate of each product with the named
// profile against the site-wide baseline, keyed by product ID. Products with
// no counted ratings get a zero-count result.
func (l *Leaderboard) Aggregates(ctx context.Context, profile string, products []*catalog.Product) (map[string]ranking.Result, error) {
	params, ok := l.profiles.Profile(profile)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}

	all, err := l.reviews.RatingsByProduct(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("loading ratings: %w", err)
	}

	var pool []float64
	for _, ratings := range all {
		pool = append(pool, ratings...)
	}
	baseline, err := ranking.Baseline(pool, l.profiles.BaselineFallback, l.profiles.Scale)
	if err != nil {
		return nil, fmt.Errorf("computing baseline: %w", err)
	}

	out := make(map[string]ranking.Result, len(products))
	for _, p := range products {
		res, err := ranking.Aggregate(all[p.ID], baseline, params, l.profiles.Scale)
		if err != nil {
			return nil, fmt.Errorf("aggregating product %s: %w", p.ID, err)
		}
		out[p.ID] = res
	}
	return out, nil
}

// Cards builds product cards, degrading to zero aggregates when the
// ratings cannot be loaded.
func (l *Leaderboard) Cards(ctx context.Context, profile string, products []*catalog.Product, imageURL func(string) string) []ProductCard {
	aggregates, err := l.Aggregates(ctx, profile, products)
	if err != nil {
		l.logger.ErrorContext(ctx, "product aggregates unavailable", "profile", profile, "error", err)
		aggregates = nil
	}

	cards := make([]ProductCard, len(products))
	for i, p := range products {
		cards[i] = ProductCard{Product: p, Aggregate: aggregates[p.ID]}
		if imageURL != nil {
			cards[i].ImageURL = imageURL(p.ImageKey)
		}
	}
	return cards
}

func (l *Leaderboard) rank(ctx context.Context, params ranking.Params, filter catalog.Filter) ([]ranking.Entry, map[string]*catalog.Product, error) {
	products, err := l.catalog.ListProducts(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("listing products: %w", err)
	}

	byID := make(map[string]*catalog.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	ratings, err := l.reviews.RatingsByProduct(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("loading ratings: %w", err)
	}

	entries, err := ranking.Rank(ranking.RankInput{
		Ratings:  ratings,
		Fallback: l.profiles.BaselineFallback,
		Scale:    l.profiles.Scale,
	}, params)
	if err != nil {
		return nil, nil, fmt.Errorf("ranking products: %w", err)
	}
	return entries, byID, nil
}

func toRanked(entries []ranking.Entry, byID map[string]*catalog.Product) []RankedProduct {
	out := make([]RankedProduct, 0, len(entries))
	for _, e := range entries {
		p, ok := byID[e.ProductID]
		if !ok {
			continue
		}
		out = append(out, RankedProduct{Position: len(out) + 1, Product: p, Result: e.Result})
	}
	return out
}
