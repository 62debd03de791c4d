package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/ranking"
)

// BestResponse is the body of GET /best.
type BestResponse struct {
	Profile  string          `json:"profile"`
	Flavor   string          `json:"flavor,omitempty"`
	Brand    string          `json:"brand,omitempty"`
	Products []RankedProduct `json:"products"`
}

// RankingHandlers serves the ranked list pages.
type RankingHandlers struct {
	catalog     catalog.Repository
	leaderboard *Leaderboard
}

// NewRankingHandlers creates RankingHandlers.
func NewRankingHandlers(cat catalog.Repository, leaderboard *Leaderboard) *RankingHandlers {
	return &RankingHandlers{catalog: cat, leaderboard: leaderboard}
}

// Best handles GET /best?profile=&flavor=&brand=.
//
// profile defaults to overall. The flavor profile requires flavor and the
// brand profile requires a brand slug. Aggregation failures degrade to an
// empty list.
func (h *RankingHandlers) Best(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	profile := strings.TrimSpace(query.Get("profile"))
	if profile == "" {
		profile = ranking.ProfileOverall
	}
	if profile == ranking.ProfileTiers {
		fail(w, r, ErrCodeUnknownProfile, "Use /best/tiers for the tier list")
		return
	}

	resp := BestResponse{Profile: profile}
	var filter catalog.Filter
	switch profile {
	case ranking.ProfileFlavor:
		resp.Flavor = strings.TrimSpace(query.Get("flavor"))
		if resp.Flavor == "" {
			fail(w, r, ErrCodeValidation, "flavor is required for the flavor profile")
			return
		}
		filter.Flavor = resp.Flavor
	case ranking.ProfileBrand:
		resp.Brand = strings.TrimSpace(query.Get("brand"))
		if resp.Brand == "" {
			fail(w, r, ErrCodeValidation, "brand is required for the brand profile")
			return
		}
		brand, err := h.catalog.GetBrandBySlug(ctx, resp.Brand)
		if err != nil {
			if errors.Is(err, catalog.ErrBrandNotFound) {
				fail(w, r, ErrCodeNotFound, "Brand not found")
				return
			}
			internalError(w, r, "Failed to load brand", err)
			return
		}
		filter.BrandID = brand.ID
	}

	products, err := h.leaderboard.Ranked(ctx, profile, filter)
	switch {
	case errors.Is(err, ErrUnknownProfile):
		fail(w, r, ErrCodeUnknownProfile, "Unknown ranking profile: "+profile)
		return
	case err != nil:
		slog.ErrorContext(ctx, "ranking unavailable", "profile", profile, "error", err)
		products = []RankedProduct{}
	}
	resp.Products = products

	writeJSON(w, r, http.StatusOK, resp)
}

// Tiers handles GET /best/tiers.
func (h *RankingHandlers) Tiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.leaderboard.Tiers(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "tier list unavailable", "error", err)
		tiers = []TierView{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tiers": tiers})
}
