package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/ranking"
	"github.com/onnwee/fizzrank/internal/review"
)

// BrandDetailResponse is the body of GET /brands/{slug}.
type BrandDetailResponse struct {
	Brand    *catalog.Brand  `json:"brand"`
	Products []ProductCard   `json:"products"`
	Ranking  []RankedProduct `json:"ranking"`
}

// ProductDetailResponse is the body of GET /products/{slug}.
type ProductDetailResponse struct {
	Product    *catalog.Product `json:"product"`
	Brand      *catalog.Brand   `json:"brand,omitempty"`
	ImageURL   string           `json:"image_url,omitempty"`
	Aggregate  ranking.Result   `json:"aggregate"`
	Reviews    []*review.Review `json:"reviews"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// CatalogHandlers serves the public brand and product pages.
type CatalogHandlers struct {
	catalog     catalog.Repository
	reviews     review.Repository
	leaderboard *Leaderboard
	imageURL    func(key string) string
}

// NewCatalogHandlers creates CatalogHandlers. imageURL may be nil when
// product images are not served from object storage.
func NewCatalogHandlers(cat catalog.Repository, reviews review.Repository, leaderboard *Leaderboard, imageURL func(string) string) *CatalogHandlers {
	return &CatalogHandlers{catalog: cat, reviews: reviews, leaderboard: leaderboard, imageURL: imageURL}
}

// ListBrands handles GET /brands.
func (h *CatalogHandlers) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.catalog.ListBrands(r.Context())
	if err != nil {
		internalError(w, r, "Failed to list brands", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"brands": brands})
}

// GetBrand handles GET /brands/{slug}: the brand, its products with
// aggregates and the brand-profile ranking. Ranking failures degrade to an
// empty ranking.
func (h *CatalogHandlers) GetBrand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, err := h.catalog.GetBrandBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		if errors.Is(err, catalog.ErrBrandNotFound) {
			fail(w, r, ErrCodeNotFound, "Brand not found")
			return
		}
		internalError(w, r, "Failed to load brand", err)
		return
	}

	filter := catalog.Filter{BrandID: brand.ID}
	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		internalError(w, r, "Failed to list products", err, "brand_id", brand.ID)
		return
	}

	ranked, err := h.leaderboard.Ranked(ctx, ranking.ProfileBrand, filter)
	if err != nil {
		slog.ErrorContext(ctx, "brand ranking unavailable", "brand_id", brand.ID, "error", err)
		ranked = []RankedProduct{}
	}

	writeJSON(w, r, http.StatusOK, BrandDetailResponse{
		Brand:    brand,
		Products: h.leaderboard.Cards(ctx, ranking.ProfileBrand, products, h.imageURL),
		Ranking:  ranked,
	})
}

// ListProducts handles GET /products?brand=&flavor=&q=.
func (h *CatalogHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	filter := catalog.Filter{
		Flavor: strings.TrimSpace(query.Get("flavor")),
		Query:  strings.TrimSpace(query.Get("q")),
	}

	if slug := strings.TrimSpace(query.Get("brand")); slug != "" {
		brand, err := h.catalog.GetBrandBySlug(ctx, slug)
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

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		internalError(w, r, "Failed to list products", err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"products": h.leaderboard.Cards(ctx, ranking.ProfileOverall, products, h.imageURL),
	})
}

// GetProduct handles GET /products/{slug}: the product, its aggregate and
// the first page of visible reviews.
func (h *CatalogHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product, err := h.catalog.GetProductBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			fail(w, r, ErrCodeProductNotFound, "Product not found")
			return
		}
		internalError(w, r, "Failed to load product", err)
		return
	}

	resp := ProductDetailResponse{Product: product}
	if h.imageURL != nil {
		resp.ImageURL = h.imageURL(product.ImageKey)
	}

	brand, err := h.catalog.GetBrand(ctx, product.BrandID)
	if err != nil {
		slog.WarnContext(ctx, "product brand unavailable", "product_id", product.ID, "error", err)
	} else {
		resp.Brand = brand
	}

	cards := h.leaderboard.Cards(ctx, ranking.ProfileOverall, []*catalog.Product{product}, nil)
	resp.Aggregate = cards[0].Aggregate

	reviews, next, err := h.reviews.ListByProduct(ctx, product.ID, DefaultPageLimit, nil)
	if err != nil {
		internalError(w, r, "Failed to list reviews", err, "product_id", product.ID)
		return
	}
	resp.Reviews = nonNilReviews(reviews)
	resp.NextCursor = encodeCursor(next)

	writeJSON(w, r, http.StatusOK, resp)
}

func nonNilReviews(reviews []*review.Review) []*review.Review {
	if reviews == nil {
		return []*review.Review{}
	}
	return reviews
}
