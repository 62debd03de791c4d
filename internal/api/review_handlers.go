package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/middleware"
	"github.com/onnwee/fizzrank/internal/review"
)

// CreateReviewRequest is the body of POST /products/{slug}/reviews.
// Rating is decoded as a number so fractional values can be rejected with
// invalid_rating instead of a generic decode error.
type CreateReviewRequest struct {
	Rating *float64 `json:"rating"`
	Title  string   `json:"title,omitempty"`
	Body   string   `json:"body"`
}

// ReviewPage is a page of reviews.
type ReviewPage struct {
	Reviews    []*review.Review `json:"reviews"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ReviewHandlers serves review listing, submission and flagging.
type ReviewHandlers struct {
	catalog catalog.Repository
	reviews review.Repository
}

// NewReviewHandlers creates ReviewHandlers.
func NewReviewHandlers(cat catalog.Repository, reviews review.Repository) *ReviewHandlers {
	return &ReviewHandlers{catalog: cat, reviews: reviews}
}

// ListReviews handles GET /products/{slug}/reviews?cursor=&limit=.
func (h *ReviewHandlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	product, ok := h.productFromPath(w, r)
	if !ok {
		return
	}

	limit, err := parseLimit(r, DefaultPageLimit)
	if err != nil {
		fail(w, r, ErrCodeValidation, err.Error())
		return
	}
	cursor := parseCursor(r.URL.Query().Get("cursor"))

	reviews, next, err := h.reviews.ListByProduct(r.Context(), product.ID, limit, cursor)
	if err != nil {
		internalError(w, r, "Failed to list reviews", err, "product_id", product.ID)
		return
	}

	writeJSON(w, r, http.StatusOK, ReviewPage{
		Reviews:    nonNilReviews(reviews),
		NextCursor: encodeCursor(next),
	})
}

// CreateReview handles POST /products/{slug}/reviews. The author is the
// authenticated user; each author may hold one live review per product.
func (h *ReviewHandlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	authorID := middleware.GetUserID(r.Context())
	if authorID == "" {
		fail(w, r, ErrCodeAuthFailed, "Authentication required")
		return
	}

	product, ok := h.productFromPath(w, r)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Rating == nil {
		fail(w, r, ErrCodeInvalidRating, "rating is required")
		return
	}
	rating := *req.Rating
	if math.Trunc(rating) != rating || rating < review.MinRating || rating > review.MaxRating {
		fail(w, r, ErrCodeInvalidRating, "rating must be a whole number from 1 to 5")
		return
	}

	rv := &review.Review{
		ProductID: product.ID,
		AuthorID:  authorID,
		Rating:    int(rating),
		Title:     req.Title,
		Body:      req.Body,
	}
	if err := review.Sanitize(rv); err != nil {
		switch {
		case errors.Is(err, review.ErrInvalidRating):
			fail(w, r, ErrCodeInvalidRating, err.Error())
		default:
			fail(w, r, ErrCodeValidation, err.Error())
		}
		return
	}

	if err := h.reviews.Create(r.Context(), rv); err != nil {
		if errors.Is(err, review.ErrDuplicateReview) {
			fail(w, r, ErrCodeDuplicateReview, "You have already reviewed this product")
			return
		}
		internalError(w, r, "Failed to create review", err, "product_id", product.ID)
		return
	}

	slog.InfoContext(r.Context(), "review created",
		"review_id", rv.ID, "product_id", product.ID, "rating", rv.Rating)
	writeJSON(w, r, http.StatusCreated, rv)
}

// FlagReview handles POST /reviews/{id}/flag. Flagging queues the review for
// moderation without hiding it.
func (h *ReviewHandlers) FlagReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rv, err := h.reviews.Flag(r.Context(), id)
	if err != nil {
		if errors.Is(err, review.ErrReviewNotFound) {
			fail(w, r, ErrCodeNotFound, "Review not found")
			return
		}
		internalError(w, r, "Failed to flag review", err, "review_id", id)
		return
	}

	slog.InfoContext(r.Context(), "review flagged", "review_id", rv.ID)
	writeJSON(w, r, http.StatusAccepted, map[string]string{"id": rv.ID, "status": review.LabelFlagged})
}

func (h *ReviewHandlers) productFromPath(w http.ResponseWriter, r *http.Request) (*catalog.Product, bool) {
	product, err := h.catalog.GetProductBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			fail(w, r, ErrCodeProductNotFound, "Product not found")
			return nil, false
		}
		internalError(w, r, "Failed to load product", err)
		return nil, false
	}
	return product, true
}
