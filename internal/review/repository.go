package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines review data operations.
type Repository interface {
	// Create stores a new review with a generated ID. Returns
	// ErrDuplicateReview when the author already has a live review of the
	// product.
	Create(ctx context.Context, review *Review) error

	// GetByID retrieves a review, excluding soft-deleted reviews.
	GetByID(ctx context.Context, id string) (*Review, error)

	// Delete soft-deletes a review.
	Delete(ctx context.Context, id string) error

	// SetLabels replaces a review's moderation labels.
	SetLabels(ctx context.Context, id string, labels []string) (*Review, error)

	// Flag adds the flagged label. Flagging twice is a no-op.
	Flag(ctx context.Context, id string) (*Review, error)

	// ListByProduct returns a product's visible reviews ordered by
	// created_at DESC, id ASC. Hidden, spam and deleted reviews are excluded.
	// If cursor is nil, starts from the most recent review.
	// Returns reviews, next cursor (nil if no more), and error.
	ListByProduct(ctx context.Context, productID string, limit int, cursor *Cursor) ([]*Review, *Cursor, error)

	// ListModerationQueue returns flagged, live reviews oldest first.
	ListModerationQueue(ctx context.Context, limit int) ([]*Review, error)

	// RatingsByProduct returns the counted ratings of each product. A nil
	// productIDs returns every product with at least one counted rating.
	RatingsByProduct(ctx context.Context, productIDs []string) (map[string][]float64, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	reviews map[string]*Review
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory review repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		reviews: make(map[string]*Review),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new review.
func (r *InMemoryRepository) Create(ctx context.Context, review *Review) error {
	if err := ValidateLabels(review.Labels); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reviews {
		if existing.IsDeleted() {
			continue
		}
		if existing.ProductID == review.ProductID && existing.AuthorID == review.AuthorID {
			return ErrDuplicateReview
		}
	}

	now := r.now()
	review.ID = uuid.New().String()
	review.Labels = normalizeLabels(review.Labels)
	review.CreatedAt = now
	review.UpdatedAt = now
	review.DeletedAt = nil

	r.reviews[review.ID] = review.clone()
	return nil
}

// GetByID retrieves a review by ID, excluding soft-deleted reviews.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	review, ok := r.reviews[id]
	if !ok || review.IsDeleted() {
		return nil, ErrReviewNotFound
	}
	return review.clone(), nil
}

// Delete soft-deletes a review.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	review, ok := r.reviews[id]
	if !ok || review.IsDeleted() {
		return ErrReviewNotFound
	}

	now := r.now()
	review.DeletedAt = &now
	review.UpdatedAt = now
	return nil
}

// SetLabels replaces a review's moderation labels.
func (r *InMemoryRepository) SetLabels(ctx context.Context, id string, labels []string) (*Review, error) {
	if err := ValidateLabels(labels); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	review, ok := r.reviews[id]
	if !ok || review.IsDeleted() {
		return nil, ErrReviewNotFound
	}

	review.Labels = normalizeLabels(labels)
	review.UpdatedAt = r.now()
	return review.clone(), nil
}

// Flag adds the flagged label.
func (r *InMemoryRepository) Flag(ctx context.Context, id string) (*Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	review, ok := r.reviews[id]
	if !ok || review.IsDeleted() {
		return nil, ErrReviewNotFound
	}

	if !review.HasLabel(LabelFlagged) {
		review.Labels = normalizeLabels(append(review.Labels, LabelFlagged))
		review.UpdatedAt = r.now()
	}
	return review.clone(), nil
}

// ListByProduct returns a page of a product's visible reviews.
func (r *InMemoryRepository) ListByProduct(ctx context.Context, productID string, limit int, cursor *Cursor) ([]*Review, *Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*Review
	for _, review := range r.reviews {
		if review.ProductID != productID || !review.Counted() {
			continue
		}

		// Skip reviews that are newer than or at the cursor position
		if cursor != nil {
			if review.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
			if review.CreatedAt.Equal(cursor.CreatedAt) && review.ID <= cursor.ID {
				continue
			}
		}

		candidates = append(candidates, review)
	}

	sortByCreatedDesc(candidates)

	var results []*Review
	var next *Cursor
	if limit > 0 && len(candidates) > limit {
		results = candidates[:limit]
		last := results[len(results)-1]
		next = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	} else {
		results = candidates
	}

	copies := make([]*Review, len(results))
	for i, review := range results {
		copies[i] = review.clone()
	}
	return copies, next, nil
}

// ListModerationQueue returns flagged, live reviews oldest first.
func (r *InMemoryRepository) ListModerationQueue(ctx context.Context, limit int) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queue := make([]*Review, 0)
	for _, review := range r.reviews {
		if review.IsDeleted() || !review.HasLabel(LabelFlagged) {
			continue
		}
		queue = append(queue, review.clone())
	}

	sort.Slice(queue, func(i, j int) bool {
		if !queue[i].CreatedAt.Equal(queue[j].CreatedAt) {
			return queue[i].CreatedAt.Before(queue[j].CreatedAt)
		}
		return queue[i].ID < queue[j].ID
	})

	if limit > 0 && len(queue) > limit {
		queue = queue[:limit]
	}
	return queue, nil
}

// RatingsByProduct returns counted ratings keyed by product ID.
func (r *InMemoryRepository) RatingsByProduct(ctx context.Context, productIDs []string) (map[string][]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var wanted map[string]struct{}
	if productIDs != nil {
		wanted = make(map[string]struct{}, len(productIDs))
		for _, id := range productIDs {
			wanted[id] = struct{}{}
		}
	}

	// Iterate in a fixed order so rating slices are reproducible.
	ordered := make([]*Review, 0, len(r.reviews))
	for _, review := range r.reviews {
		ordered = append(ordered, review)
	}
	sortByCreatedDesc(ordered)

	out := make(map[string][]float64)
	for _, review := range ordered {
		if !review.Counted() {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[review.ProductID]; !ok {
				continue
			}
		}
		out[review.ProductID] = append(out[review.ProductID], float64(review.Rating))
	}
	return out, nil
}

// sortByCreatedDesc sorts by created_at DESC, then by ID ASC for tie-breaking.
func sortByCreatedDesc(reviews []*Review) {
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}
		return reviews[i].ID < reviews[j].ID
	})
}
