// Package review stores user reviews of products and the moderation state
// that decides which ratings count toward rankings.
package review

import (
	"errors"
	"slices"
	"time"
)

// Common errors for review operations.
var (
	ErrReviewNotFound  = errors.New("review not found")
	ErrDuplicateReview = errors.New("author has already reviewed this product")
)

// Review is one author's rating and write-up of a product.
type Review struct {
	ID        string     `json:"id"`
	ProductID string     `json:"product_id"`
	AuthorID  string     `json:"author_id"`
	Rating    int        `json:"rating"`
	Title     string     `json:"title,omitempty"`
	Body      string     `json:"body"`
	Labels    []string   `json:"labels,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Cursor is a position in a product's review list.
// Uses (created_at, id) for stable pagination with tie-breaking.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// clone returns a copy that shares no slices with r.
func (r *Review) clone() *Review {
	c := *r
	c.Labels = slices.Clone(r.Labels)
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
