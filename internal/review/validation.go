package review

import (
	"errors"
	"fmt"

	"github.com/onnwee/fizzrank/internal/validate"
)

// Rating bounds for user reviews.
const (
	MinRating = 1
	MaxRating = 5
)

// Validation errors.
var (
	ErrInvalidRating = errors.New("rating must be a whole number of stars")
	ErrInvalidTitle  = errors.New("invalid review title")
	ErrInvalidBody   = errors.New("invalid review body")
)

// Sanitize validates a review submission in place: the rating must be
// within [MinRating, MaxRating] and the text fields are trimmed, length
// checked and HTML escaped.
func Sanitize(r *Review) error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return fmt.Errorf("%w: got %d, want %d..%d", ErrInvalidRating, r.Rating, MinRating, MaxRating)
	}

	title, err := validate.ReviewTitle(r.Title)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTitle, err)
	}
	body, err := validate.ReviewBody(r.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	r.Title = title
	r.Body = body
	return nil
}
