// Package catalog holds the brands and products that reviews and rankings
// refer to.
package catalog

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// Common errors for catalog operations.
var (
	ErrBrandNotFound   = errors.New("brand not found")
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateSlug   = errors.New("slug already in use")
	ErrInvalidName     = errors.New("name must contain at least one letter or digit")
)

// Brand is a sparkling-water maker.
type Brand struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Country     string    `json:"country,omitempty"`
	Website     string    `json:"website,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is a single drink sold by a brand.
type Product struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brand_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Flavor      string    `json:"flavor,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageKey    string    `json:"image_key,omitempty"`
	Caffeinated bool      `json:"caffeinated"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter narrows ListProducts. Zero fields match everything.
type Filter struct {
	BrandID string
	Flavor  string
	// Query is a case-insensitive substring match on the product name.
	Query string
}

func (f Filter) matches(p *Product) bool {
	if f.BrandID != "" && p.BrandID != f.BrandID {
		return false
	}
	if f.Flavor != "" && !strings.EqualFold(p.Flavor, f.Flavor) {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

// Slugify turns a display name into a URL slug: lowercase letters and digits
// separated by single hyphens. Returns "" when name has no letters or digits.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// "Bubly's" -> "bublys"
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}
