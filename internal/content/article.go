// Package content stores the editorial articles published alongside reviews.
package content

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/onnwee/fizzrank/internal/catalog"
)

// Common errors for content operations.
var (
	ErrArticleNotFound = errors.New("article not found")
	ErrDuplicateSlug   = errors.New("article slug already in use")
	ErrInvalidTitle    = errors.New("article title must contain at least one letter or digit")
)

// Article is an editorial piece. Articles with a zero or future PublishedAt
// are drafts and never listed publicly.
type Article struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	BodyHTML    string    `json:"body_html"`
	Author      string    `json:"author,omitempty"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPublished reports whether the article is visible at now.
func (a *Article) IsPublished(now time.Time) bool {
	return !a.PublishedAt.IsZero() && !a.PublishedAt.After(now)
}

// HasTag reports whether the article carries tag (case-insensitive).
func (a *Article) HasTag(tag string) bool {
	tag = normalizeTag(tag)
	return slices.Contains(a.Tags, tag)
}

func (a *Article) clone() *Article {
	c := *a
	c.Tags = slices.Clone(a.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return &c
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// normalizeTags lowercases, trims, sorts and deduplicates tags.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = normalizeTag(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func prepareArticle(a *Article) error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Slug == "" {
		a.Slug = catalog.Slugify(a.Title)
	}
	if a.Slug == "" {
		return ErrInvalidTitle
	}
	a.Tags = normalizeTags(a.Tags)
	if a.Summary == "" {
		a.Summary = Excerpt(a.BodyHTML, DefaultExcerptRunes)
	}
	return nil
}
