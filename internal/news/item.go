// Package news fetches sparkling-water headlines from search feeds, removes
// near-duplicate stories and serves the result from a time-boxed cache.
package news

import (
	"errors"
	"fmt"
	"time"
)

// Item is a single headline shown in the news section.
type Item struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
}

var (
	// ErrParse marks a feed document that could not be parsed. It is always
	// wrapped in a *FetchError.
	ErrParse = errors.New("malformed feed document")

	// ErrTotalRefreshFailure is returned when a refresh produced no usable
	// items across every search term.
	ErrTotalRefreshFailure = errors.New("news refresh produced no items")
)

// FetchError reports a failed fetch for one search term.
type FetchError struct {
	Term string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Term, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func copyItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
