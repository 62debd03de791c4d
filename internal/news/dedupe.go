package news

import (
	"sort"
	"strings"
)

// Dedupe merges per-term batches into one list of distinct stories.
//
// Batches are visited in order (the configured search-term order) and items
// within a batch in feed order; the first item seen for a story is kept and
// later look-alikes are dropped. An item is a duplicate when its link equals
// an accepted link, or when its normalized title is Similar to any accepted
// title. Items without a link or title are skipped.
func Dedupe(batches [][]Item, threshold float64) []Item {
	seenLinks := make(map[string]struct{})
	var acceptedTitles []string
	out := make([]Item, 0)

	for _, batch := range batches {
		for _, item := range batch {
			link := strings.TrimSpace(item.Link)
			if link == "" || strings.TrimSpace(item.Title) == "" {
				continue
			}
			if _, dup := seenLinks[link]; dup {
				continue
			}

			normalized := NormalizeTitle(item.Title)
			if isSimilarToAny(normalized, acceptedTitles, threshold) {
				continue
			}

			item.Link = link
			seenLinks[link] = struct{}{}
			acceptedTitles = append(acceptedTitles, normalized)
			out = append(out, item)
		}
	}
	return out
}

func isSimilarToAny(title string, accepted []string, threshold float64) bool {
	for _, other := range accepted {
		if Similar(title, other, threshold) {
			return true
		}
	}
	return false
}

// SortByRecency orders items newest first. Items with equal timestamps keep
// their relative order.
func SortByRecency(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
