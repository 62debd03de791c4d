package news

import (
	"strings"
	"unicode"
)

// DefaultSimilarityThreshold is the token overlap above which two titles are
// treated as the same story. It is a heuristic and can produce false positives
// on very short titles, so it is configurable.
const DefaultSimilarityThreshold = 0.35

// sourceSeparator precedes the publisher name in search-feed titles,
// e.g. "Sparkling Water Sales Surge - Reuters".
const sourceSeparator = " - "

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"of": {}, "to": {}, "in": {}, "on": {}, "at": {}, "for": {},
	"with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "it": {}, "its": {}, "this": {},
	"that": {}, "into": {}, "about": {}, "after": {}, "over": {},
}

// splitSource separates a trailing " - Source" suffix from a title. It
// returns the title unchanged and an empty source when there is no suffix.
func splitSource(title string) (string, string) {
	idx := strings.LastIndex(title, sourceSeparator)
	if idx <= 0 {
		return title, ""
	}
	source := strings.TrimSpace(title[idx+len(sourceSeparator):])
	if source == "" {
		return title, ""
	}
	return strings.TrimSpace(title[:idx]), source
}

// NormalizeTitle reduces a headline to the form used for duplicate
// detection: lowercased, without the trailing " - Source" suffix,
// punctuation and stopwords, with whitespace collapsed.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	title, _ = splitSource(title)

	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// drop apostrophes so "brand's" and "brands" compare equal
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// TokenOverlap returns |A∩B| / max(|A|,|B|) over the distinct words of two
// normalized titles.
func TokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}

	denom := len(setA)
	if len(setB) > denom {
		denom = len(setB)
	}
	return float64(shared) / float64(denom)
}

// Similar reports whether two normalized titles describe the same story:
// either one is a substring of the other, or their token overlap is strictly
// greater than threshold. Empty titles never match.
//
// The substring rule is a plain byte match, so "seltzer" matches "seltzers
// rise summer". Short titles can produce false positives this way.
func Similar(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return TokenOverlap(a, b) > threshold
}

func tokenSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
