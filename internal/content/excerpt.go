package content

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DefaultExcerptRunes suits meta descriptions and list cards.
const DefaultExcerptRunes = 160

// Excerpt returns up to maxRunes of the visible text of an HTML fragment.
// Whitespace is collapsed, script and style contents are dropped, and a cut
// falls on a word boundary followed by an ellipsis.
func Excerpt(fragment string, maxRunes int) string {
	if strings.TrimSpace(fragment) == "" || maxRunes <= 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxRunes-1])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:.-") + "…"
}
