package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// DefaultGoogleNewsURL is the Google News RSS search endpoint.
const DefaultGoogleNewsURL = "https://news.google.com/rss/search"

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; fizzrank/1.0; +https://fizzrank.example)"
	maxFeedBytes     = 5 << 20
)

// Locale selects the Google News edition.
type Locale struct {
	HL   string // interface language, e.g. "en-US"
	GL   string // country, e.g. "US"
	CEID string // edition, e.g. "US:en"
}

// DefaultLocale is the US English edition.
var DefaultLocale = Locale{HL: "en-US", GL: "US", CEID: "US:en"}

// GoogleNewsFetcher fetches search results from Google News RSS.
type GoogleNewsFetcher struct {
	BaseURL   string
	Locale    Locale
	Client    *http.Client
	UserAgent string
}

// NewGoogleNewsFetcher returns a fetcher for the given locale. A zero locale
// uses DefaultLocale.
func NewGoogleNewsFetcher(locale Locale) *GoogleNewsFetcher {
	if locale == (Locale{}) {
		locale = DefaultLocale
	}
	return &GoogleNewsFetcher{
		BaseURL:   DefaultGoogleNewsURL,
		Locale:    locale,
		Client:    &http.Client{Timeout: 20 * time.Second},
		UserAgent: defaultUserAgent,
	}
}

// SearchURL builds the feed URL for a search term.
func (f *GoogleNewsFetcher) SearchURL(term string) string {
	q := url.Values{}
	q.Set("q", term)
	q.Set("hl", f.Locale.HL)
	q.Set("gl", f.Locale.GL)
	q.Set("ceid", f.Locale.CEID)
	return f.BaseURL + "?" + q.Encode()
}

// Fetch downloads and parses the result feed for term.
func (f *GoogleNewsFetcher) Fetch(ctx context.Context, term string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.SearchURL(term), nil)
	if err != nil {
		return nil, &FetchError{Term: term, Err: err}
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Term: term, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Term: term, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	// gofeed parsers keep decoding state, so each fetch gets its own.
	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &FetchError{Term: term, Err: fmt.Errorf("%w: %v", ErrParse, err)}
	}

	return itemsFromFeed(feed), nil
}

func itemsFromFeed(feed *gofeed.Feed) []Item {
	feedTitle := strings.TrimSpace(feed.Title)
	items := make([]Item, 0, len(feed.Items))

	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		title, source := splitSource(strings.TrimSpace(it.Title))
		if source == "" {
			source = feedTitle
		}

		var published time.Time
		switch {
		case it.PublishedParsed != nil:
			published = it.PublishedParsed.UTC()
		case it.UpdatedParsed != nil:
			published = it.UpdatedParsed.UTC()
		}

		items = append(items, Item{
			Title:       title,
			Link:        strings.TrimSpace(it.Link),
			PublishedAt: published,
			Source:      source,
			Description: plainText(it.Description),
		})
	}
	return items
}

// plainText strips markup from an HTML fragment and collapses whitespace.
func plainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
