// Package sitemap renders the sitemaps.org XML document for the public site.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/content"
)

// Namespace is the sitemaps.org 0.9 schema namespace.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// MaxEntries is the protocol limit for a single sitemap file.
const MaxEntries = 50000

// ErrTooManyEntries is returned when a sitemap would exceed MaxEntries.
var ErrTooManyEntries = errors.New("sitemap exceeds entry limit")

// Change frequencies.
const (
	ChangeDaily  = "daily"
	ChangeWeekly = "weekly"
)

// Entry is one page in the sitemap. Path is relative to the base URL.
type Entry struct {
	Path       string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []urlEntry
}

type urlEntry struct {
	XMLName    xml.Name `xml:"url"`
	Loc        string   `xml:"loc"`
	LastMod    string   `xml:"lastmod,omitempty"`
	ChangeFreq string   `xml:"changefreq,omitempty"`
	Priority   string   `xml:"priority,omitempty"`
}

// Build renders entries as a urlset document rooted at baseURL.
func Build(baseURL string, entries []Entry) ([]byte, error) {
	if len(entries) > MaxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrTooManyEntries, len(entries))
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	set := urlset{Xmlns: Namespace, URLs: make([]urlEntry, 0, len(entries))}
	for _, e := range entries {
		u := urlEntry{
			Loc:        base.String() + "/" + strings.TrimLeft(e.Path, "/"),
			ChangeFreq: e.ChangeFreq,
		}
		if e.Path == "" || e.Path == "/" {
			u.Loc = base.String() + "/"
		}
		if !e.LastMod.IsZero() {
			u.LastMod = e.LastMod.UTC().Format("2006-01-02")
		}
		if e.Priority > 0 {
			u.Priority = fmt.Sprintf("%.1f", e.Priority)
		}
		set.URLs = append(set.URLs, u)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// StaticEntries are the fixed landing pages.
func StaticEntries() []Entry {
	return []Entry{
		{Path: "/", ChangeFreq: ChangeDaily, Priority: 1.0},
		{Path: "/brands", ChangeFreq: ChangeWeekly, Priority: 0.8},
		{Path: "/best", ChangeFreq: ChangeDaily, Priority: 0.9},
		{Path: "/news", ChangeFreq: ChangeDaily, Priority: 0.6},
		{Path: "/articles", ChangeFreq: ChangeWeekly, Priority: 0.6},
	}
}

// Collect gathers the static pages plus every brand, product and published
// article.
func Collect(ctx context.Context, cat catalog.Repository, articles content.Repository) ([]Entry, error) {
	entries := StaticEntries()

	brands, err := cat.ListBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	for _, b := range brands {
		entries = append(entries, Entry{
			Path: "/brands/" + url.PathEscape(b.Slug), LastMod: b.UpdatedAt,
			ChangeFreq: ChangeWeekly, Priority: 0.7,
		})
	}

	products, err := cat.ListProducts(ctx, catalog.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for _, p := range products {
		entries = append(entries, Entry{
			Path: "/products/" + url.PathEscape(p.Slug), LastMod: p.UpdatedAt,
			ChangeFreq: ChangeWeekly, Priority: 0.7,
		})
	}

	published, err := articles.ListPublished(ctx, 0, "")
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	for _, a := range published {
		lastMod := a.UpdatedAt
		if a.PublishedAt.After(lastMod) {
			lastMod = a.PublishedAt
		}
		entries = append(entries, Entry{
			Path: "/articles/" + url.PathEscape(a.Slug), LastMod: lastMod,
			ChangeFreq: ChangeWeekly, Priority: 0.5,
		})
	}

	return entries, nil
}
