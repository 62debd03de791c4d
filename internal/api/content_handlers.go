package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/content"
	"github.com/onnwee/fizzrank/internal/sitemap"
)

// ContentHandlers serves editorial articles and the sitemap.
type ContentHandlers struct {
	articles    content.Repository
	catalog     catalog.Repository
	siteBaseURL string
}

// NewContentHandlers creates ContentHandlers. siteBaseURL prefixes every
// sitemap location.
func NewContentHandlers(articles content.Repository, cat catalog.Repository, siteBaseURL string) *ContentHandlers {
	return &ContentHandlers{articles: articles, catalog: cat, siteBaseURL: siteBaseURL}
}

// ListArticles handles GET /articles?tag=&limit=.
func (h *ContentHandlers) ListArticles(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, DefaultPageLimit)
	if err != nil {
		fail(w, r, ErrCodeValidation, err.Error())
		return
	}
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))

	articles, err := h.articles.ListPublished(r.Context(), limit, tag)
	if err != nil {
		internalError(w, r, "Failed to list articles", err)
		return
	}
	if articles == nil {
		articles = []*content.Article{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"articles": articles})
}

// GetArticle handles GET /articles/{slug}. Drafts are not found.
func (h *ContentHandlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	article, err := h.articles.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		if errors.Is(err, content.ErrArticleNotFound) {
			fail(w, r, ErrCodeNotFound, "Article not found")
			return
		}
		internalError(w, r, "Failed to load article", err)
		return
	}
	writeJSON(w, r, http.StatusOK, article)
}

// Sitemap handles GET /sitemap.xml.
func (h *ContentHandlers) Sitemap(w http.ResponseWriter, r *http.Request) {
	entries, err := sitemap.Collect(r.Context(), h.catalog, h.articles)
	if err != nil {
		internalError(w, r, "Failed to build sitemap", err)
		return
	}
	doc, err := sitemap.Build(h.siteBaseURL, entries)
	if err != nil {
		internalError(w, r, "Failed to build sitemap", err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
