package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/content"
	"github.com/onnwee/fizzrank/internal/news"
	"github.com/onnwee/fizzrank/internal/ranking"
)

// Home page section sizes.
const (
	homeBestCount     = 10
	homeNewsCount     = 5
	homeArticlesCount = 3
)

// HomeResponse is the body of GET /.
type HomeResponse struct {
	Best     []RankedProduct    `json:"best"`
	News     []news.Item        `json:"news"`
	Articles []*content.Article `json:"articles"`
}

// HomeHandlers serves the landing page, assembled from the other sections.
// Each section degrades to empty on its own.
type HomeHandlers struct {
	leaderboard *Leaderboard
	news        NewsSource
	articles    content.Repository
}

// NewHomeHandlers creates HomeHandlers.
func NewHomeHandlers(leaderboard *Leaderboard, source NewsSource, articles content.Repository) *HomeHandlers {
	return &HomeHandlers{leaderboard: leaderboard, news: source, articles: articles}
}

// Home handles GET /.
func (h *HomeHandlers) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := HomeResponse{
		Best:     []RankedProduct{},
		News:     []news.Item{},
		Articles: []*content.Article{},
	}

	best, err := h.leaderboard.Ranked(ctx, ranking.ProfileOverall, catalog.Filter{})
	if err != nil {
		slog.ErrorContext(ctx, "home ranking unavailable", "error", err)
	} else {
		resp.Best = best[:min(len(best), homeBestCount)]
	}

	if items := h.news.Get(ctx); len(items) > 0 {
		resp.News = items[:min(len(items), homeNewsCount)]
	}

	articles, err := h.articles.ListPublished(ctx, homeArticlesCount, "")
	if err != nil {
		slog.ErrorContext(ctx, "home articles unavailable", "error", err)
	} else if articles != nil {
		resp.Articles = articles
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// NotFound is the fallback for unmatched paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	fail(w, r, ErrCodeNotFound, "The requested resource was not found")
}
