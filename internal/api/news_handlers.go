package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/fizzrank/internal/news"
)

// NewsSource is the news cache as seen by the handlers.
type NewsSource interface {
	Get(ctx context.Context) []news.Item
	Refresh(ctx context.Context) ([]news.Item, error)
	Snapshot() (items []news.Item, fetchedAt time.Time, ok bool)
}

// NewsResponse is the body of GET /news.
type NewsResponse struct {
	Items     []news.Item `json:"items"`
	FetchedAt *time.Time  `json:"fetched_at,omitempty"`
}

// NewsHandlers serves the deduplicated news list.
type NewsHandlers struct {
	source NewsSource
}

// NewNewsHandlers creates NewsHandlers.
func NewNewsHandlers(source NewsSource) *NewsHandlers {
	return &NewsHandlers{source: source}
}

// List handles GET /news. It never fails: upstream problems surface as a
// stale or empty list.
func (h *NewsHandlers) List(w http.ResponseWriter, r *http.Request) {
	items := h.source.Get(r.Context())
	writeJSON(w, r, http.StatusOK, h.response(items))
}

// Refresh handles POST /admin/news/refresh. A failed refresh keeps the
// previous snapshot and reports 502 with the stale items left in place.
func (h *NewsHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	items, err := h.source.Refresh(r.Context())
	if err != nil {
		slog.WarnContext(r.Context(), "forced news refresh failed", "error", err)
		fail(w, r, ErrCodeUpstream, "News refresh failed; previous items are still served")
		return
	}
	writeJSON(w, r, http.StatusOK, h.response(items))
}

func (h *NewsHandlers) response(items []news.Item) NewsResponse {
	if items == nil {
		items = []news.Item{}
	}
	resp := NewsResponse{Items: items}
	if _, fetchedAt, ok := h.source.Snapshot(); ok {
		resp.FetchedAt = &fetchedAt
	}
	return resp
}
