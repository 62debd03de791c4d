package api

import (
	"net/http"

	"github.com/onnwee/fizzrank/internal/middleware"
)

// Routes holds every handler group the router mounts. Uploads and Metrics
// are optional; their routes are omitted when nil.
type Routes struct {
	Home     *HomeHandlers
	Catalog  *CatalogHandlers
	Rankings *RankingHandlers
	Reviews  *ReviewHandlers
	Content  *ContentHandlers
	News     *NewsHandlers
	Admin    *AdminHandlers
	Uploads  *UploadHandlers
	Health   *HealthHandlers
	Metrics  http.Handler

	// WriteLimit wraps the user-facing write endpoints, typically a
	// per-user rate limiter. Nil leaves them unwrapped.
	WriteLimit func(http.Handler) http.Handler

	// Idempotency wraps the create endpoints so retried POSTs replay the
	// first response. Nil leaves them unwrapped.
	Idempotency func(http.Handler) http.Handler
}

// NewRouter registers every route on a new ServeMux. Authentication is
// resolved by middleware.Authenticate upstream; the router only enforces
// RequireUser and RequireAdmin.
func NewRouter(rt Routes) *http.ServeMux {
	mux := http.NewServeMux()

	write := rt.WriteLimit
	if write == nil {
		write = func(next http.Handler) http.Handler { return next }
	}
	idem := rt.Idempotency
	if idem == nil {
		idem = func(next http.Handler) http.Handler { return next }
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(h)
	}
	adminCreate := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(idem(h))
	}

	mux.HandleFunc("GET /{$}", rt.Home.Home)

	mux.HandleFunc("GET /brands", rt.Catalog.ListBrands)
	mux.HandleFunc("GET /brands/{slug}", rt.Catalog.GetBrand)
	mux.HandleFunc("GET /products", rt.Catalog.ListProducts)
	mux.HandleFunc("GET /products/{slug}", rt.Catalog.GetProduct)

	mux.HandleFunc("GET /best", rt.Rankings.Best)
	mux.HandleFunc("GET /best/tiers", rt.Rankings.Tiers)

	mux.HandleFunc("GET /products/{slug}/reviews", rt.Reviews.ListReviews)
	mux.Handle("POST /products/{slug}/reviews",
		middleware.RequireUser(write(idem(http.HandlerFunc(rt.Reviews.CreateReview)))))
	mux.Handle("POST /reviews/{id}/flag", write(http.HandlerFunc(rt.Reviews.FlagReview)))

	mux.HandleFunc("GET /articles", rt.Content.ListArticles)
	mux.HandleFunc("GET /articles/{slug}", rt.Content.GetArticle)
	mux.HandleFunc("GET /sitemap.xml", rt.Content.Sitemap)

	mux.HandleFunc("GET /news", rt.News.List)

	mux.Handle("GET /admin/moderation", admin(rt.Admin.ModerationQueue))
	mux.Handle("GET /admin/audit", admin(rt.Admin.AuditLog))
	mux.Handle("PUT /admin/reviews/{id}/labels", admin(rt.Admin.SetReviewLabels))
	mux.Handle("DELETE /admin/reviews/{id}", admin(rt.Admin.DeleteReview))
	mux.Handle("POST /admin/brands", adminCreate(rt.Admin.CreateBrand))
	mux.Handle("POST /admin/products", adminCreate(rt.Admin.CreateProduct))
	mux.Handle("PUT /admin/products/{id}", admin(rt.Admin.UpdateProduct))
	mux.Handle("POST /admin/articles", adminCreate(rt.Admin.CreateArticle))
	mux.Handle("POST /admin/news/refresh", admin(rt.News.Refresh))
	if rt.Uploads != nil {
		mux.Handle("POST /admin/uploads/sign", admin(rt.Uploads.SignUpload))
	}

	mux.HandleFunc("/health", rt.Health.Health)
	mux.HandleFunc("/ready", rt.Health.Ready)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	mux.HandleFunc("/", NotFound)
	return mux
}
