package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/fizzrank/internal/audit"
	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/content"
	"github.com/onnwee/fizzrank/internal/middleware"
	"github.com/onnwee/fizzrank/internal/review"
	"github.com/onnwee/fizzrank/internal/validate"
)

// Admin input limits.
const (
	MaxArticleTitleLength = 200
	MaxArticleTags        = 10
	MaxImageKeyLength     = 512
)

// SetLabelsRequest is the body of PUT /admin/reviews/{id}/labels.
type SetLabelsRequest struct {
	Labels []string `json:"labels"`
}

// CreateBrandRequest is the body of POST /admin/brands.
type CreateBrandRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	Country     string `json:"country,omitempty"`
	Website     string `json:"website,omitempty"`
}

// CreateProductRequest is the body of POST /admin/products.
type CreateProductRequest struct {
	BrandSlug   string `json:"brand"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Flavor      string `json:"flavor,omitempty"`
	Description string `json:"description,omitempty"`
	ImageKey    string `json:"image_key,omitempty"`
	Caffeinated bool   `json:"caffeinated"`
}

// UpdateProductRequest is the body of PUT /admin/products/{id}. Only
// provided fields change; brand and slug are fixed.
type UpdateProductRequest struct {
	Name        *string `json:"name,omitempty"`
	Flavor      *string `json:"flavor,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageKey    *string `json:"image_key,omitempty"`
	Caffeinated *bool   `json:"caffeinated,omitempty"`
}

// CreateArticleRequest is the body of POST /admin/articles. A missing
// published_at stores a draft.
type CreateArticleRequest struct {
	Title       string     `json:"title"`
	Slug        string     `json:"slug,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	BodyHTML    string     `json:"body_html"`
	Author      string     `json:"author,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// AdminHandlers serves moderation and catalog management. Every route is
// mounted behind middleware.RequireAdmin. Mutations are recorded in the
// audit trail when one is configured.
type AdminHandlers struct {
	catalog  catalog.Repository
	reviews  review.Repository
	articles content.Repository
	audit    audit.Repository
}

// NewAdminHandlers creates AdminHandlers. trail may be nil.
func NewAdminHandlers(cat catalog.Repository, reviews review.Repository, articles content.Repository, trail audit.Repository) *AdminHandlers {
	return &AdminHandlers{catalog: cat, reviews: reviews, articles: articles, audit: trail}
}

// record appends to the audit trail. A failed append is logged and does
// not fail the admin request.
func (h *AdminHandlers) record(r *http.Request, entityType, entityID, action, outcome string) {
	if h.audit == nil {
		return
	}
	if _, err := audit.Record(r, h.audit, entityType, entityID, action, outcome); err != nil {
		slog.ErrorContext(r.Context(), "failed to record audit entry",
			"action", action, "entity_id", entityID, "error", err)
	}
}

// AuditLogResponse is the body of GET /admin/audit. ChainValid is only set
// for the unfiltered log, where consecutive entries can be checked.
type AuditLogResponse struct {
	Entries    []*audit.Entry `json:"entries"`
	ChainValid *bool          `json:"chain_valid,omitempty"`
}

// AuditLog handles GET /admin/audit?limit=&entity_type=&entity_id=&format=.
// format=csv returns a CSV export instead of JSON.
func (h *AdminHandlers) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		fail(w, r, ErrCodeNotFound, "Audit trail is not configured")
		return
	}
	limit, err := parseLimit(r, MaxPageLimit)
	if err != nil {
		fail(w, r, ErrCodeValidation, err.Error())
		return
	}
	q := r.URL.Query()
	entityType, entityID := q.Get("entity_type"), q.Get("entity_id")
	if (entityType == "") != (entityID == "") {
		fail(w, r, ErrCodeValidation, "entity_type and entity_id must be given together")
		return
	}
	format := q.Get("format")
	if format != "" && format != "json" && format != "csv" {
		fail(w, r, ErrCodeValidation, "format must be json or csv")
		return
	}

	var entries []*audit.Entry
	if entityType != "" {
		entries, err = h.audit.ByEntity(r.Context(), entityType, entityID, limit)
	} else {
		entries, err = h.audit.Recent(r.Context(), limit)
	}
	if err != nil {
		internalError(w, r, "Failed to load audit trail", err)
		return
	}

	if format == "csv" {
		data, err := audit.ExportCSV(entries)
		if err != nil {
			internalError(w, r, "Failed to export audit trail", err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			slog.ErrorContext(r.Context(), "failed to write audit export", "error", err)
		}
		return
	}

	resp := AuditLogResponse{Entries: entries}
	if resp.Entries == nil {
		resp.Entries = []*audit.Entry{}
	}
	if entityType == "" {
		valid := audit.VerifyChain(audit.Oldest(entries)) == nil
		if !valid {
			slog.WarnContext(r.Context(), "audit hash chain verification failed")
		}
		resp.ChainValid = &valid
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// ModerationQueue handles GET /admin/moderation?limit=.
func (h *AdminHandlers) ModerationQueue(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, MaxPageLimit)
	if err != nil {
		fail(w, r, ErrCodeValidation, err.Error())
		return
	}
	queue, err := h.reviews.ListModerationQueue(r.Context(), limit)
	if err != nil {
		internalError(w, r, "Failed to load moderation queue", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"reviews": nonNilReviews(queue)})
}

// SetReviewLabels handles PUT /admin/reviews/{id}/labels. The request
// replaces the label set; an empty list clears it.
func (h *AdminHandlers) SetReviewLabels(w http.ResponseWriter, r *http.Request) {
	var req SetLabelsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := review.ValidateLabels(req.Labels); err != nil {
		fail(w, r, ErrCodeValidation, "labels must be one of: "+strings.Join(review.AllowedLabels, ", "))
		return
	}

	id := r.PathValue("id")
	updated, err := h.reviews.SetLabels(r.Context(), id, req.Labels)
	if err != nil {
		if errors.Is(err, review.ErrReviewNotFound) {
			h.record(r, audit.EntityReview, id, audit.ActionSetReviewLabels, audit.OutcomeFailure)
			fail(w, r, ErrCodeNotFound, "Review not found")
			return
		}
		internalError(w, r, "Failed to update labels", err, "review_id", id)
		return
	}
	h.record(r, audit.EntityReview, id, audit.ActionSetReviewLabels, audit.OutcomeSuccess)

	slog.InfoContext(r.Context(), "review labels updated",
		"review_id", id, "labels", updated.Labels, "moderator", middleware.GetUserID(r.Context()))
	writeJSON(w, r, http.StatusOK, updated)
}

// DeleteReview handles DELETE /admin/reviews/{id}.
func (h *AdminHandlers) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.reviews.Delete(r.Context(), id); err != nil {
		if errors.Is(err, review.ErrReviewNotFound) {
			h.record(r, audit.EntityReview, id, audit.ActionDeleteReview, audit.OutcomeFailure)
			fail(w, r, ErrCodeNotFound, "Review not found")
			return
		}
		internalError(w, r, "Failed to delete review", err, "review_id", id)
		return
	}
	h.record(r, audit.EntityReview, id, audit.ActionDeleteReview, audit.OutcomeSuccess)

	slog.InfoContext(r.Context(), "review deleted",
		"review_id", id, "moderator", middleware.GetUserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// CreateBrand handles POST /admin/brands.
func (h *AdminHandlers) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req CreateBrandRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name, err := validate.DisplayName(req.Name)
	if err != nil {
		fail(w, r, ErrCodeValidation, "name: "+err.Error())
		return
	}
	description, err := validate.Description(req.Description)
	if err != nil {
		fail(w, r, ErrCodeValidation, "description: "+err.Error())
		return
	}
	var website string
	if strings.TrimSpace(req.Website) != "" {
		if website, err = validate.WebsiteURL(req.Website); err != nil {
			fail(w, r, ErrCodeValidation, "website: "+err.Error())
			return
		}
	}
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country != "" && len(country) != 2 {
		fail(w, r, ErrCodeValidation, "country must be a two-letter code")
		return
	}

	brand := &catalog.Brand{
		Name:        name,
		Slug:        strings.TrimSpace(req.Slug),
		Description: description,
		Country:     country,
		Website:     website,
	}
	if err := h.catalog.CreateBrand(r.Context(), brand); err != nil {
		switch {
		case errors.Is(err, catalog.ErrDuplicateSlug):
			fail(w, r, ErrCodeConflict, "A brand with this slug already exists")
		case errors.Is(err, catalog.ErrInvalidName):
			fail(w, r, ErrCodeValidation, err.Error())
		default:
			internalError(w, r, "Failed to create brand", err)
		}
		return
	}

	h.record(r, audit.EntityBrand, brand.ID, audit.ActionCreateBrand, audit.OutcomeSuccess)
	slog.InfoContext(r.Context(), "brand created", "brand_id", brand.ID, "slug", brand.Slug)
	writeJSON(w, r, http.StatusCreated, brand)
}

// CreateProduct handles POST /admin/products.
func (h *AdminHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	brand, err := h.catalog.GetBrandBySlug(r.Context(), strings.TrimSpace(req.BrandSlug))
	if err != nil {
		if errors.Is(err, catalog.ErrBrandNotFound) {
			fail(w, r, ErrCodeValidation, "brand does not exist")
			return
		}
		internalError(w, r, "Failed to load brand", err)
		return
	}

	product := &catalog.Product{
		BrandID:     brand.ID,
		Slug:        strings.TrimSpace(req.Slug),
		Caffeinated: req.Caffeinated,
	}
	if msg := applyProductFields(product, &req.Name, &req.Flavor, &req.Description, &req.ImageKey); msg != "" {
		fail(w, r, ErrCodeValidation, msg)
		return
	}

	if err := h.catalog.CreateProduct(r.Context(), product); err != nil {
		switch {
		case errors.Is(err, catalog.ErrDuplicateSlug):
			fail(w, r, ErrCodeConflict, "A product with this slug already exists")
		case errors.Is(err, catalog.ErrInvalidName):
			fail(w, r, ErrCodeValidation, err.Error())
		case errors.Is(err, catalog.ErrBrandNotFound):
			fail(w, r, ErrCodeValidation, "brand does not exist")
		default:
			internalError(w, r, "Failed to create product", err)
		}
		return
	}

	h.record(r, audit.EntityProduct, product.ID, audit.ActionCreateProduct, audit.OutcomeSuccess)
	slog.InfoContext(r.Context(), "product created", "product_id", product.ID, "slug", product.Slug)
	writeJSON(w, r, http.StatusCreated, product)
}

// UpdateProduct handles PUT /admin/products/{id}.
func (h *AdminHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			fail(w, r, ErrCodeProductNotFound, "Product not found")
			return
		}
		internalError(w, r, "Failed to load product", err, "product_id", id)
		return
	}

	if msg := applyProductFields(product, req.Name, req.Flavor, req.Description, req.ImageKey); msg != "" {
		fail(w, r, ErrCodeValidation, msg)
		return
	}
	if req.Caffeinated != nil {
		product.Caffeinated = *req.Caffeinated
	}

	if err := h.catalog.UpdateProduct(r.Context(), product); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			fail(w, r, ErrCodeProductNotFound, "Product not found")
			return
		}
		internalError(w, r, "Failed to update product", err, "product_id", id)
		return
	}

	h.record(r, audit.EntityProduct, product.ID, audit.ActionUpdateProduct, audit.OutcomeSuccess)
	writeJSON(w, r, http.StatusOK, product)
}

// applyProductFields validates and applies the non-nil fields. Returns a
// validation message, or "" on success.
func applyProductFields(p *catalog.Product, name, flavor, description, imageKey *string) string {
	if name != nil {
		v, err := validate.DisplayName(*name)
		if err != nil {
			return "name: " + err.Error()
		}
		p.Name = v
	}
	if flavor != nil {
		p.Flavor = ""
		if strings.TrimSpace(*flavor) != "" {
			v, err := validate.DisplayName(*flavor)
			if err != nil {
				return "flavor: " + err.Error()
			}
			p.Flavor = strings.ToLower(v)
		}
	}
	if description != nil {
		v, err := validate.Description(*description)
		if err != nil {
			return "description: " + err.Error()
		}
		p.Description = v
	}
	if imageKey != nil {
		key := strings.TrimSpace(*imageKey)
		if len(key) > MaxImageKeyLength || strings.Contains(key, "..") {
			return "image_key is invalid"
		}
		p.ImageKey = key
	}
	return ""
}

// CreateArticle handles POST /admin/articles.
func (h *AdminHandlers) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req CreateArticleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" || len([]rune(title)) > MaxArticleTitleLength {
		fail(w, r, ErrCodeValidation, "title must be 1-200 characters")
		return
	}
	if strings.TrimSpace(req.BodyHTML) == "" {
		fail(w, r, ErrCodeValidation, "body_html is required")
		return
	}
	if len(req.Tags) > MaxArticleTags {
		fail(w, r, ErrCodeValidation, "at most 10 tags are allowed")
		return
	}
	summary, err := validate.Description(req.Summary)
	if err != nil {
		fail(w, r, ErrCodeValidation, "summary: "+err.Error())
		return
	}

	article := &content.Article{
		Title:    title,
		Slug:     strings.TrimSpace(req.Slug),
		Summary:  summary,
		BodyHTML: req.BodyHTML,
		Author:   strings.TrimSpace(req.Author),
		Tags:     req.Tags,
	}
	if req.PublishedAt != nil {
		article.PublishedAt = req.PublishedAt.UTC()
	}

	if err := h.articles.Create(r.Context(), article); err != nil {
		switch {
		case errors.Is(err, content.ErrDuplicateSlug):
			fail(w, r, ErrCodeConflict, "An article with this slug already exists")
		case errors.Is(err, content.ErrInvalidTitle):
			fail(w, r, ErrCodeValidation, err.Error())
		default:
			internalError(w, r, "Failed to create article", err)
		}
		return
	}

	h.record(r, audit.EntityArticle, article.ID, audit.ActionCreateArticle, audit.OutcomeSuccess)
	slog.InfoContext(r.Context(), "article created", "article_id", article.ID, "slug", article.Slug)
	writeJSON(w, r, http.StatusCreated, article)
}
