package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/upload"
)

// SignUploadRequest represents the request body for POST /admin/uploads/sign.
type SignUploadRequest struct {
	ProductID   string `json:"product_id"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// SignUploadResponse represents the response for POST /admin/uploads/sign.
type SignUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	PublicURL string `json:"public_url,omitempty"`
	ExpiresAt string `json:"expires_at"` // RFC 3339
}

// UploadHandlers holds dependencies for upload HTTP handlers.
type UploadHandlers struct {
	uploadService *upload.Service
	catalog       catalog.Repository
}

// NewUploadHandlers creates a new UploadHandlers instance.
func NewUploadHandlers(uploadService *upload.Service, cat catalog.Repository) *UploadHandlers {
	return &UploadHandlers{
		uploadService: uploadService,
		catalog:       cat,
	}
}

// SignUpload handles POST /admin/uploads/sign - generates a pre-signed PUT
// URL for a product image. The returned key is stored on the product as
// image_key once the upload completes.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	var req SignUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.ContentType) == "" {
		fail(w, r, ErrCodeValidation, "content_type is required")
		return
	}
	if req.SizeBytes <= 0 {
		fail(w, r, ErrCodeValidation, "size_bytes must be positive")
		return
	}

	if _, err := h.catalog.GetProduct(r.Context(), req.ProductID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			fail(w, r, ErrCodeProductNotFound, "Product not found")
			return
		}
		internalError(w, r, "Failed to load product", err)
		return
	}

	signedURL, err := h.uploadService.GenerateSignedURL(r.Context(), upload.SignedURLRequest{
		ProductID:   req.ProductID,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			fail(w, r, ErrCodeUnsupportedType,
				"Unsupported content type. Allowed types: image/jpeg, image/png, image/webp")
		case errors.Is(err, upload.ErrFileTooLarge):
			fail(w, r, ErrCodeValidation, "File size exceeds maximum allowed")
		case errors.Is(err, upload.ErrInvalidSize):
			fail(w, r, ErrCodeValidation, "size_bytes must be positive")
		case errors.Is(err, upload.ErrInvalidProductID):
			fail(w, r, ErrCodeValidation, "Invalid product ID")
		default:
			internalError(w, r, "Failed to generate signed URL", err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, SignUploadResponse{
		URL:       signedURL.URL,
		Key:       signedURL.Key,
		PublicURL: signedURL.PublicURL,
		ExpiresAt: signedURL.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}
