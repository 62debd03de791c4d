// Package upload issues presigned URLs so admins can put product photos
// straight into S3-compatible object storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/onnwee/fizzrank/internal/validate"
)

// Validation errors
var (
	ErrUnsupportedType  = errors.New("unsupported content type")
	ErrFileTooLarge     = errors.New("file size exceeds maximum allowed")
	ErrInvalidSize      = errors.New("file size must be positive")
	ErrInvalidProductID = errors.New("invalid product ID")
)

// Extensions maps accepted image MIME types to object key extensions.
var Extensions = map[string]string{
	validate.MIMEImageJPEG: ".jpg",
	validate.MIMEImagePNG:  ".png",
	validate.MIMEImageWebP: ".webp",
}

// Defaults.
const (
	DefaultMaxSizeMB = 10
	DefaultURLExpiry = 5 * time.Minute
)

// SignedURLRequest represents a request for a signed upload URL.
type SignedURLRequest struct {
	ProductID   string
	ContentType string
	SizeBytes   int64
}

// SignedURLResponse represents the response containing the signed URL and metadata.
type SignedURLResponse struct {
	URL       string    `json:"url"`        // Pre-signed PUT URL
	Key       string    `json:"key"`        // Object key; store on the product as image_key
	PublicURL string    `json:"public_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service generates presigned product image uploads.
type Service struct {
	presignClient *s3.PresignClient
	bucketName    string
	publicBaseURL string
	maxSizeBytes  int64
	urlExpiry     time.Duration
	timeNow       func() time.Time
}

// ServiceConfig holds configuration for the upload service.
type ServiceConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string // Default: "auto"
	// PublicBaseURL is where uploaded objects are served from, e.g. a CDN.
	PublicBaseURL string
	MaxSizeMB     int
	URLExpiry     time.Duration
}

// NewService creates a new upload service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = DefaultURLExpiry
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	s3Client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &Service{
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		urlExpiry:     cfg.URLExpiry,
		timeNow:       time.Now,
	}, nil
}

// MaxSizeBytes returns the upload size limit.
func (s *Service) MaxSizeBytes() int64 {
	return s.maxSizeBytes
}

// Validate checks the content type and size of an upload, returning the
// normalized content type.
func (s *Service) Validate(contentType string, sizeBytes int64) (string, error) {
	if sizeBytes <= 0 {
		return "", ErrInvalidSize
	}
	if sizeBytes > s.maxSizeBytes {
		return "", ErrFileTooLarge
	}
	normalized, err := validate.ImageFile(contentType, sizeBytes, s.maxSizeBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return normalized, nil
}

// GenerateObjectKey creates a unique object key for a product image.
// Pattern: products/{productID}/{uuid}{ext}
func GenerateObjectKey(productID, contentType string) (string, error) {
	ext, ok := Extensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	if _, err := uuid.Parse(productID); err != nil {
		return "", ErrInvalidProductID
	}
	return fmt.Sprintf("products/%s/%s%s", strings.ToLower(productID), uuid.New().String(), ext), nil
}

// PublicURL returns the address an uploaded object is served from, or an
// empty string when no public base URL is configured.
func (s *Service) PublicURL(key string) string {
	if s.publicBaseURL == "" || key == "" {
		return ""
	}
	return s.publicBaseURL + "/" + key
}

// GenerateSignedURL generates a pre-signed PUT URL for a product image.
func (s *Service) GenerateSignedURL(ctx context.Context, req SignedURLRequest) (*SignedURLResponse, error) {
	contentType, err := s.Validate(req.ContentType, req.SizeBytes)
	if err != nil {
		return nil, err
	}

	key, err := GenerateObjectKey(req.ProductID, contentType)
	if err != nil {
		return nil, err
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(req.SizeBytes),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign request: %w", err)
	}

	return &SignedURLResponse{
		URL:       presignedReq.URL,
		Key:       key,
		PublicURL: s.PublicURL(key),
		ExpiresAt: s.timeNow().Add(s.urlExpiry),
	}, nil
}
