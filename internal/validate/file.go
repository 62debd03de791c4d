package validate

import (
	"errors"
	"fmt"
	"mime"
	"slices"
	"strings"
)

// File validation errors.
var (
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileTooSmall    = errors.New("file too small")
)

// Image types accepted for product photos.
const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageWebP = "image/webp"
)

// AllowedImageTypes lists the accepted product photo types.
var AllowedImageTypes = []string{MIMEImageJPEG, MIMEImagePNG, MIMEImageWebP}

// DefaultMaxImageBytes caps a product photo when no limit is configured.
const DefaultMaxImageBytes = 10 << 20

// FileConstraints bounds an upload. Zero sizes mean no bound.
type FileConstraints struct {
	AllowedTypes []string
	MaxSizeBytes int64
	MinSizeBytes int64
}

// MIMEType normalizes a Content-Type value, dropping parameters such as
// charset, and checks it against allowed.
func MIMEType(contentType string, allowed []string) (string, error) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return "", ErrEmpty
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMIMEType, err)
	}
	if !slices.Contains(allowed, mediaType) {
		return "", fmt.Errorf("%w: %q not allowed", ErrInvalidMIMEType, mediaType)
	}
	return mediaType, nil
}

// FileSize checks size against c.
func FileSize(size int64, c FileConstraints) error {
	switch {
	case size <= 0:
		return fmt.Errorf("%w: size must be positive", ErrFileTooSmall)
	case c.MinSizeBytes > 0 && size < c.MinSizeBytes:
		return fmt.Errorf("%w: %d bytes, minimum is %d", ErrFileTooSmall, size, c.MinSizeBytes)
	case c.MaxSizeBytes > 0 && size > c.MaxSizeBytes:
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrFileTooLarge, size, c.MaxSizeBytes)
	}
	return nil
}

// File validates an upload's type and size, returning the normalized type.
func File(contentType string, size int64, c FileConstraints) (string, error) {
	mediaType, err := MIMEType(contentType, c.AllowedTypes)
	if err != nil {
		return "", err
	}
	if err := FileSize(size, c); err != nil {
		return "", err
	}
	return mediaType, nil
}

// ImageFile validates a product photo. A non-positive maxBytes means
// DefaultMaxImageBytes.
func ImageFile(contentType string, size, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return File(contentType, size, FileConstraints{AllowedTypes: AllowedImageTypes, MaxSizeBytes: maxBytes})
}
