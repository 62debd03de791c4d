// Package idempotency stores the responses of completed writes so a client
// retrying with the same Idempotency-Key gets the original response instead
// of a duplicate-entry error.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// DefaultExpiry is how long a stored response is replayed.
const DefaultExpiry = 24 * time.Hour

var (
	// ErrKeyNotFound is returned when no response is stored for a key.
	ErrKeyNotFound = errors.New("idempotency key not found")
	// ErrKeyExists is returned when storing a key that is already stored.
	ErrKeyExists = errors.New("idempotency key already exists")
	// ErrInvalidKey is returned for an empty key or one with control characters.
	ErrInvalidKey = errors.New("invalid idempotency key")
	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// Record is a stored response.
type Record struct {
	Key        string    `json:"key"`
	Method     string    `json:"method"`
	Route      string    `json:"route"`
	StatusCode int       `json:"status_code"`
	Body       string    `json:"body"`
	BodyHash   string    `json:"body_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// Matches reports whether the record was stored for the same method and route.
func (r *Record) Matches(method, route string) bool {
	return r.Method == method && r.Route == route
}

// Intact reports whether the stored body still matches its hash.
func (r *Record) Intact() bool {
	return ComputeResponseHash(r.Body) == r.BodyHash
}

// Repository persists records.
type Repository interface {
	// Get returns ErrKeyNotFound when nothing is stored for key.
	Get(ctx context.Context, key string) (*Record, error)
	// Store returns ErrKeyExists when key is already stored.
	Store(ctx context.Context, record *Record) error
}

// ValidateKey checks a client-supplied key.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	for _, c := range key {
		if c < 0x21 || c > 0x7e {
			return ErrInvalidKey
		}
	}
	return nil
}

// ScopedKey namespaces key by the caller so two users cannot collide.
func ScopedKey(scope, key string) string {
	if scope == "" {
		scope = "anonymous"
	}
	return scope + ":" + key
}

// ComputeResponseHash returns the hex SHA-256 of a response body.
func ComputeResponseHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
