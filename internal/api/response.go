package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/fizzrank/internal/middleware"
	"github.com/onnwee/fizzrank/internal/review"
)

// Pagination bounds shared by list endpoints.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// fail records code on the request context and writes the error with the
// status StatusCodeMapping assigns to it.
func fail(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// internalError logs err and writes a 500 with a generic message.
func internalError(w http.ResponseWriter, r *http.Request, message string, err error, attrs ...any) {
	slog.ErrorContext(r.Context(), message, append([]any{"error", err}, attrs...)...)
	fail(w, r, ErrCodeInternal, message)
}

// decodeJSON decodes a size-limited request body into dst, rejecting
// unknown fields. It writes a 400 and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		fail(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

// parseLimit reads the limit query parameter. Missing means def; values
// above MaxPageLimit are clamped.
func parseLimit(r *http.Request, def int) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return min(limit, MaxPageLimit), nil
}

// parseCursor decodes a "created_at_unix_nano:id" review cursor.
// Returns nil if the cursor is empty or malformed.
func parseCursor(cursorStr string) *review.Cursor {
	if cursorStr == "" {
		return nil
	}

	nanos, id, found := strings.Cut(cursorStr, ":")
	if !found || id == "" {
		return nil
	}
	timestamp, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil
	}

	return &review.Cursor{
		CreatedAt: time.Unix(0, timestamp).UTC(),
		ID:        id,
	}
}

// encodeCursor is the inverse of parseCursor. Returns "" for a nil cursor.
func encodeCursor(cursor *review.Cursor) string {
	if cursor == nil {
		return ""
	}
	return fmt.Sprintf("%d:%s", cursor.CreatedAt.UnixNano(), cursor.ID)
}
