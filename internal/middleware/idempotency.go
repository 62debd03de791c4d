package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/fizzrank/internal/idempotency"
)

const (
	// IdempotencyKeyHeader carries the client-chosen key for a write.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader is set on responses served from the store.
	IdempotentReplayHeader = "Idempotent-Replayed"

	errCodeInvalidIdempotencyKey = "invalid_idempotency_key"
	errCodeIdempotencyKeyReused  = "idempotency_key_reused"
)

// idempotencyResponseWriter captures the status and body so they can be
// stored after the handler returns.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *idempotencyResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Idempotency replays stored responses for POST requests that repeat an
// Idempotency-Key. The header is optional; requests without it pass
// through. Keys are scoped to the authenticated user, and a key reused for
// a different route is rejected with 422. Only 2xx responses are stored so
// a client can retry after a failure. metrics may be nil.
func Idempotency(repo idempotency.Repository, logger *slog.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := idempotency.ValidateKey(key); err != nil {
				msg := "Idempotency-Key must be printable ASCII without spaces"
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					msg = "Idempotency-Key must be at most " + strconv.Itoa(idempotency.MaxKeyLength) + " characters"
				}
				writeJSONError(w, r, http.StatusBadRequest, errCodeInvalidIdempotencyKey, msg)
				return
			}

			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			scoped := idempotency.ScopedKey(GetUserID(r.Context()), key)

			stored, err := repo.Get(r.Context(), scoped)
			switch {
			case err == nil:
				if !stored.Matches(r.Method, route) {
					writeJSONError(w, r, http.StatusUnprocessableEntity, errCodeIdempotencyKeyReused,
						"Idempotency-Key was already used for a different request")
					return
				}
				if !stored.Intact() {
					logger.Warn("stored idempotent response failed hash check", "route", route)
					break
				}
				if metrics != nil {
					metrics.IncIdempotentReplays(route)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(IdempotentReplayHeader, "true")
				w.WriteHeader(stored.StatusCode)
				_, _ = w.Write([]byte(stored.Body))
				return
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				// Serve the request without replay protection rather than fail it.
				logger.Error("idempotency lookup failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			rw := &idempotencyResponseWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			if rw.statusCode < 200 || rw.statusCode >= 300 {
				return
			}
			body := rw.body.String()
			record := &idempotency.Record{
				Key:        scoped,
				Method:     r.Method,
				Route:      route,
				StatusCode: rw.statusCode,
				Body:       body,
				BodyHash:   idempotency.ComputeResponseHash(body),
				CreatedAt:  time.Now(),
			}
			if err := repo.Store(r.Context(), record); err != nil && !errors.Is(err, idempotency.ErrKeyExists) {
				logger.Error("failed to store idempotent response", "error", err, "route", route)
			}
		})
	}
}
