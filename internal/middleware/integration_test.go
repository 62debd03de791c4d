package middleware_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/fizzrank/internal/auth"
	"github.com/onnwee/fizzrank/internal/idempotency"
	"github.com/onnwee/fizzrank/internal/middleware"
)

const chainSecret = "integration-test-secret-0123456789"

// reviewStack assembles the chain the API server uses in front of review
// creation: RequestID -> Logging -> Authenticate -> mux -> RequireUser ->
// write limit -> Idempotency -> handler.
func reviewStack(t *testing.T, logBuf *bytes.Buffer, writeLimit int) (http.Handler, *int) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	created := 0
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		created++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"rev-%d","product":%q}`, created, r.PathValue("slug"))
	})

	limit := middleware.RateLimiter(middleware.NewInMemoryRateLimitStore(),
		middleware.RateLimitConfig{RequestsPerWindow: writeLimit, WindowDuration: time.Minute},
		middleware.UserKeyFunc(), nil)
	idem := middleware.Idempotency(idempotency.NewInMemoryRepository(), logger, nil)

	mux := http.NewServeMux()
	mux.Handle("POST /products/{slug}/reviews", middleware.RequireUser(limit(idem(create))))

	var h http.Handler = mux
	h = middleware.Authenticate(auth.NewJWTService(chainSecret), logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)
	return h, &created
}

func reviewRequest(token, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/products/spindrift-lemon/reviews",
		strings.NewReader(`{"rating":4,"title":"Bright"}`))
	req.RemoteAddr = "198.51.100.7:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		req.Header.Set(middleware.IdempotencyKeyHeader, key)
	}
	return req
}

func TestReviewChain_AnonymousRejectedAndLogged(t *testing.T) {
	var logBuf bytes.Buffer
	h, created := reviewStack(t, &logBuf, 10)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, reviewRequest("", ""))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if *created != 0 {
		t.Error("handler ran for an anonymous request")
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected X-Request-ID on the error response")
	}
	for _, field := range []string{"method=POST", "status=401", "error_code=auth_failed", "request_id="} {
		if !strings.Contains(logBuf.String(), field) {
			t.Errorf("log missing %q: %s", field, logBuf.String())
		}
	}
}

func TestReviewChain_RetryReplaysWithoutConsumingHandler(t *testing.T) {
	var logBuf bytes.Buffer
	h, created := reviewStack(t, &logBuf, 10)

	token, err := auth.NewJWTService(chainSecret).GenerateToken("user-42", auth.RoleMember)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	first := httptest.NewRecorder()
	h.ServeHTTP(first, reviewRequest(token, "review-lemon-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201: %s", first.Code, first.Body.String())
	}

	retry := httptest.NewRecorder()
	h.ServeHTTP(retry, reviewRequest(token, "review-lemon-1"))
	if retry.Code != http.StatusCreated || retry.Body.String() != first.Body.String() {
		t.Fatalf("retry = %d %s, want replay of %s", retry.Code, retry.Body.String(), first.Body.String())
	}
	if *created != 1 {
		t.Errorf("handler ran %d times, want 1", *created)
	}
	if !strings.Contains(logBuf.String(), "user_id=user-42") {
		t.Errorf("log missing user_id: %s", logBuf.String())
	}
}

func TestReviewChain_WriteLimitPerUser(t *testing.T) {
	var logBuf bytes.Buffer
	h, _ := reviewStack(t, &logBuf, 2)

	svc := auth.NewJWTService(chainSecret)
	alice, _ := svc.GenerateToken("alice", auth.RoleMember)
	bob, _ := svc.GenerateToken("bob", auth.RoleMember)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, reviewRequest(alice, ""))
		if rr.Code != http.StatusCreated {
			t.Fatalf("alice request %d status = %d, want 201", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, reviewRequest(alice, ""))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("alice third request status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Same IP, different user: the write limit is keyed by user.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, reviewRequest(bob, ""))
	if rr.Code != http.StatusCreated {
		t.Errorf("bob status = %d, want 201", rr.Code)
	}
}

func BenchmarkRequestID_NewID(b *testing.B) {
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/brands", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
