// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// routeTemplates lists the API's route patterns. A "{}" segment matches any
// single non-empty path segment and is reported under the given name.
var routeTemplates = []string{
	"/",
	"/brands",
	"/brands/{slug}",
	"/products",
	"/products/{slug}",
	"/products/{slug}/reviews",
	"/reviews/{id}/flag",
	"/best",
	"/best/tiers",
	"/articles",
	"/articles/{slug}",
	"/news",
	"/sitemap.xml",
	"/admin/moderation",
	"/admin/audit",
	"/admin/reviews/{id}",
	"/admin/reviews/{id}/labels",
	"/admin/brands",
	"/admin/products",
	"/admin/products/{id}",
	"/admin/articles",
	"/admin/uploads/sign",
	"/admin/news/refresh",
	"/health",
	"/ready",
	"/metrics",
}

type compiledRoute struct {
	pattern  string
	segments []string
}

var compiledRoutes = compileRoutes(routeTemplates)

func compileRoutes(templates []string) []compiledRoute {
	out := make([]compiledRoute, 0, len(templates))
	for _, t := range templates {
		out = append(out, compiledRoute{pattern: t, segments: splitPath(t)})
	}
	return out
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /brands/la-croix to
// /brands/{slug}. Paths matching no route are reported as "other".
func normalizePath(path string) string {
	segments := splitPath(path)
	for _, route := range compiledRoutes {
		if matchSegments(route.segments, segments) {
			return route.pattern
		}
	}
	return "other"
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}
	for i, p := range pattern {
		if strings.HasPrefix(p, "{") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if p != segments[i] {
			return false
		}
	}
	return true
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size. A write before WriteHeader commits 200.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	mrw.wroteHeader = true
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Probes and scrapes are excluded from request metrics
			if r.URL.Path == "/health" || r.URL.Path == "/ready" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			// Wrap response writer to capture status and size
			mrw := newMetricsResponseWriter(w)

			// Get request size from Content-Length header
			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			// Call the next handler
			next.ServeHTTP(mrw, r)

			// Calculate duration in seconds
			duration := time.Since(start).Seconds()

			// Normalize path to prevent cardinality explosion
			normalizedPath := normalizePath(r.URL.Path)

			// Record metrics
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
