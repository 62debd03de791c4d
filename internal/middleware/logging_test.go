package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type logLine struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS *int64 `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ErrorCode string `json:"error_code"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLog(t *testing.T, buf *bytes.Buffer) logLine {
	t.Helper()
	var line logLine
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log %q: %v", buf.String(), err)
	}
	return line
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		handler http.HandlerFunc
		want    logLine
	}{
		{
			name:   "ok response",
			method: http.MethodGet,
			path:   "/best",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ranked"))
			},
			want: logLine{Level: "INFO", Status: 200, Size: 6},
		},
		{
			name:   "client error carries code and user",
			method: http.MethodPost,
			path:   "/products/lime-fizz/reviews",
			handler: func(w http.ResponseWriter, r *http.Request) {
				ctx := SetUserID(r.Context(), "reviewer-1")
				writeJSONError(w, r.WithContext(ctx), http.StatusBadRequest, "validation_error", "rating out of range")
			},
			want: logLine{Level: "WARN", Status: 400, UserID: "reviewer-1", ErrorCode: "validation_error"},
		},
		{
			name:   "server error",
			method: http.MethodPost,
			path:   "/admin/news/refresh",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: logLine{Level: "ERROR", Status: 502},
		},
		{
			name:   "error code dropped on success",
			method: http.MethodGet,
			path:   "/news",
			handler: func(w http.ResponseWriter, r *http.Request) {
				SetErrorCode(r.Context(), "stale")
				w.WriteHeader(http.StatusOK)
			},
			want: logLine{Level: "INFO", Status: 200},
		},
		{
			name:   "derived context handed back",
			method: http.MethodDelete,
			path:   "/admin/reviews/9",
			handler: func(w http.ResponseWriter, r *http.Request) {
				ctx := SetErrorCode(r.Context(), "not_found")
				UpdateResponseContext(w, ctx)
				w.WriteHeader(http.StatusNotFound)
			},
			want: logLine{Level: "WARN", Status: 404, ErrorCode: "not_found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := RequestID(Logging(jsonLogger(&buf))(tt.handler))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set(RequestIDHeader, "req-abc")
			h.ServeHTTP(httptest.NewRecorder(), req)

			got := decodeLog(t, &buf)
			if got.Msg != "request completed" || got.Method != tt.method || got.Path != tt.path {
				t.Errorf("entry = %+v, want %s %s request completed", got, tt.method, tt.path)
			}
			if got.LatencyMS == nil {
				t.Error("latency_ms missing")
			}
			if got.RequestID != "req-abc" {
				t.Errorf("request_id = %q, want req-abc", got.RequestID)
			}
			if got.Level != tt.want.Level || got.Status != tt.want.Status {
				t.Errorf("level/status = %s/%d, want %s/%d", got.Level, got.Status, tt.want.Level, tt.want.Status)
			}
			if tt.want.Size != 0 && got.Size != tt.want.Size {
				t.Errorf("size = %d, want %d", got.Size, tt.want.Size)
			}
			if got.UserID != tt.want.UserID {
				t.Errorf("user_id = %q, want %q", got.UserID, tt.want.UserID)
			}
			if got.ErrorCode != tt.want.ErrorCode {
				t.Errorf("error_code = %q, want %q", got.ErrorCode, tt.want.ErrorCode)
			}
		})
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	_, _ = rw.Write([]byte("body"))
	rw.WriteHeader(http.StatusTeapot)

	if rw.statusCode != http.StatusOK || rec.Code != http.StatusOK {
		t.Errorf("status = %d/%d, want implicit 200", rw.statusCode, rec.Code)
	}
	if rw.size != 4 {
		t.Errorf("size = %d, want 4", rw.size)
	}
}

func TestContextAccessors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := req.Context()
	if GetUserID(ctx) != "" || GetUserRole(ctx) != "" || GetErrorCode(ctx) != "" {
		t.Fatal("empty context should carry no values")
	}
	ctx = SetUserRole(SetUserID(ctx, "u-1"), "admin")
	ctx = SetErrorCode(ctx, "forbidden")
	if GetUserID(ctx) != "u-1" || GetUserRole(ctx) != "admin" || GetErrorCode(ctx) != "forbidden" {
		t.Errorf("got %q/%q/%q", GetUserID(ctx), GetUserRole(ctx), GetErrorCode(ctx))
	}
}

func TestNewLoggerTo(t *testing.T) {
	tests := []struct {
		env        string
		wantJSON   bool
		wantsDebug bool
	}{
		{"production", true, false},
		{"development", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerTo(tt.env, &buf)
			logger.Debug("probe")
			logger.Info("served", "path", "/best")

			out := buf.String()
			if strings.Contains(out, "probe") != tt.wantsDebug {
				t.Errorf("debug output present = %v, want %v", !tt.wantsDebug, tt.wantsDebug)
			}
			if strings.HasPrefix(strings.TrimSpace(out), "{") != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %s", !tt.wantJSON, tt.wantJSON, out)
			}
		})
	}
}
