package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/fizzrank/internal/middleware"
)

func appendN(t *testing.T, repo Repository, n int) []*Entry {
	t.Helper()
	var out []*Entry
	for i := 0; i < n; i++ {
		e, err := repo.Append(context.Background(), LogEntry{
			ActorID:    "admin-1",
			EntityType: EntityReview,
			EntityID:   "review-" + string(rune('a'+i)),
			Action:     ActionDeleteReview,
		})
		if err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
		out = append(out, e)
	}
	return out
}

func TestLogEntry_Validate(t *testing.T) {
	valid := LogEntry{EntityType: EntityBrand, EntityID: "b1", Action: ActionCreateBrand}

	tests := []struct {
		name   string
		mutate func(*LogEntry)
		want   error
	}{
		{"valid", func(*LogEntry) {}, nil},
		{"empty entity type", func(e *LogEntry) { e.EntityType = "" }, ErrInvalidEntityType},
		{"unknown entity type", func(e *LogEntry) { e.EntityType = "playlist" }, ErrInvalidEntityType},
		{"empty entity id", func(e *LogEntry) { e.EntityID = "" }, ErrInvalidEntityID},
		{"empty action", func(e *LogEntry) { e.Action = "" }, ErrInvalidAction},
		{"unknown action", func(e *LogEntry) { e.Action = "drop_tables" }, ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInMemoryRepository_HashChain(t *testing.T) {
	repo := NewInMemoryRepository()
	entries := appendN(t, repo, 3)

	if entries[0].PreviousHash != "" {
		t.Errorf("first entry PreviousHash = %q, want empty", entries[0].PreviousHash)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PreviousHash != entries[i-1].Hash {
			t.Errorf("entry %d does not link to entry %d", i, i-1)
		}
	}
	if entries[0].Outcome != OutcomeSuccess {
		t.Errorf("default outcome = %q, want success", entries[0].Outcome)
	}

	recent, err := repo.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if err := VerifyChain(Oldest(recent)); err != nil {
		t.Errorf("VerifyChain() = %v, want nil", err)
	}
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	repo := NewInMemoryRepository()
	entries := appendN(t, repo, 3)

	edited := make([]*Entry, len(entries))
	for i, e := range entries {
		c := *e
		edited[i] = &c
	}
	edited[1].ActorID = "someone-else"
	if err := VerifyChain(edited); !errors.Is(err, ErrChainBroken) {
		t.Errorf("modified entry: VerifyChain() = %v, want ErrChainBroken", err)
	}

	gap := []*Entry{entries[0], entries[2]}
	if err := VerifyChain(gap); !errors.Is(err, ErrChainBroken) {
		t.Errorf("missing entry: VerifyChain() = %v, want ErrChainBroken", err)
	}

	if err := VerifyChain(entries[1:]); err != nil {
		t.Errorf("suffix of a valid chain: VerifyChain() = %v, want nil", err)
	}
	if err := VerifyChain(nil); err != nil {
		t.Errorf("empty chain: VerifyChain() = %v, want nil", err)
	}
}

func TestInMemoryRepository_Queries(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	appendN(t, repo, 3)
	if _, err := repo.Append(ctx, LogEntry{EntityType: EntityReview, EntityID: "review-a", Action: ActionSetReviewLabels}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].Action != ActionSetReviewLabels {
		t.Errorf("Recent(2) = %+v, want newest first, 2 entries", recent)
	}

	byEntity, err := repo.ByEntity(ctx, EntityReview, "review-a", 0)
	if err != nil {
		t.Fatalf("ByEntity() error = %v", err)
	}
	if len(byEntity) != 2 {
		t.Fatalf("ByEntity() returned %d entries, want 2", len(byEntity))
	}
	if byEntity[0].Action != ActionSetReviewLabels || byEntity[1].Action != ActionDeleteReview {
		t.Errorf("ByEntity() order = %s, %s", byEntity[0].Action, byEntity[1].Action)
	}

	byEntity[0].ActorID = "mutated"
	again, _ := repo.ByEntity(ctx, EntityReview, "review-a", 1)
	if again[0].ActorID == "mutated" {
		t.Error("repository returned a shared entry")
	}

	if _, err := repo.Append(ctx, LogEntry{EntityType: "playlist", EntityID: "x", Action: ActionDeleteReview}); !errors.Is(err, ErrInvalidEntityType) {
		t.Errorf("Append(invalid) error = %v, want ErrInvalidEntityType", err)
	}
}

func TestInMemoryRepository_ConcurrentAppendsKeepChain(t *testing.T) {
	repo := NewInMemoryRepository()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Append(context.Background(), LogEntry{EntityType: EntityProduct, EntityID: "p1", Action: ActionUpdateProduct})
		}()
	}
	wg.Wait()

	recent, _ := repo.Recent(context.Background(), 0)
	if len(recent) != 50 {
		t.Fatalf("got %d entries, want 50", len(recent))
	}
	if err := VerifyChain(Oldest(recent)); err != nil {
		t.Errorf("VerifyChain() = %v", err)
	}
}

func TestRecord_FromRequest(t *testing.T) {
	repo := NewInMemoryRepository()

	req := httptest.NewRequest(http.MethodDelete, "/admin/reviews/r1", nil)
	req.RemoteAddr = "198.51.100.23:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.195, 10.0.0.1")
	ctx := middleware.SetUserID(req.Context(), "admin-7")
	req = req.WithContext(ctx)

	var captured *Entry
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		captured, err = Record(r, repo, EntityReview, "r1", ActionDeleteReview, OutcomeFailure)
		if err != nil {
			t.Errorf("Record() error = %v", err)
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured == nil {
		t.Fatal("no entry recorded")
	}
	if captured.ActorID != "admin-7" {
		t.Errorf("ActorID = %q, want admin-7", captured.ActorID)
	}
	if captured.IPAddress != "203.0.113.0" {
		t.Errorf("IPAddress = %q, want anonymized forwarded address", captured.IPAddress)
	}
	if captured.RequestID == "" {
		t.Error("RequestID not captured")
	}
	if captured.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %q, want failure", captured.Outcome)
	}
	if time.Since(captured.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt = %v, want now", captured.CreatedAt)
	}
}

func TestRecord_Errors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/brands", nil)
	if _, err := Record(req, nil, EntityBrand, "b1", ActionCreateBrand, ""); !errors.Is(err, ErrNilRepository) {
		t.Errorf("nil repo: error = %v, want ErrNilRepository", err)
	}
	if _, err := Record(req, NewInMemoryRepository(), EntityBrand, "", ActionCreateBrand, ""); !errors.Is(err, ErrInvalidEntityID) {
		t.Errorf("empty id: error = %v, want ErrInvalidEntityID", err)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"remote addr without port", "192.0.2.1", nil, "192.0.2.1"},
		{"forwarded for", "10.0.0.1:1", map[string]string{"X-Forwarded-For": " 203.0.113.5 , 10.0.0.2"}, "203.0.113.5"},
		{"forwarded for with port", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5:443"}, "203.0.113.5"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"ipv6 remote", "[2001:db8::1]:8080", nil, "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExportCSV(t *testing.T) {
	repo := NewInMemoryRepository()
	entries := appendN(t, repo, 2)

	data, err := ExportCSV(entries)
	if err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,created_at,actor_id") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], entries[0].ID+",") || !strings.HasSuffix(lines[1], ","+entries[0].Hash) {
		t.Errorf("first record = %q", lines[1])
	}

	empty, err := ExportCSV(nil)
	if err != nil {
		t.Fatalf("ExportCSV(nil) error = %v", err)
	}
	if strings.Count(string(empty), "\n") != 1 {
		t.Errorf("empty export should be header only, got %q", empty)
	}
}
