package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid", "7b0c4f2e-order", nil},
		{"max length", strings.Repeat("a", MaxKeyLength), nil},
		{"empty", "", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
		{"space", "a b", ErrInvalidKey},
		{"control character", "a\nb", ErrInvalidKey},
		{"non-ascii", "clé", ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestScopedKey(t *testing.T) {
	if got := ScopedKey("user-1", "k"); got != "user-1:k" {
		t.Errorf("ScopedKey = %q, want user-1:k", got)
	}
	if got := ScopedKey("", "k"); got != "anonymous:k" {
		t.Errorf("ScopedKey = %q, want anonymous:k", got)
	}
}

func TestRecord_Intact(t *testing.T) {
	r := &Record{Body: `{"id":"1"}`, BodyHash: ComputeResponseHash(`{"id":"1"}`)}
	if !r.Intact() {
		t.Error("fresh record should be intact")
	}
	r.Body = `{"id":"2"}`
	if r.Intact() {
		t.Error("modified body should fail the hash check")
	}
}

func TestInMemoryRepository_StoreAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrKeyNotFound", err)
	}

	rec := &Record{Key: "u:k", Method: "POST", Route: "POST /admin/brands", StatusCode: 201, Body: "{}"}
	if err := repo.Store(ctx, rec); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := repo.Store(ctx, rec); !errors.Is(err, ErrKeyExists) {
		t.Errorf("second Store error = %v, want ErrKeyExists", err)
	}
	if err := repo.Store(ctx, &Record{}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Store(empty key) error = %v, want ErrInvalidKey", err)
	}

	got, err := repo.Get(ctx, "u:k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Matches("POST", "POST /admin/brands") || got.StatusCode != 201 {
		t.Errorf("Get = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got.Body = "mutated"
	again, _ := repo.Get(ctx, "u:k")
	if again.Body != "{}" {
		t.Error("Get returned a shared record")
	}
}

func TestCleanupOldKeys(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	_ = repo.Store(ctx, &Record{Key: "old", CreatedAt: now.Add(-25 * time.Hour)})
	_ = repo.Store(ctx, &Record{Key: "new", CreatedAt: now.Add(-time.Hour)})

	deleted, err := CleanupOldKeys(repo, DefaultExpiry, nil)
	if err != nil {
		t.Fatalf("CleanupOldKeys: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("expired record still present")
	}
	if _, err := repo.Get(ctx, "new"); err != nil {
		t.Errorf("fresh record removed: %v", err)
	}
}

type brokenExpirer struct{}

func (brokenExpirer) DeleteOlderThan(time.Duration) (int64, error) {
	return 0, errors.New("disk full")
}

func TestCleanupOldKeys_PropagatesError(t *testing.T) {
	if n, err := CleanupOldKeys(brokenExpirer{}, time.Hour, nil); err == nil || n != 0 {
		t.Errorf("CleanupOldKeys() = %d, %v; want 0 and an error", n, err)
	}
}

func TestInMemoryRepository_ConcurrentStore(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	var wg sync.WaitGroup
	var mu sync.Mutex
	stored := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Store(ctx, &Record{Key: "same"}); err == nil {
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if stored != 1 {
		t.Errorf("successful stores = %d, want 1", stored)
	}
}
