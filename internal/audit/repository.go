package audit

import (
	"context"
	"sync"
	"time"
)

// Repository stores audit entries. Append links each entry to the previous
// one; queries return entries newest first. A limit of 0 means no limit.
type Repository interface {
	Append(ctx context.Context, entry LogEntry) (*Entry, error)
	Recent(ctx context.Context, limit int) ([]*Entry, error)
	ByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error)
}

// InMemoryRepository is an in-memory Repository for development and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry // oldest first
	now     func() time.Time
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates an empty in-memory audit log.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: time.Now}
}

// Append stores entry linked to the current head of the chain.
func (r *InMemoryRepository) Append(ctx context.Context, entry LogEntry) (*Entry, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var prev string
	if n := len(r.entries); n > 0 {
		prev = r.entries[n-1].Hash
	}
	e := newEntry(entry, prev, r.now())
	r.entries = append(r.entries, e)

	out := *e
	return &out, nil
}

// Recent returns the newest entries.
func (r *InMemoryRepository) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	return r.collect(limit, func(*Entry) bool { return true }), nil
}

// ByEntity returns the newest entries for one entity.
func (r *InMemoryRepository) ByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error) {
	return r.collect(limit, func(e *Entry) bool {
		return e.EntityType == entityType && e.EntityID == entityID
	}), nil
}

func (r *InMemoryRepository) collect(limit int, match func(*Entry) bool) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if !match(r.entries[i]) {
			continue
		}
		e := *r.entries[i]
		out = append(out, &e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
