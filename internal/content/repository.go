package content

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines article data operations.
type Repository interface {
	// Create assigns an ID, derives the slug from the title when empty and
	// stores the article. Returns ErrDuplicateSlug when the slug is taken.
	Create(ctx context.Context, article *Article) error
	// GetBySlug returns a published article. Drafts report ErrArticleNotFound.
	GetBySlug(ctx context.Context, slug string) (*Article, error)
	// ListPublished returns published articles newest first, optionally
	// restricted to tag. A non-positive limit returns all of them.
	ListPublished(ctx context.Context, limit int, tag string) ([]*Article, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	articles map[string]*Article
	slugs    map[string]string
	now      func() time.Time
}

// NewInMemoryRepository creates a new in-memory article repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		articles: make(map[string]*Article),
		slugs:    make(map[string]string),
		now:      time.Now,
	}
}

// Create stores a new article.
func (r *InMemoryRepository) Create(ctx context.Context, article *Article) error {
	if err := prepareArticle(article); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.slugs[article.Slug]; taken {
		return ErrDuplicateSlug
	}

	article.ID = uuid.New().String()
	article.UpdatedAt = r.now().UTC()
	if !article.PublishedAt.IsZero() {
		article.PublishedAt = article.PublishedAt.UTC()
	}

	r.articles[article.ID] = article.clone()
	r.slugs[article.Slug] = article.ID
	return nil
}

// GetBySlug retrieves a published article by slug.
func (r *InMemoryRepository) GetBySlug(ctx context.Context, slug string) (*Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.slugs[slug]
	if !ok {
		return nil, ErrArticleNotFound
	}
	a := r.articles[id]
	if !a.IsPublished(r.now()) {
		return nil, ErrArticleNotFound
	}
	return a.clone(), nil
}

// ListPublished returns published articles newest first.
func (r *InMemoryRepository) ListPublished(ctx context.Context, limit int, tag string) ([]*Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]*Article, 0)
	for _, a := range r.articles {
		if !a.IsPublished(now) {
			continue
		}
		if tag != "" && !a.HasTag(tag) {
			continue
		}
		out = append(out, a.clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
