package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/fizzrank/internal/tracing"
)

// Fetcher retrieves raw items for one search term. Implementations return a
// *FetchError on network or parse failure.
type Fetcher interface {
	Fetch(ctx context.Context, term string) ([]Item, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, term string) ([]Item, error)

// Fetch calls f(ctx, term).
func (f FetcherFunc) Fetch(ctx context.Context, term string) ([]Item, error) {
	return f(ctx, term)
}

// Default service settings.
const (
	DefaultFreshnessWindow = 30 * time.Minute
	DefaultMaxItems        = 10
	DefaultFetchTimeout    = 10 * time.Second
	DefaultRetryBackoff    = 60 * time.Second
)

// DefaultSearchTerms are the phrases queried when none are configured.
// Earlier terms win when two feeds carry the same story.
func DefaultSearchTerms() []string {
	return []string{
		"sparkling water",
		"seltzer",
		"mineral water brand",
		"flavored sparkling water",
	}
}

// Config configures a Service. Zero values take the defaults above.
type Config struct {
	SearchTerms         []string
	FreshnessWindow     time.Duration
	MaxItems            int
	FetchTimeout        time.Duration
	SimilarityThreshold float64
	// RetryBackoff is how long a failed refresh suppresses further attempts.
	RetryBackoff time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
	Metrics      *Metrics
}

// Service owns the news snapshot. It is safe for concurrent use; callers
// arriving while a refresh is in flight share its result.
type Service struct {
	cfg     Config
	fetcher Fetcher
	group   singleflight.Group

	mu        sync.RWMutex
	items     []Item
	fetchedAt time.Time
	populated bool
	retryAt   time.Time
}

// NewService creates a news service backed by fetcher.
func NewService(fetcher Fetcher, cfg Config) *Service {
	if len(cfg.SearchTerms) == 0 {
		cfg.SearchTerms = DefaultSearchTerms()
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		cfg:     cfg,
		fetcher: fetcher,
	}
}

// Get returns the current headlines. A snapshot younger than the freshness
// window is returned as is; otherwise a refresh is attempted. When the
// refresh fails the previous snapshot is served, and when there has never
// been one the result is an empty, non-nil slice. Get never returns an error.
func (s *Service) Get(ctx context.Context) []Item {
	now := s.cfg.Clock.Now()

	s.mu.RLock()
	fresh := s.populated && now.Sub(s.fetchedAt) < s.cfg.FreshnessWindow
	backingOff := now.Before(s.retryAt)
	s.mu.RUnlock()

	if fresh {
		s.countRequest(CacheHit)
		return s.current()
	}
	if backingOff {
		return s.serveStale()
	}

	items, err := s.refreshShared(ctx)
	if err != nil {
		if !errors.Is(err, ErrTotalRefreshFailure) {
			s.cfg.Logger.WarnContext(ctx, "news refresh abandoned", "error", err)
		}
		return s.serveStale()
	}

	s.countRequest(CacheRefreshed)
	return items
}

// Refresh forces a refresh regardless of freshness or backoff. On failure the
// previous snapshot stays in place and the error is returned.
func (s *Service) Refresh(ctx context.Context) ([]Item, error) {
	return s.refreshShared(ctx)
}

// Snapshot returns a copy of the cached items and the time they were fetched.
// ok is false before the first successful refresh.
func (s *Service) Snapshot() (items []Item, fetchedAt time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyItems(s.items), s.fetchedAt, s.populated
}

func (s *Service) current() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyItems(s.items)
}

func (s *Service) serveStale() []Item {
	items, _, ok := s.Snapshot()
	if ok {
		s.countRequest(CacheStale)
	} else {
		s.countRequest(CacheEmpty)
	}
	return items
}

// refreshShared runs at most one refresh at a time. The refresh itself is
// detached from the caller's cancellation so one impatient caller cannot
// abort the work others are waiting on.
func (s *Service) refreshShared(ctx context.Context) ([]Item, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan("refresh", func() (any, error) {
		return s.refresh(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyItems(res.Val.([]Item)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) refresh(ctx context.Context) (_ []Item, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "news.refresh")
	defer func() { endSpan(err) }()

	start := s.cfg.Clock.Now()
	terms := s.cfg.SearchTerms
	batches := make([][]Item, len(terms))
	errs := make([]error, len(terms))

	var g errgroup.Group
	for i, term := range terms {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
			defer cancel()
			fetchCtx, endFetch := tracing.StartSpan(fetchCtx, "news.fetch")
			tracing.SetAttributes(fetchCtx, attribute.String("news.term", term))

			items, err := s.fetcher.Fetch(fetchCtx, term)
			endFetch(err)
			if err != nil {
				errs[i] = err
				return nil
			}
			batches[i] = items
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		s.cfg.Logger.WarnContext(ctx, "news feed fetch failed",
			"term", terms[i],
			"error", err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.IncFeedErrors(terms[i])
		}
	}

	merged := Dedupe(batches, s.cfg.SimilarityThreshold)
	SortByRecency(merged)
	if len(merged) > s.cfg.MaxItems {
		merged = merged[:s.cfg.MaxItems]
	}

	end := s.cfg.Clock.Now()
	duration := end.Sub(start).Seconds()
	tracing.SetAttributes(ctx,
		attribute.Int("news.items", len(merged)),
		attribute.Int("news.feeds_failed", failed))

	if len(merged) == 0 {
		s.mu.Lock()
		s.retryAt = end.Add(s.cfg.RetryBackoff)
		populated := s.populated
		s.mu.Unlock()

		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ObserveRefresh(RefreshFailure, duration)
		}
		s.cfg.Logger.ErrorContext(ctx, "news refresh failed",
			"feeds_failed", failed,
			"feeds_total", len(terms),
			"serving_stale", populated,
			"retry_in", s.cfg.RetryBackoff)
		tracing.AddEvent(ctx, "serving stale snapshot", attribute.Bool("news.populated", populated))
		return nil, fmt.Errorf("%w: %d of %d feeds failed", ErrTotalRefreshFailure, failed, len(terms))
	}

	s.mu.Lock()
	s.items = merged
	s.fetchedAt = end
	s.populated = true
	s.retryAt = time.Time{}
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveRefresh(RefreshSuccess, duration)
		s.cfg.Metrics.SetSnapshot(len(merged), float64(end.Unix()))
	}
	s.cfg.Logger.InfoContext(ctx, "news refreshed",
		"items", len(merged),
		"feeds_failed", failed,
		"feeds_total", len(terms),
		"duration_seconds", duration)

	return copyItems(merged), nil
}

func (s *Service) countRequest(result string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.IncCacheRequests(result)
	}
}
