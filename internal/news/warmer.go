package news

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// JobTypeNewsWarm labels warmer runs in background job metrics.
const JobTypeNewsWarm = "news_warm"

// DefaultWarmInterval refreshes a little ahead of the default freshness
// window so readers rarely hit an expired snapshot.
const DefaultWarmInterval = 25 * time.Minute

// WarmerConfig configures the news warmer.
type WarmerConfig struct {
	// Interval is the duration between refreshes.
	Interval time.Duration
	// Timeout bounds a single refresh.
	Timeout time.Duration
	// WarmOnStart refreshes immediately when the warmer starts.
	WarmOnStart bool
	Clock       clock.Clock
	Logger      *slog.Logger
	JobMetrics  JobMetrics
}

// Warmer keeps the news snapshot populated in the background.
type Warmer struct {
	config  WarmerConfig
	service *Service

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWarmer creates a warmer for service.
func NewWarmer(service *Service, config WarmerConfig) *Warmer {
	if config.Interval <= 0 {
		config.Interval = DefaultWarmInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Warmer{
		config:  config,
		service: service,
	}
}

// Start begins periodic refreshes.
// Returns immediately; the warmer runs in a background goroutine.
func (w *Warmer) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Stop signals the warmer to stop and waits for it to finish.
func (w *Warmer) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// IsRunning returns whether the warmer is currently running.
func (w *Warmer) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Warmer) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := w.config.Clock.Ticker(w.config.Interval)
	defer ticker.Stop()

	if w.config.WarmOnStart {
		w.WarmNow(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.config.Logger.Info("news warmer stopping due to context cancellation")
			return
		case <-w.stopCh:
			w.config.Logger.Info("news warmer stopping due to stop signal")
			return
		case <-ticker.C:
			w.WarmNow(ctx)
		}
	}
}

// WarmNow refreshes the snapshot once and records the outcome.
func (w *Warmer) WarmNow(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, w.config.Timeout)
	defer cancel()

	start := w.config.Clock.Now()
	items, err := w.service.Refresh(ctx)
	duration := w.config.Clock.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "failure"
		errorType := "refresh_error"
		switch {
		case errors.Is(err, ErrTotalRefreshFailure):
			errorType = "total_failure"
		case errors.Is(err, context.DeadlineExceeded):
			errorType = "timeout"
		}
		w.config.Logger.Warn("news warm failed", "error", err)
		if w.config.JobMetrics != nil {
			w.config.JobMetrics.IncJobErrors(JobTypeNewsWarm, errorType)
		}
	} else {
		w.config.Logger.Debug("news warmed", "items", len(items))
	}

	if w.config.JobMetrics != nil {
		w.config.JobMetrics.IncJobsTotal(JobTypeNewsWarm, status)
		w.config.JobMetrics.ObserveJobDuration(JobTypeNewsWarm, duration)
	}
}
