package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Job is a unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run. Zero means Interval.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics Reporter
}

// Scheduler runs Jobs on their own tickers until stopped.
type Scheduler struct {
	config SchedulerConfig
	jobs   []Job

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler with no jobs.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Scheduler{config: config}
}

// Add registers a job. Jobs added after Start are not run.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Len reports the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.jobs)
}

// Start launches one goroutine per job. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	ticker := s.config.Clock.Ticker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, job)
		}
	}
}

// RunOnce runs job immediately and records the outcome.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}
	runCtx, cancel := s.config.Clock.WithTimeout(ctx, timeout)
	defer cancel()

	start := s.config.Clock.Now()
	err := job.Run(runCtx)
	elapsed := s.config.Clock.Since(start).Seconds()

	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		s.config.Logger.Warn("background job failed", "job", job.Name, "error", err)
	}
	if m := s.config.Metrics; m != nil {
		if err != nil {
			m.IncJobErrors(job.Name, errorType(err))
		}
		m.IncJobsTotal(job.Name, status)
		m.ObserveJobDuration(job.Name, elapsed)
	}
	return err
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
