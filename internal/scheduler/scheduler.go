// Package scheduler runs the periodic sweeps of the orchestrator: each job owns a
// ticker goroutine, and a run is bounded by a timeout so a stuck sweep cannot hold
// back the next tick forever.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
)

// Job is a periodic task
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run, defaults to Interval
	Timeout time.Duration
	// RunOnStart runs the job once right after Start instead of waiting a full interval
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs registered jobs until stopped
type Scheduler struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	jobs    []Job
	running bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a new scheduler
func New(m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		metrics: m,
	}
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("job %s: scheduler already started", job.Name)
	}
	for _, j := range s.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}

	if job.Timeout <= 0 {
		job.Timeout = job.Interval
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs returns the names of the registered jobs
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Start begins every job loop in a background goroutine
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	s.running = true

	for _, job := range s.jobs {
		s.logger.Info("starting periodic job",
			slog.String("job", job.Name),
			slog.Duration("interval", job.Interval),
			slog.Duration("timeout", job.Timeout),
		)

		s.wg.Add(1)
		go s.run(ctx, job)
	}
}

// Stop gracefully stops every job and waits for in-flight runs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// run is the loop of a single job
func (s *Scheduler) run(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	if job.RunOnStart {
		s.execute(ctx, job)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, job)
		}
	}
}

// execute performs a single run with the job timeout
func (s *Scheduler) execute(ctx context.Context, job Job) {
	runCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(runCtx)
	s.metrics.ObserveSchedulerRun(job.Name, err == nil)

	if err != nil {
		s.logger.Warn("periodic job failed",
			slog.String("job", job.Name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Debug("periodic job completed",
		slog.String("job", job.Name),
		slog.Duration("duration", time.Since(start)),
	)
}
