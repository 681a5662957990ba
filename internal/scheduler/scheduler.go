// Package scheduler runs named jobs on fixed intervals and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// JobFunc is the body of a job. Errors and panics are contained per run.
type JobFunc func(ctx context.Context) error

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Running   int        `json:"running"`
	Runs      int        `json:"runs"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

type job struct {
	name  string
	every time.Duration
	fn    JobFunc
	entry cron.EntryID

	mu      sync.Mutex
	running int
	runs    int
	lastRun time.Time
	lastErr error
}

// Scheduler owns a cron runner and the registered jobs. Runs of the same job
// may overlap; no run is skipped because another is in progress.
type Scheduler struct {
	cron    *cron.Cron
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	jobs    map[string]*job
	order   []string
	base    context.Context
	started bool
}

// New creates a stopped Scheduler.
func New(logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{logger: logger})),
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		jobs:    make(map[string]*job),
		base:    context.Background(),
	}
}

// Register adds a job that fires every interval once the scheduler starts.
func (s *Scheduler) Register(name string, every time.Duration, fn JobFunc) error {
	if name == "" {
		return errors.New("job name is required")
	}
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", name, every)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{name: name, every: every, fn: fn}
	if s.started {
		s.schedule(j)
	}
	s.jobs[name] = j
	s.order = append(s.order, name)
	return nil
}

// Start begins firing jobs. Scheduled runs use ctx, so cancelling it cancels
// in-flight job bodies.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.base = ctx
	for _, name := range s.order {
		s.schedule(s.jobs[name])
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.order))
}

func (s *Scheduler) schedule(j *job) {
	j.entry = s.cron.Schedule(cron.Every(j.every), cron.FuncJob(func() {
		s.mu.RLock()
		ctx := s.base
		s.mu.RUnlock()
		_ = s.execute(ctx, j)
	}))
}

// Stop halts firing and waits for running scheduled jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// RunNow executes a job synchronously and returns its error, wrapped in
// *domain.JobError.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, j)
}

// RunAll executes every job once, in registration order.
func (s *Scheduler) RunAll(ctx context.Context) {
	s.mu.RLock()
	names := append([]string(nil), s.order...)
	s.mu.RUnlock()
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		_ = s.RunNow(ctx, name)
	}
}

// Jobs reports the status of every job in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		j := s.jobs[name]
		j.mu.Lock()
		st := JobStatus{
			Name:     j.name,
			Interval: j.every.String(),
			Running:  j.running,
			Runs:     j.runs,
		}
		if !j.lastRun.IsZero() {
			t := j.lastRun
			st.LastRun = &t
		}
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		j.mu.Unlock()

		if s.started {
			if next := s.cron.Entry(j.entry).Next; !next.IsZero() {
				st.NextRun = &next
			}
		}
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, j *job) (err error) {
	start := s.clock.Now()
	j.mu.Lock()
	j.running++
	j.mu.Unlock()
	s.metrics.JobRunning.WithLabelValues(j.name).Inc()
	s.logger.Info("job started", "job", j.name)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			var je *domain.JobError
			if !errors.As(err, &je) {
				err = &domain.JobError{Job: j.name, Err: err}
			}
		}

		elapsed := s.clock.Since(start)
		j.mu.Lock()
		j.running--
		j.runs++
		j.lastRun = start
		j.lastErr = err
		j.mu.Unlock()

		s.metrics.JobRunning.WithLabelValues(j.name).Dec()
		s.metrics.JobDuration.WithLabelValues(j.name).Observe(elapsed.Seconds())
		if err != nil {
			s.metrics.JobRuns.WithLabelValues(j.name, "error").Inc()
			s.logger.Error("job failed", "job", j.name, "duration", elapsed, "error", err)
			return
		}
		s.metrics.JobRuns.WithLabelValues(j.name, "success").Inc()
		s.logger.Info("job finished", "job", j.name, "duration", elapsed)
	}()

	return j.fn(ctx)
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
