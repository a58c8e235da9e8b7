package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sync/errgroup"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

// Job is one recurring unit of background work. Run is invoked at most once
// at a time per job; overlapping ticks are skipped, not queued.
type Job struct {
	Name            string
	Interval        time.Duration
	MarketHoursOnly bool
	Run             func(ctx context.Context) error
}

// JobStatus is a point-in-time view of one job's state.
type JobStatus struct {
	Name                string
	Running             bool
	LastOutcome         domain.JobOutcome
	LastError           string
	LastStartedAt       time.Time
	NextDue             time.Time
	ConsecutiveFailures int
}

type jobState struct {
	job     Job
	running atomic.Bool
	backoff *backoff.Backoff

	mu          sync.Mutex
	lastOutcome domain.JobOutcome
	lastError   string
	lastStarted time.Time
	nextDue     time.Time
	failures    int
}

// Config holds the dependencies for the job scheduler.
type Config struct {
	Jobs         []Job
	Runs         ports.JobRunRepository
	Calendar     *MarketCalendar
	Logger       ports.Logger
	SoftDeadline time.Duration // runs exceeding this are logged, never killed
	BackoffMax   time.Duration // cap on the per-job failure backoff
	Now          func() time.Time
}

// Scheduler drives the background jobs on fixed cadences with single-flight
// execution, per-job failure backoff and an audit record for every tick.
type Scheduler struct {
	runs         ports.JobRunRepository
	calendar     *MarketCalendar
	logger       ports.Logger
	softDeadline time.Duration
	now          func() time.Time

	jobs  map[string]*jobState
	order []string // preserves registration order for Status
}

// New validates the configuration and builds a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if len(cfg.Jobs) == 0 {
		return nil, fmt.Errorf("scheduler.New: no jobs configured")
	}
	if cfg.Runs == nil || cfg.Calendar == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("scheduler.New: missing required dependencies")
	}
	if cfg.SoftDeadline <= 0 {
		cfg.SoftDeadline = time.Minute
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Scheduler{
		runs:         cfg.Runs,
		calendar:     cfg.Calendar,
		logger:       cfg.Logger,
		softDeadline: cfg.SoftDeadline,
		now:          cfg.Now,
		jobs:         make(map[string]*jobState, len(cfg.Jobs)),
	}
	for _, job := range cfg.Jobs {
		if job.Name == "" || job.Run == nil || job.Interval <= 0 {
			return nil, fmt.Errorf("scheduler.New: invalid job definition %q", job.Name)
		}
		if _, dup := s.jobs[job.Name]; dup {
			return nil, fmt.Errorf("scheduler.New: duplicate job name %q", job.Name)
		}
		s.jobs[job.Name] = &jobState{
			job: job,
			backoff: &backoff.Backoff{
				Min:    job.Interval,
				Max:    cfg.BackoffMax,
				Factor: 2,
				Jitter: true,
			},
		}
		s.order = append(s.order, job.Name)
	}
	return s, nil
}

// Start runs one ticker loop per job and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		st := s.jobs[name]
		g.Go(func() error {
			return s.runLoop(ctx, st)
		})
	}
	s.logger.Info(ctx, "Scheduler started", map[string]interface{}{"jobs": len(s.order)})
	return g.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, st *jobState) error {
	delay := st.job.Interval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		st.mu.Lock()
		st.nextDue = s.now().Add(delay)
		st.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		delay = s.tick(ctx, st)
		timer.Reset(delay)
	}
}

// tick executes one scheduled invocation and returns the delay until the
// next one. Failures stretch the delay with exponential backoff; a success
// resets it to the job's cadence.
func (s *Scheduler) tick(ctx context.Context, st *jobState) time.Duration {
	if st.job.MarketHoursOnly && !s.calendar.IsOpen(s.now()) {
		s.recordSkip(ctx, st, "market closed")
		return st.job.Interval
	}
	if !st.running.CompareAndSwap(false, true) {
		s.recordSkip(ctx, st, "previous run still in progress")
		return st.job.Interval
	}

	err := s.execute(ctx, st)
	st.running.Store(false)

	if err != nil {
		return st.backoff.Duration()
	}
	st.backoff.Reset()
	return st.job.Interval
}

// execute runs the job body once and records the outcome. The caller holds
// the running flag.
func (s *Scheduler) execute(ctx context.Context, st *jobState) error {
	started := s.now()
	st.mu.Lock()
	st.lastStarted = started
	st.mu.Unlock()

	err := st.job.Run(ctx)
	finished := s.now()
	elapsed := finished.Sub(started)

	if elapsed > s.softDeadline {
		s.logger.Warn(ctx, "Job exceeded soft deadline", map[string]interface{}{
			"job":      st.job.Name,
			"elapsed":  elapsed.String(),
			"deadline": s.softDeadline.String(),
		})
	}

	run := &domain.JobRun{
		JobName:    st.job.Name,
		StartedAt:  started,
		FinishedAt: finished,
	}

	st.mu.Lock()
	if err != nil {
		st.lastOutcome = domain.OutcomeFailure
		st.lastError = err.Error()
		st.failures++
		run.Outcome = domain.OutcomeFailure
		run.Error = err.Error()
	} else {
		st.lastOutcome = domain.OutcomeSuccess
		st.lastError = ""
		st.failures = 0
		run.Outcome = domain.OutcomeSuccess
	}
	st.mu.Unlock()

	if err != nil {
		s.logger.Error(ctx, err, "Job run failed", map[string]interface{}{
			"job":     st.job.Name,
			"elapsed": elapsed.String(),
		})
	} else {
		s.logger.Debug(ctx, "Job run completed", map[string]interface{}{
			"job":     st.job.Name,
			"elapsed": elapsed.String(),
		})
	}

	s.record(ctx, st.job.Name, run)
	return err
}

func (s *Scheduler) recordSkip(ctx context.Context, st *jobState, reason string) {
	now := s.now()
	st.mu.Lock()
	st.lastOutcome = domain.OutcomeSkipped
	st.lastError = reason
	st.mu.Unlock()

	s.logger.Debug(ctx, "Job tick skipped", map[string]interface{}{
		"job":    st.job.Name,
		"reason": reason,
	})
	s.record(ctx, st.job.Name, &domain.JobRun{
		JobName:    st.job.Name,
		StartedAt:  now,
		FinishedAt: now,
		Outcome:    domain.OutcomeSkipped,
		Error:      reason,
	})
}

// record persists the audit row. A write failure is logged and swallowed so
// bookkeeping trouble never stops the jobs themselves.
func (s *Scheduler) record(ctx context.Context, jobName string, run *domain.JobRun) {
	if _, err := s.runs.RecordJobRun(ctx, run); err != nil {
		s.logger.Error(ctx, err, "Failed to record job run", map[string]interface{}{"job": jobName})
	}
}

// ForceRun triggers a job immediately, bypassing the market-hours gate, and
// waits for it to finish. Returns ports.ErrJobNotFound for an unknown name
// and ports.ErrJobRunning when a scheduled tick is already in flight.
func (s *Scheduler) ForceRun(ctx context.Context, name string) error {
	st, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("ForceRun: %q: %w", name, ports.ErrJobNotFound)
	}
	if !st.running.CompareAndSwap(false, true) {
		return fmt.Errorf("ForceRun: %q: %w", name, ports.ErrJobRunning)
	}
	defer st.running.Store(false)

	s.logger.Info(ctx, "Manual job trigger", map[string]interface{}{"job": name})
	return s.execute(ctx, st)
}

// Status reports every job's state in registration order.
func (s *Scheduler) Status() []JobStatus {
	statuses := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		st := s.jobs[name]
		st.mu.Lock()
		statuses = append(statuses, JobStatus{
			Name:                name,
			Running:             st.running.Load(),
			LastOutcome:         st.lastOutcome,
			LastError:           st.lastError,
			LastStartedAt:       st.lastStarted,
			NextDue:             st.nextDue,
			ConsecutiveFailures: st.failures,
		})
		st.mu.Unlock()
	}
	return statuses
}
