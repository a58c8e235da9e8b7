package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockRunRepo collects recorded runs in memory.
type mockRunRepo struct {
	mu     sync.Mutex
	runs   []*domain.JobRun
	failOn error
}

func (m *mockRunRepo) RecordJobRun(ctx context.Context, run *domain.JobRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return 0, m.failOn
	}
	m.runs = append(m.runs, run)
	return int64(len(m.runs)), nil
}

func (m *mockRunRepo) FindJobRuns(ctx context.Context, jobName string, limit int) ([]*domain.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.JobRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].JobName == jobName {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func (m *mockRunRepo) recorded() []*domain.JobRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.JobRun(nil), m.runs...)
}

func noopJob(name string, interval time.Duration) Job {
	return Job{Name: name, Interval: interval, Run: func(ctx context.Context) error { return nil }}
}

func newTestScheduler(t *testing.T, repo *mockRunRepo, now time.Time, jobs ...Job) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Jobs:     jobs,
		Runs:     repo,
		Calendar: newTestCalendar(t),
		Logger:   &mockLogger{},
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	repo := &mockRunRepo{}
	cal := newTestCalendar(t)
	logger := &mockLogger{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no jobs", cfg: Config{Runs: repo, Calendar: cal, Logger: logger}},
		{name: "nil repo", cfg: Config{Jobs: []Job{noopJob("a", time.Second)}, Calendar: cal, Logger: logger}},
		{name: "unnamed job", cfg: Config{Jobs: []Job{noopJob("", time.Second)}, Runs: repo, Calendar: cal, Logger: logger}},
		{name: "zero interval", cfg: Config{Jobs: []Job{noopJob("a", 0)}, Runs: repo, Calendar: cal, Logger: logger}},
		{name: "nil run func", cfg: Config{Jobs: []Job{{Name: "a", Interval: time.Second}}, Runs: repo, Calendar: cal, Logger: logger}},
		{name: "duplicate names", cfg: Config{Jobs: []Job{noopJob("a", time.Second), noopJob("a", time.Second)}, Runs: repo, Calendar: cal, Logger: logger}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestForceRun_RecordsSuccess(t *testing.T) {
	repo := &mockRunRepo{}
	now := time.Date(2026, time.March, 4, 17, 0, 0, 0, time.UTC)
	ran := 0
	job := Job{Name: "process-orders", Interval: 5 * time.Second, Run: func(ctx context.Context) error {
		ran++
		return nil
	}}
	s := newTestScheduler(t, repo, now, job)

	require.NoError(t, s.ForceRun(context.Background(), "process-orders"))
	assert.Equal(t, 1, ran)

	runs := repo.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, "process-orders", runs[0].JobName)
	assert.Equal(t, domain.OutcomeSuccess, runs[0].Outcome)
	assert.Empty(t, runs[0].Error)
	assert.True(t, runs[0].StartedAt.Equal(now))
}

func TestForceRun_BypassesMarketHoursGate(t *testing.T) {
	repo := &mockRunRepo{}
	// Saturday: the scheduled tick would skip, the manual trigger must not.
	saturday := time.Date(2026, time.March, 7, 17, 0, 0, 0, time.UTC)
	ran := 0
	job := Job{Name: "refresh-market-data", Interval: time.Minute, MarketHoursOnly: true, Run: func(ctx context.Context) error {
		ran++
		return nil
	}}
	s := newTestScheduler(t, repo, saturday, job)

	require.NoError(t, s.ForceRun(context.Background(), "refresh-market-data"))
	assert.Equal(t, 1, ran)
}

func TestForceRun_UnknownJob(t *testing.T) {
	s := newTestScheduler(t, &mockRunRepo{}, time.Now(), noopJob("a", time.Second))
	err := s.ForceRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ports.ErrJobNotFound)
}

func TestForceRun_AlreadyRunning(t *testing.T) {
	s := newTestScheduler(t, &mockRunRepo{}, time.Now(), noopJob("a", time.Second))
	s.jobs["a"].running.Store(true)

	err := s.ForceRun(context.Background(), "a")
	assert.ErrorIs(t, err, ports.ErrJobRunning)
}

func TestTick_SkipsWhenMarketClosed(t *testing.T) {
	repo := &mockRunRepo{}
	saturday := time.Date(2026, time.March, 7, 17, 0, 0, 0, time.UTC)
	ran := 0
	job := Job{Name: "trading-bot", Interval: time.Minute, MarketHoursOnly: true, Run: func(ctx context.Context) error {
		ran++
		return nil
	}}
	s := newTestScheduler(t, repo, saturday, job)

	delay := s.tick(context.Background(), s.jobs["trading-bot"])

	assert.Equal(t, 0, ran)
	assert.Equal(t, time.Minute, delay)
	runs := repo.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.OutcomeSkipped, runs[0].Outcome)
	assert.Equal(t, "market closed", runs[0].Error)
}

func TestTick_SkipsWhenStillRunning(t *testing.T) {
	repo := &mockRunRepo{}
	ran := 0
	job := Job{Name: "update-positions", Interval: 30 * time.Second, Run: func(ctx context.Context) error {
		ran++
		return nil
	}}
	s := newTestScheduler(t, repo, time.Now(), job)
	s.jobs["update-positions"].running.Store(true)

	s.tick(context.Background(), s.jobs["update-positions"])

	assert.Equal(t, 0, ran)
	runs := repo.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.OutcomeSkipped, runs[0].Outcome)
	assert.Equal(t, "previous run still in progress", runs[0].Error)
	// The flag belongs to the in-flight run; the skip must not clear it.
	assert.True(t, s.jobs["update-positions"].running.Load())
}

func TestTick_FailureBacksOffAndSuccessResets(t *testing.T) {
	repo := &mockRunRepo{}
	boom := errors.New("provider down")
	var fail bool
	job := Job{Name: "refresh-market-data", Interval: time.Minute, Run: func(ctx context.Context) error {
		if fail {
			return boom
		}
		return nil
	}}
	s := newTestScheduler(t, repo, time.Now(), job)
	st := s.jobs["refresh-market-data"]

	fail = true
	first := s.tick(context.Background(), st)
	second := s.tick(context.Background(), st)
	assert.GreaterOrEqual(t, first, time.Minute)
	assert.GreaterOrEqual(t, second, time.Minute) // jittered between 1x and 2x the cadence
	assert.LessOrEqual(t, second, 2*time.Minute)

	status := s.Status()[0]
	assert.Equal(t, domain.OutcomeFailure, status.LastOutcome)
	assert.Equal(t, "provider down", status.LastError)
	assert.Equal(t, 2, status.ConsecutiveFailures)

	fail = false
	delay := s.tick(context.Background(), st)
	assert.Equal(t, time.Minute, delay)

	status = s.Status()[0]
	assert.Equal(t, domain.OutcomeSuccess, status.LastOutcome)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 0, status.ConsecutiveFailures)

	runs := repo.recorded()
	require.Len(t, runs, 3)
	assert.Equal(t, domain.OutcomeFailure, runs[0].Outcome)
	assert.Equal(t, "provider down", runs[0].Error)
	assert.Equal(t, domain.OutcomeSuccess, runs[2].Outcome)
}

func TestTick_AuditWriteFailureDoesNotStopJob(t *testing.T) {
	repo := &mockRunRepo{failOn: errors.New("disk full")}
	ran := 0
	job := Job{Name: "process-orders", Interval: 5 * time.Second, Run: func(ctx context.Context) error {
		ran++
		return nil
	}}
	s := newTestScheduler(t, repo, time.Now(), job)

	delay := s.tick(context.Background(), s.jobs["process-orders"])
	assert.Equal(t, 1, ran)
	assert.Equal(t, 5*time.Second, delay)
}

func TestStatus_PreservesRegistrationOrder(t *testing.T) {
	s := newTestScheduler(t, &mockRunRepo{}, time.Now(),
		noopJob("process-orders", 5*time.Second),
		noopJob("update-positions", 30*time.Second),
		noopJob("refresh-market-data", time.Minute),
	)
	statuses := s.Status()
	require.Len(t, statuses, 3)
	assert.Equal(t, "process-orders", statuses[0].Name)
	assert.Equal(t, "update-positions", statuses[1].Name)
	assert.Equal(t, "refresh-market-data", statuses[2].Name)
}

func TestStart_RunsJobsUntilCancelled(t *testing.T) {
	repo := &mockRunRepo{}
	done := make(chan struct{})
	var once sync.Once
	job := Job{Name: "fast", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
		once.Do(func() { close(done) })
		return nil
	}}
	s, err := New(Config{
		Jobs:     []Job{job},
		Runs:     repo,
		Calendar: newTestCalendar(t),
		Logger:   &mockLogger{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.NotEmpty(t, repo.recorded())
}
