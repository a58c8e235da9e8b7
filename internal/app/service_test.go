package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperTrader/config"
	"paperTrader/internal/adapters/sqlite"
	"paperTrader/internal/domain"
	"paperTrader/internal/marketdata"
	"paperTrader/internal/ports"
	"paperTrader/internal/scheduler"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockTicker counts invocations of one background engine.
type mockTicker struct {
	calls int
	err   error
}

func (m *mockTicker) Tick(ctx context.Context) error {
	m.calls++
	return m.err
}

type serviceRig struct {
	svc       *Service
	repo      *sqlite.Repository
	cache     *marketdata.Cache
	execution *mockTicker
	valuation *mockTicker
	refresher *mockTicker
	strategy  *mockTicker
	now       time.Time
}

func newServiceRig(t *testing.T) *serviceRig {
	t.Helper()

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cal, err := scheduler.NewMarketCalendar("America/New_York")
	require.NoError(t, err)

	cfg := &config.Config{
		OrderTickInterval:    5 * time.Second,
		PositionTickInterval: 30 * time.Second,
		QuoteTickInterval:    time.Minute,
		SignalTickInterval:   5 * time.Minute,
		JobSoftDeadline:      time.Minute,
		BackoffMax:           10 * time.Minute,
		DefaultExchange:      "NASDAQ",
		DefaultCurrency:      "USD",
	}

	rig := &serviceRig{
		repo:      repo,
		cache:     marketdata.NewCache(),
		execution: &mockTicker{},
		valuation: &mockTicker{},
		refresher: &mockTicker{},
		strategy:  &mockTicker{},
		now:       time.Date(2026, time.March, 4, 17, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceConfig{
		Cfg:         cfg,
		Logger:      &mockLogger{},
		Accounts:    repo,
		Instruments: repo,
		Orders:      repo,
		Positions:   repo,
		Trades:      repo,
		Signals:     repo,
		JobRuns:     repo,
		Watchlist:   repo,
		Quotes:      repo,
		Ledger:      repo,
		Cache:       rig.cache,
		Calendar:    cal,
		Execution:   rig.execution,
		Valuation:   rig.valuation,
		Refresher:   rig.refresher,
		Strategy:    rig.strategy,
		Now:         func() time.Time { return rig.now },
	})
	require.NoError(t, err)
	rig.svc = svc
	return rig
}

func (r *serviceRig) createAccount(t *testing.T, cash string) *domain.Account {
	t.Helper()
	acc := domain.NewAccount(decimal.RequireFromString(cash))
	require.NoError(t, r.repo.Create(context.Background(), acc))
	return acc
}

func TestSubmitOrder_Validation(t *testing.T) {
	rig := newServiceRig(t)
	acc := rig.createAccount(t, "10000")
	qty := decimal.NewFromInt(10)

	tests := []struct {
		name string
		req  SubmitOrderRequest
		want error
	}{
		{
			name: "missing symbol",
			req:  SubmitOrderRequest{AccountID: acc.ID, Side: domain.Buy, Kind: domain.KindMarket, Quantity: qty},
			want: ports.ErrInvalidRequest,
		},
		{
			name: "unknown side",
			req:  SubmitOrderRequest{AccountID: acc.ID, Symbol: "AAPL", Side: "HOLD", Kind: domain.KindMarket, Quantity: qty},
			want: ports.ErrInvalidRequest,
		},
		{
			name: "unknown order type",
			req:  SubmitOrderRequest{AccountID: acc.ID, Symbol: "AAPL", Side: domain.Buy, Kind: "TRAILING", Quantity: qty},
			want: ports.ErrInvalidRequest,
		},
		{
			name: "limit order without limit price",
			req:  SubmitOrderRequest{AccountID: acc.ID, Symbol: "AAPL", Side: domain.Buy, Kind: domain.KindLimit, Quantity: qty},
			want: ports.ErrInvalidRequest,
		},
		{
			name: "stop order without stop price",
			req:  SubmitOrderRequest{AccountID: acc.ID, Symbol: "AAPL", Side: domain.Sell, Kind: domain.KindStop, Quantity: qty},
			want: ports.ErrInvalidRequest,
		},
		{
			name: "zero quantity",
			req:  SubmitOrderRequest{AccountID: acc.ID, Symbol: "AAPL", Side: domain.Buy, Kind: domain.KindMarket},
			want: ports.ErrInvalidRequest,
		},
		{
			name: "unknown account",
			req:  SubmitOrderRequest{AccountID: "missing", Symbol: "AAPL", Side: domain.Buy, Kind: domain.KindMarket, Quantity: qty},
			want: ports.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rig.svc.SubmitOrder(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmitOrder_QueuesPendingOrder(t *testing.T) {
	rig := newServiceRig(t)
	acc := rig.createAccount(t, "10000")
	ctx := context.Background()

	order, err := rig.svc.SubmitOrder(ctx, SubmitOrderRequest{
		AccountID:  acc.ID,
		Symbol:     " aapl ",
		Side:       domain.Buy,
		Kind:       domain.KindLimit,
		Quantity:   decimal.NewFromInt(10),
		LimitPrice: decimal.RequireFromString("150.25"),
	})
	require.NoError(t, err)
	require.NotZero(t, order.ID)
	assert.Equal(t, "AAPL", order.Symbol)
	assert.Equal(t, domain.StatusPending, order.Status)

	stored, err := rig.repo.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.True(t, stored.LimitPrice.Equal(decimal.RequireFromString("150.25")))

	// Symbol normalization registers the instrument as well.
	inst, err := rig.repo.FindBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "NASDAQ", inst.Exchange)
}

func TestCancelOrder(t *testing.T) {
	rig := newServiceRig(t)
	acc := rig.createAccount(t, "10000")
	ctx := context.Background()

	order, err := rig.svc.SubmitOrder(ctx, SubmitOrderRequest{
		AccountID: acc.ID,
		Symbol:    "AAPL",
		Side:      domain.Buy,
		Kind:      domain.KindMarket,
		Quantity:  decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	require.NoError(t, rig.svc.CancelOrder(ctx, order.ID))
	stored, err := rig.repo.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)

	// A terminal order cannot be cancelled again.
	err = rig.svc.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ports.ErrOrderTerminal)
}

func TestPerformance(t *testing.T) {
	rig := newServiceRig(t)
	acc := rig.createAccount(t, "10000")
	ctx := context.Background()

	// Build a position through the ledger: buy 10 AAPL at 100.
	order, err := rig.svc.SubmitOrder(ctx, SubmitOrderRequest{
		AccountID: acc.ID,
		Symbol:    "AAPL",
		Side:      domain.Buy,
		Kind:      domain.KindMarket,
		Quantity:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	_, err = rig.repo.ApplyFill(ctx, &ports.FillRequest{
		Order:      order,
		Quantity:   decimal.NewFromInt(10),
		Price:      decimal.NewFromInt(100),
		ExecutedAt: rig.now,
	})
	require.NoError(t, err)

	// Mark the position to a fresher cached quote.
	rig.cache.Put(domain.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(110), AsOf: rig.now})

	perf, err := rig.svc.Performance(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, perf.Account.CashBalance.Equal(decimal.NewFromInt(9000)))
	require.Len(t, perf.Positions, 1)
	assert.True(t, perf.Positions[0].Price.Equal(decimal.NewFromInt(110)))
	assert.True(t, perf.PositionsValue.Equal(decimal.NewFromInt(1100)))
	assert.True(t, perf.UnrealizedPNL.Equal(decimal.NewFromInt(100)))
	assert.True(t, perf.Equity.Equal(decimal.NewFromInt(10100)))
	// Buys alone produce no closing trades.
	assert.Equal(t, 0, perf.Stats.TotalTrades)
}

func TestPerformance_UnknownAccount(t *testing.T) {
	rig := newServiceRig(t)
	_, err := rig.svc.Performance(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestWatch(t *testing.T) {
	rig := newServiceRig(t)
	acc := rig.createAccount(t, "10000")
	ctx := context.Background()

	require.NoError(t, rig.svc.Watch(ctx, acc.ID, "msft"))
	// Idempotent.
	require.NoError(t, rig.svc.Watch(ctx, acc.ID, "MSFT"))

	symbols, err := rig.repo.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, symbols)

	err = rig.svc.Watch(ctx, acc.ID, "  ")
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	err = rig.svc.Watch(ctx, "missing", "MSFT")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestForceRun_DrivesEngine(t *testing.T) {
	rig := newServiceRig(t)

	require.NoError(t, rig.svc.ForceRun(context.Background(), JobProcessOrders))
	assert.Equal(t, 1, rig.execution.calls)
	assert.Equal(t, 0, rig.valuation.calls)

	err := rig.svc.ForceRun(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, ports.ErrJobNotFound)
}

func TestJobStatus_ListsStandardJobs(t *testing.T) {
	rig := newServiceRig(t)

	statuses := rig.svc.JobStatus()
	require.Len(t, statuses, 4)
	assert.Equal(t, JobProcessOrders, statuses[0].Name)
	assert.Equal(t, JobUpdatePositions, statuses[1].Name)
	assert.Equal(t, JobRefreshMarketData, statuses[2].Name)
	assert.Equal(t, JobTradingBot, statuses[3].Name)
}

func TestJobHistory(t *testing.T) {
	rig := newServiceRig(t)
	ctx := context.Background()

	require.NoError(t, rig.svc.ForceRun(ctx, JobUpdatePositions))
	require.NoError(t, rig.svc.ForceRun(ctx, JobUpdatePositions))

	runs, err := rig.svc.JobHistory(ctx, JobUpdatePositions, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.OutcomeSuccess, runs[0].Outcome)
}
