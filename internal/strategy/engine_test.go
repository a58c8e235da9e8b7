package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperTrader/internal/adapters/sqlite"
	"paperTrader/internal/domain"
	"paperTrader/internal/marketdata"
	"paperTrader/internal/ports"
	"paperTrader/internal/risk"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockHistoryProvider serves canned history; quotes come from the cache.
type mockHistoryProvider struct {
	history map[string][]*domain.Candle
	errs    map[string]error
}

func (m *mockHistoryProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return nil, ports.ErrProviderUnavailable
}

func (m *mockHistoryProvider) FetchHistory(ctx context.Context, symbol string, interval time.Duration, limit int) ([]*domain.Candle, error) {
	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	return m.history[symbol], nil
}

type engineRig struct {
	repo     *sqlite.Repository
	cache    *marketdata.Cache
	provider *mockHistoryProvider
	engine   *Engine
	now      time.Time
}

func newEngineRig(t *testing.T) (*engineRig, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "strategy-test-*")
	require.NoError(t, err)

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	sizer, err := risk.NewSizer(risk.DefaultSizerConfig())
	require.NoError(t, err)

	rig := &engineRig{
		repo:     repo,
		cache:    marketdata.NewCache(),
		provider: &mockHistoryProvider{history: make(map[string][]*domain.Candle)},
		now:      time.Now().UTC(),
	}
	rig.engine, err = NewEngine(EngineConfig{
		Strategies:          repo,
		Accounts:            repo,
		Positions:           repo,
		Orders:              repo,
		Signals:             repo,
		Provider:            rig.provider,
		Cache:               rig.cache,
		Sizer:               sizer,
		Logger:              &mockLogger{},
		ConfidenceThreshold: 0.7,
		HistoryBars:         10,
		HistoryBarInterval:  24 * time.Hour,
		Now:                 func() time.Time { return rig.now },
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return rig, cleanup
}

func (r *engineRig) strategy(t *testing.T, kind, params string, universe ...string) *domain.Strategy {
	t.Helper()
	s := &domain.Strategy{
		Name:       "test " + kind,
		Kind:       kind,
		ParamsJSON: params,
		Universe:   universe,
		Active:     true,
	}
	require.NoError(t, r.repo.SaveStrategy(context.Background(), s))
	return s
}

func (r *engineRig) account(t *testing.T, cash string, strategyID int64, auto bool) *domain.Account {
	t.Helper()
	acc := domain.NewAccount(decimal.RequireFromString(cash))
	acc.StrategyID = strategyID
	acc.AutoExecute = auto
	require.NoError(t, r.repo.Create(context.Background(), acc))
	return acc
}

func (r *engineRig) quote(symbol, price string) {
	r.cache.Put(domain.Quote{
		Symbol: symbol,
		Price:  decimal.RequireFromString(price),
		AsOf:   r.now,
		Source: "test",
	})
}

// fallingCloses produces an RSI of zero: the strongest possible buy signal.
func fallingCloses(n int, from float64) []*domain.Candle {
	candles := make([]*domain.Candle, n)
	for i := range candles {
		candles[i] = &domain.Candle{Close: from - float64(i)*2}
	}
	return candles
}

func TestEngine_RecordsSignalAndSynthesizesOrder(t *testing.T) {
	rig, cleanup := newEngineRig(t)
	defer cleanup()
	ctx := context.Background()

	strat := rig.strategy(t, KindRSIReversion, `{"period": 3, "oversold": 30, "overbought": 70}`, "AAPL")
	acc := rig.account(t, "10000", strat.ID, true)
	rig.quote("AAPL", "100")
	rig.provider.history["AAPL"] = fallingCloses(10, 120)

	require.NoError(t, rig.engine.Tick(ctx))

	signals, err := rig.repo.FindSignalsByStrategy(ctx, strat.ID, 10)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalBuy, signals[0].Type)
	assert.GreaterOrEqual(t, signals[0].Confidence, 0.7)
	assert.True(t, signals[0].Price.Equal(decimal.RequireFromString("100")))

	orders, err := rig.repo.FindRecentByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.Buy, orders[0].Side)
	assert.Equal(t, domain.KindMarket, orders[0].Kind)
	assert.Equal(t, domain.StatusPending, orders[0].Status, "order waits for the next execution tick")
	// 10% of 10000 equity = 1000 notional at price 100 = 10 shares.
	assert.True(t, orders[0].Quantity.Equal(decimal.RequireFromString("10")),
		"got %s", orders[0].Quantity)
}

func TestEngine_ManualAccountGetsSignalButNoOrder(t *testing.T) {
	rig, cleanup := newEngineRig(t)
	defer cleanup()
	ctx := context.Background()

	strat := rig.strategy(t, KindRSIReversion, `{"period": 3, "oversold": 30, "overbought": 70}`, "AAPL")
	acc := rig.account(t, "10000", strat.ID, false)
	rig.quote("AAPL", "100")
	rig.provider.history["AAPL"] = fallingCloses(10, 120)

	require.NoError(t, rig.engine.Tick(ctx))

	signals, err := rig.repo.FindSignalsByStrategy(ctx, strat.ID, 10)
	require.NoError(t, err)
	assert.Len(t, signals, 1, "signals are advisory for manual accounts")

	orders, err := rig.repo.FindRecentByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEngine_NoLinkedAccountsSkipsStrategy(t *testing.T) {
	rig, cleanup := newEngineRig(t)
	defer cleanup()
	ctx := context.Background()

	strat := rig.strategy(t, KindRSIReversion, `{"period": 3, "oversold": 30, "overbought": 70}`, "AAPL")
	rig.quote("AAPL", "100")
	rig.provider.history["AAPL"] = fallingCloses(10, 120)

	require.NoError(t, rig.engine.Tick(ctx))

	signals, err := rig.repo.FindSignalsByStrategy(ctx, strat.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestEngine_OpenOrderPreventsStacking(t *testing.T) {
	rig, cleanup := newEngineRig(t)
	defer cleanup()
	ctx := context.Background()

	strat := rig.strategy(t, KindRSIReversion, `{"period": 3, "oversold": 30, "overbought": 70}`, "AAPL")
	acc := rig.account(t, "10000", strat.ID, true)
	rig.quote("AAPL", "100")
	rig.provider.history["AAPL"] = fallingCloses(10, 120)

	// Two consecutive signal ticks with no execution tick in between.
	require.NoError(t, rig.engine.Tick(ctx))
	require.NoError(t, rig.engine.Tick(ctx))

	orders, err := rig.repo.FindRecentByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1, "a queued order must not be duplicated")
}

func TestEngine_BuySkippedWhenPositionHeld(t *testing.T) {
	rig, cleanup := newEngineRig(t)
	defer cleanup()
	ctx := context.Background()

	strat := rig.strategy(t, KindRSIReversion, `{"period": 3, "oversold": 30, "overbought": 70}`, "AAPL")
	acc := rig.account(t, "10000", strat.ID, true)
	rig.quote("AAPL", "100")
	rig.provider.history["AAPL"] = fallingCloses(10, 120)

	// Open a position via the ledger first.
	order := &domain.Order{
		AccountID: acc.ID, Symbol: "AAPL", Side: domain.Buy, Kind: domain.KindMarket,
		Quantity: decimal.RequireFromString("5"), Status: domain.StatusPending, CreatedAt: rig.now,
	}
	_, err := rig.repo.CreateOrder(ctx, order)
	require.NoError(t, err)
	_, err = rig.repo.ApplyFill(ctx, &ports.FillRequest{
		Order: order, Quantity: decimal.RequireFromString("5"),
		Price: decimal.RequireFromString("100"), ExecutedAt: rig.now,
	})
	require.NoError(t, err)

	require.NoError(t, rig.engine.Tick(ctx))

	orders, err := rig.repo.FindRecentByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1, "only the manual order exists, no synthesized buy")
}

func TestEngine_SellSignalClosesWholePosition(t *testing.T) {
	rig, cleanup := newEngineRig(t)
	defer cleanup()
	ctx := context.Background()

	strat := rig.strategy(t, KindRSIReversion, `{"period": 3, "oversold": 30, "overbought": 70}`, "AAPL")
	acc := rig.account(t, "10000", strat.ID, true)
	rig.quote("AAPL", "120")

	// Rising closes push RSI overbought.
	rising := make([]*domain.Candle, 10)
	for i := range rising {
		rising[i] = &domain.Candle{Close: 100 + float64(i)*2}
	}
	rig.provider.history["AAPL"] = rising

	// Hold 7 shares.
	order := &domain.Order{
		AccountID: acc.ID, Symbol: "AAPL", Side: domain.Buy, Kind: domain.KindMarket,
		Quantity: decimal.RequireFromString("7"), Status: domain.StatusPending, CreatedAt: rig.now,
	}
	_, err := rig.repo.CreateOrder(ctx, order)
	require.NoError(t, err)
	_, err = rig.repo.ApplyFill(ctx, &ports.FillRequest{
		Order: order, Quantity: decimal.RequireFromString("7"),
		Price: decimal.RequireFromString("100"), ExecutedAt: rig.now,
	})
	require.NoError(t, err)

	require.NoError(t, rig.engine.Tick(ctx))

	orders, err := rig.repo.FindRecentByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	// Most recent first.
	assert.Equal(t, domain.Sell, orders[0].Side)
	assert.True(t, orders[0].Quantity.Equal(decimal.RequireFromString("7")),
		"sell closes the whole position, got %s", orders[0].Quantity)
}

func TestEngine_SellSignalWithoutPositionIsNoOp(t *testing.T) {
	rig, cleanup := newEngineRig(t)
	defer cleanup()
	ctx := context.Background()

	strat := rig.strategy(t, KindRSIReversion, `{"period": 3, "oversold": 30, "overbought": 70}`, "AAPL")
	acc := rig.account(t, "10000", strat.ID, true)
	rig.quote("AAPL", "120")
	rising := make([]*domain.Candle, 10)
	for i := range rising {
		rising[i] = &domain.Candle{Close: 100 + float64(i)*2}
	}
	rig.provider.history["AAPL"] = rising

	require.NoError(t, rig.engine.Tick(ctx))

	// The sell signal is recorded but nothing is queued.
	signals, err := rig.repo.FindSignalsByStrategy(ctx, strat.ID, 10)
	require.NoError(t, err)
	assert.Len(t, signals, 1)

	orders, err := rig.repo.FindRecentByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEngine_InvalidParamsSkipsStrategyNotTick(t *testing.T) {
	rig, cleanup := newEngineRig(t)
	defer cleanup()
	ctx := context.Background()

	bad := rig.strategy(t, KindMACrossover, `{"short_period": 50, "long_period": 10}`, "AAPL")
	rig.account(t, "10000", bad.ID, true)

	good := rig.strategy(t, KindRSIReversion, `{"period": 3, "oversold": 30, "overbought": 70}`, "MSFT")
	rig.account(t, "10000", good.ID, true)

	rig.quote("AAPL", "100")
	rig.quote("MSFT", "200")
	rig.provider.history["MSFT"] = fallingCloses(10, 220)

	require.NoError(t, rig.engine.Tick(ctx), "a broken strategy must not fail the tick")

	signals, err := rig.repo.FindSignalsByStrategy(ctx, good.ID, 10)
	require.NoError(t, err)
	assert.Len(t, signals, 1, "the healthy strategy still runs")
}
