package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paperTrader/config"
	"paperTrader/internal/domain"
	"paperTrader/internal/marketdata"
	"paperTrader/internal/ports"
	"paperTrader/internal/scheduler"
	"paperTrader/internal/valuation"
)

// Job names as recorded in the audit trail and accepted by ForceRun.
const (
	JobProcessOrders     = "process-orders"
	JobUpdatePositions   = "update-positions"
	JobRefreshMarketData = "refresh-market-data"
	JobTradingBot        = "trading-bot"
)

// Ticker is one pass of a background engine.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Service orchestrates the paper-trading core: it owns the scheduler that
// drives the background engines and exposes the command and query surface.
type Service struct {
	cfg    *config.Config
	logger ports.Logger

	accounts    ports.AccountRepository
	instruments ports.InstrumentRepository
	orders      ports.OrderRepository
	positions   ports.PositionRepository
	trades      ports.TradeRepository
	signals     ports.SignalRepository
	jobRuns     ports.JobRunRepository
	watchlist   ports.WatchlistRepository
	quotes      ports.QuoteRepository
	ledger      ports.LedgerRepository

	cache *marketdata.Cache
	sched *scheduler.Scheduler
	now   func() time.Time
}

// ServiceConfig carries the dependencies for NewService.
type ServiceConfig struct {
	Cfg    *config.Config
	Logger ports.Logger

	Accounts    ports.AccountRepository
	Instruments ports.InstrumentRepository
	Orders      ports.OrderRepository
	Positions   ports.PositionRepository
	Trades      ports.TradeRepository
	Signals     ports.SignalRepository
	JobRuns     ports.JobRunRepository
	Watchlist   ports.WatchlistRepository
	Quotes      ports.QuoteRepository
	Ledger      ports.LedgerRepository

	Cache    *marketdata.Cache
	Calendar *scheduler.MarketCalendar

	// The four background engines, already wired to their dependencies.
	Execution Ticker
	Valuation Ticker
	Refresher Ticker
	Strategy  Ticker

	Now func() time.Time
}

// NewService validates the dependencies and builds the scheduler with the
// four standard jobs on their configured cadences.
func NewService(sc ServiceConfig) (*Service, error) {
	if sc.Cfg == nil || sc.Logger == nil {
		return nil, fmt.Errorf("NewService: missing config or logger")
	}
	if sc.Accounts == nil || sc.Instruments == nil || sc.Orders == nil || sc.Positions == nil ||
		sc.Trades == nil || sc.Signals == nil || sc.JobRuns == nil || sc.Watchlist == nil ||
		sc.Quotes == nil || sc.Ledger == nil {
		return nil, fmt.Errorf("NewService: missing repository dependency")
	}
	if sc.Cache == nil || sc.Calendar == nil {
		return nil, fmt.Errorf("NewService: missing cache or market calendar")
	}
	if sc.Execution == nil || sc.Valuation == nil || sc.Refresher == nil || sc.Strategy == nil {
		return nil, fmt.Errorf("NewService: missing background engine")
	}
	if sc.Now == nil {
		sc.Now = time.Now
	}

	s := &Service{
		cfg:         sc.Cfg,
		logger:      sc.Logger,
		accounts:    sc.Accounts,
		instruments: sc.Instruments,
		orders:      sc.Orders,
		positions:   sc.Positions,
		trades:      sc.Trades,
		signals:     sc.Signals,
		jobRuns:     sc.JobRuns,
		watchlist:   sc.Watchlist,
		quotes:      sc.Quotes,
		ledger:      sc.Ledger,
		cache:       sc.Cache,
		now:         sc.Now,
	}

	sched, err := scheduler.New(scheduler.Config{
		Jobs: []scheduler.Job{
			{Name: JobProcessOrders, Interval: sc.Cfg.OrderTickInterval, Run: sc.Execution.Tick},
			{Name: JobUpdatePositions, Interval: sc.Cfg.PositionTickInterval, Run: sc.Valuation.Tick},
			{Name: JobRefreshMarketData, Interval: sc.Cfg.QuoteTickInterval, MarketHoursOnly: true, Run: sc.Refresher.Tick},
			{Name: JobTradingBot, Interval: sc.Cfg.SignalTickInterval, MarketHoursOnly: true, Run: sc.Strategy.Tick},
		},
		Runs:         sc.JobRuns,
		Calendar:     sc.Calendar,
		Logger:       sc.Logger,
		SoftDeadline: sc.Cfg.JobSoftDeadline,
		BackoffMax:   sc.Cfg.BackoffMax,
		Now:          sc.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}
	s.sched = sched
	return s, nil
}

// Start warms the quote cache from the last persisted quotes and runs the
// scheduler until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	persisted, err := s.quotes.FindAllQuotes(ctx)
	if err != nil {
		// A cold cache degrades the first ticks but is not fatal: the
		// refresher repopulates it.
		s.logger.Error(ctx, err, "Failed to warm quote cache from storage")
	} else {
		s.cache.Warm(persisted)
		s.logger.Info(ctx, "Quote cache warmed", map[string]interface{}{"quotes": len(persisted)})
	}

	s.logger.Info(ctx, "Paper trading service starting")
	return s.sched.Start(ctx)
}

// SubmitOrderRequest carries the parameters for a manual order submission.
type SubmitOrderRequest struct {
	AccountID  string
	Symbol     string
	Side       domain.OrderSide
	Kind       domain.OrderKind
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal // required when Kind is LIMIT
	StopPrice  decimal.Decimal // required when Kind is STOP
}

// SubmitOrder validates the request and queues a PENDING order. Cash and
// held-quantity checks happen at fill time, not here.
func (s *Service) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*domain.Order, error) {
	const op = "SubmitOrder"

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%s: symbol is required: %w", op, ports.ErrInvalidRequest)
	}
	if req.Side != domain.Buy && req.Side != domain.Sell {
		return nil, fmt.Errorf("%s: unknown side %q: %w", op, req.Side, ports.ErrInvalidRequest)
	}
	switch req.Kind {
	case domain.KindMarket:
	case domain.KindLimit:
		if !req.LimitPrice.IsPositive() {
			return nil, fmt.Errorf("%s: limit order requires a positive limit price: %w", op, ports.ErrInvalidRequest)
		}
	case domain.KindStop:
		if !req.StopPrice.IsPositive() {
			return nil, fmt.Errorf("%s: stop order requires a positive stop price: %w", op, ports.ErrInvalidRequest)
		}
	default:
		return nil, fmt.Errorf("%s: unknown order type %q: %w", op, req.Kind, ports.ErrInvalidRequest)
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%s: quantity must be positive: %w", op, ports.ErrInvalidRequest)
	}

	account, err := s.accounts.FindByID(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%s: looking up account: %w", op, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%s: account %q: %w", op, req.AccountID, ports.ErrNotFound)
	}

	if _, err := s.instruments.Ensure(ctx, symbol, s.cfg.DefaultExchange, s.cfg.DefaultCurrency); err != nil {
		return nil, fmt.Errorf("%s: ensuring instrument: %w", op, err)
	}

	order := &domain.Order{
		AccountID:  account.ID,
		Symbol:     symbol,
		Side:       req.Side,
		Kind:       req.Kind,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		Status:     domain.StatusPending,
		CreatedAt:  s.now().UTC(),
	}
	id, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%s: creating order: %w", op, err)
	}
	order.ID = id

	s.logger.Info(ctx, "Order submitted", map[string]interface{}{
		"orderID":  id,
		"account":  account.ID,
		"symbol":   symbol,
		"side":     string(req.Side),
		"type":     string(req.Kind),
		"quantity": req.Quantity.String(),
	})
	return order, nil
}

// CancelOrder cancels a queued order. Fills already applied stay applied.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) error {
	if err := s.ledger.CancelOrder(ctx, orderID); err != nil {
		return fmt.Errorf("CancelOrder: %w", err)
	}
	s.logger.Info(ctx, "Order cancelled", map[string]interface{}{"orderID": orderID})
	return nil
}

// PositionValue is one position marked to the freshest known price.
type PositionValue struct {
	Position      *domain.Position
	Price         decimal.Decimal // cached quote, or last valuation price
	MarketValue   decimal.Decimal
	UnrealizedPNL decimal.Decimal
}

// AccountPerformance aggregates an account's current standing and its
// realized trade statistics.
type AccountPerformance struct {
	Account        *domain.Account
	Positions      []PositionValue
	PositionsValue decimal.Decimal
	Equity         decimal.Decimal
	UnrealizedPNL  decimal.Decimal
	Stats          *valuation.TradeStats
}

// Performance values an account's positions against the quote cache and
// computes realized statistics over its full trade history.
func (s *Service) Performance(ctx context.Context, accountID string) (*AccountPerformance, error) {
	const op = "Performance"

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: looking up account: %w", op, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%s: account %q: %w", op, accountID, ports.ErrNotFound)
	}

	positions, err := s.positions.FindByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: loading positions: %w", op, err)
	}

	perf := &AccountPerformance{
		Account:        account,
		PositionsValue: decimal.Zero,
		UnrealizedPNL:  decimal.Zero,
	}
	for _, pos := range positions {
		price := pos.CurrentPrice
		if quote, ok := s.cache.Get(pos.Symbol); ok {
			price = quote.Price
		}
		value := pos.MarketValue(price)
		unrealized := value.Sub(pos.CostBasis())
		perf.Positions = append(perf.Positions, PositionValue{
			Position:      pos,
			Price:         price,
			MarketValue:   value,
			UnrealizedPNL: unrealized,
		})
		perf.PositionsValue = perf.PositionsValue.Add(value)
		perf.UnrealizedPNL = perf.UnrealizedPNL.Add(unrealized)
	}
	perf.Equity = account.CashBalance.Add(perf.PositionsValue)

	trades, err := s.trades.FindTradesByAccount(ctx, accountID, allTrades)
	if err != nil {
		return nil, fmt.Errorf("%s: loading trades: %w", op, err)
	}
	perf.Stats = valuation.AnalyzeTrades(trades)
	return perf, nil
}

// allTrades is the fetch limit used when statistics need the full history.
const allTrades = 10000

// RecentOrders returns an account's most recent orders, newest first.
func (s *Service) RecentOrders(ctx context.Context, accountID string, limit int) ([]*domain.Order, error) {
	orders, err := s.orders.FindRecentByAccount(ctx, accountID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("RecentOrders: %w", err)
	}
	return orders, nil
}

// RecentTrades returns an account's most recent trades, newest first.
func (s *Service) RecentTrades(ctx context.Context, accountID string, limit int) ([]*domain.Trade, error) {
	trades, err := s.trades.FindTradesByAccount(ctx, accountID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("RecentTrades: %w", err)
	}
	return trades, nil
}

// RecentSignals returns the most recent signals across all strategies.
func (s *Service) RecentSignals(ctx context.Context, limit int) ([]*domain.TradingSignal, error) {
	signals, err := s.signals.FindRecentSignals(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("RecentSignals: %w", err)
	}
	return signals, nil
}

// Watch adds a symbol to an account's watchlist so the refresher keeps its
// quote current.
func (s *Service) Watch(ctx context.Context, accountID, symbol string) error {
	const op = "Watch"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("%s: symbol is required: %w", op, ports.ErrInvalidRequest)
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%s: looking up account: %w", op, err)
	}
	if account == nil {
		return fmt.Errorf("%s: account %q: %w", op, accountID, ports.ErrNotFound)
	}
	if _, err := s.instruments.Ensure(ctx, symbol, s.cfg.DefaultExchange, s.cfg.DefaultCurrency); err != nil {
		return fmt.Errorf("%s: ensuring instrument: %w", op, err)
	}
	if err := s.watchlist.AddToWatchlist(ctx, accountID, symbol, s.now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ForceRun triggers a named job immediately, bypassing its cadence and the
// market-hours gate.
func (s *Service) ForceRun(ctx context.Context, jobName string) error {
	return s.sched.ForceRun(ctx, jobName)
}

// JobStatus reports every job's scheduling state.
func (s *Service) JobStatus() []scheduler.JobStatus {
	return s.sched.Status()
}

// JobHistory returns the most recent audit records for a named job.
func (s *Service) JobHistory(ctx context.Context, jobName string, limit int) ([]*domain.JobRun, error) {
	runs, err := s.jobRuns.FindJobRuns(ctx, jobName, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("JobHistory: %w", err)
	}
	return runs, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
