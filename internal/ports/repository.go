package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"paperTrader/internal/domain"
)

// FillRequest describes one fill to apply atomically against the ledger.
// Quantity must be positive and not exceed the order's remaining quantity.
type FillRequest struct {
	Order      *domain.Order
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	ExecutedAt time.Time
}

// FillResult reports the outcome of an applied fill.
type FillResult struct {
	Trade          *domain.Trade
	NewCashBalance decimal.Decimal
	PositionClosed bool // quantity reached zero and the position was removed
}

// LedgerRepository exposes the per-account exclusive read-modify-write used
// by the execution engine. No other component writes cash, positions, order
// status or trades.
type LedgerRepository interface {
	// ApplyFill applies one fill as a single atomic unit: debit/credit cash,
	// upsert the position (weighted-average entry on buys, realized P&L on
	// sells, removal at zero quantity), append a Trade and advance the order's
	// status and filled fields. Cash and held quantity are re-checked inside
	// the transaction; on violation nothing is applied and
	// ErrInsufficientFunds or ErrInsufficientQuantity is returned.
	// A terminal order returns ErrOrderTerminal without side effects.
	ApplyFill(ctx context.Context, req *FillRequest) (*FillResult, error)

	// RejectOrder marks a non-terminal order REJECTED with a human-readable
	// reason. A terminal order returns ErrOrderTerminal.
	RejectOrder(ctx context.Context, orderID int64, reason string) error

	// CancelOrder marks a non-terminal order CANCELLED. Fills already applied
	// stay applied. A terminal order returns ErrOrderTerminal.
	CancelOrder(ctx context.Context, orderID int64) error
}

// AccountRepository stores accounts. Cash balance writes happen only through
// LedgerRepository.ApplyFill.
type AccountRepository interface {
	// Create saves a new account.
	Create(ctx context.Context, acc *domain.Account) error
	// FindByID retrieves an account. Returns nil, nil when not found.
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindAll retrieves all accounts.
	FindAll(ctx context.Context) ([]*domain.Account, error)
	// FindByStrategy retrieves the accounts linked to a strategy.
	FindByStrategy(ctx context.Context, strategyID int64) ([]*domain.Account, error)
}

// InstrumentRepository stores immutable instrument reference data.
type InstrumentRepository interface {
	// Ensure returns the instrument for symbol, creating it on first reference.
	Ensure(ctx context.Context, symbol, exchange, currency string) (*domain.Instrument, error)
	// FindBySymbol retrieves an instrument. Returns nil, nil when not found.
	FindBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error)
}

// OrderRepository stores orders. Status transitions happen only through
// LedgerRepository.
type OrderRepository interface {
	// CreateOrder saves a new PENDING order and returns its assigned ID.
	CreateOrder(ctx context.Context, order *domain.Order) (int64, error)
	// FindOrderByID retrieves an order. Returns nil, nil when not found.
	FindOrderByID(ctx context.Context, id int64) (*domain.Order, error)
	// FindOpen retrieves all non-terminal orders ordered by ascending ID so
	// that fills are deterministic for a given cache state.
	FindOpen(ctx context.Context) ([]*domain.Order, error)
	// FindOpenByAccountSymbol retrieves non-terminal orders for one account
	// and symbol, ascending ID.
	FindOpenByAccountSymbol(ctx context.Context, accountID, symbol string) ([]*domain.Order, error)
	// FindRecentByAccount retrieves the most recent orders for an account.
	FindRecentByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Order, error)
}

// PositionRepository stores positions keyed by (account, symbol).
type PositionRepository interface {
	// FindByAccount retrieves all positions held by an account.
	FindByAccount(ctx context.Context, accountID string) ([]*domain.Position, error)
	// FindByAccountSymbol retrieves one position. Returns nil, nil when not held.
	FindByAccountSymbol(ctx context.Context, accountID, symbol string) (*domain.Position, error)
	// FindAllPositions retrieves every open position.
	FindAllPositions(ctx context.Context) ([]*domain.Position, error)
	// UpdateValuation writes the last valuation price and unrealized P&L.
	// Quantity and average entry price are never touched here.
	UpdateValuation(ctx context.Context, positionID int64, price, unrealizedPNL decimal.Decimal, at time.Time) error
}

// TradeRepository reads the append-only trade audit log. Writes happen only
// through LedgerRepository.ApplyFill.
type TradeRepository interface {
	// FindTradesByAccount retrieves the most recent trades for an account.
	FindTradesByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Trade, error)
	// FindByOrder retrieves all trades produced by one order, oldest first.
	FindByOrder(ctx context.Context, orderID int64) ([]*domain.Trade, error)
}

// SignalRepository stores the append-only trading signal log.
type SignalRepository interface {
	// CreateSignal saves a new signal and returns its assigned ID.
	CreateSignal(ctx context.Context, sig *domain.TradingSignal) (int64, error)
	// FindRecentSignals retrieves the most recent signals across all strategies.
	FindRecentSignals(ctx context.Context, limit int) ([]*domain.TradingSignal, error)
	// FindSignalsByStrategy retrieves the most recent signals for one strategy.
	FindSignalsByStrategy(ctx context.Context, strategyID int64, limit int) ([]*domain.TradingSignal, error)
}

// SnapshotRepository stores append-only account equity snapshots.
type SnapshotRepository interface {
	// CreateSnapshot saves a new snapshot and returns its assigned ID.
	CreateSnapshot(ctx context.Context, snap *domain.AccountSnapshot) (int64, error)
	// FindLatestSnapshot retrieves the newest snapshot for an account.
	// Returns nil, nil when none exists.
	FindLatestSnapshot(ctx context.Context, accountID string) (*domain.AccountSnapshot, error)
}

// JobRunRepository stores the append-only scheduler audit trail.
type JobRunRepository interface {
	// RecordJobRun saves a job run record and returns its assigned ID.
	RecordJobRun(ctx context.Context, run *domain.JobRun) (int64, error)
	// FindJobRuns retrieves the most recent runs for a named job.
	FindJobRuns(ctx context.Context, jobName string, limit int) ([]*domain.JobRun, error)
}

// WatchlistRepository stores the symbols each account follows.
type WatchlistRepository interface {
	// Symbols returns the de-duplicated set of watched symbols.
	Symbols(ctx context.Context) ([]string, error)
	// FindWatchlist retrieves an account's watchlist entries.
	FindWatchlist(ctx context.Context, accountID string) ([]*domain.WatchlistEntry, error)
	// AddToWatchlist inserts a watchlist entry, ignoring duplicates.
	AddToWatchlist(ctx context.Context, accountID, symbol string, at time.Time) error
}

// QuoteRepository persists last-known quotes with overwrite-if-newer
// semantics, mirroring the in-memory cache across restarts.
type QuoteRepository interface {
	// UpsertQuote stores the quote unless a newer as-of is already persisted.
	UpsertQuote(ctx context.Context, quote *domain.Quote) error
	// FindAllQuotes retrieves every persisted quote, used to warm the cache.
	FindAllQuotes(ctx context.Context) ([]*domain.Quote, error)
}

// StrategyRepository reads active strategies and their rule parameters.
type StrategyRepository interface {
	// FindActive retrieves all active strategies.
	FindActive(ctx context.Context) ([]*domain.Strategy, error)
	// FindStrategyByID retrieves a strategy. Returns nil, nil when not found.
	FindStrategyByID(ctx context.Context, id int64) (*domain.Strategy, error)
	// SaveStrategy inserts (ID zero) or updates a strategy definition.
	SaveStrategy(ctx context.Context, s *domain.Strategy) error
}
