package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the storage ports over SQLite: accounts, instruments,
// orders, positions, trades, signals, snapshots, quotes, watchlists, job runs
// and the atomic fill transaction (ledger.go).
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/paper_trader.db" // Default path
	}

	// A pure in-memory database needs no directory.
	if !strings.HasPrefix(dbPath, ":memory:") && !strings.HasPrefix(dbPath, "file::memory:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
			cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
			return nil, err
		}
	}

	// Open database connection, WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		cash_balance TEXT NOT NULL,
		strategy_id INTEGER NOT NULL DEFAULT 0,
		auto_execute INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS instruments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL UNIQUE,
		exchange TEXT NOT NULL,
		currency TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		kind TEXT NOT NULL,
		quantity TEXT NOT NULL,
		limit_price TEXT NOT NULL DEFAULT '0',
		stop_price TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		filled_quantity TEXT NOT NULL DEFAULT '0',
		filled_price TEXT NOT NULL DEFAULT '0',
		filled_at TIMESTAMP DEFAULT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity TEXT NOT NULL,
		average_entry_price TEXT NOT NULL,
		current_price TEXT NOT NULL DEFAULT '0',
		unrealized_pnl TEXT NOT NULL DEFAULT '0',
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (account_id, symbol)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		realized_pnl TEXT NOT NULL DEFAULT '0',
		executed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trading_signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		signal_type TEXT NOT NULL,
		strength REAL NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		price TEXT NOT NULL DEFAULT '0',
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS account_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		cash TEXT NOT NULL,
		positions_value TEXT NOT NULL,
		equity TEXT NOT NULL,
		unrealized_pnl TEXT NOT NULL,
		taken_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS job_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_name TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP DEFAULT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS watchlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		added_at TIMESTAMP NOT NULL,
		UNIQUE (account_id, symbol)
	);

	CREATE TABLE IF NOT EXISTS quotes (
		symbol TEXT PRIMARY KEY,
		price TEXT NOT NULL,
		as_of TIMESTAMP NOT NULL,
		source TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS strategies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		params_json TEXT NOT NULL DEFAULT '{}',
		universe TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	);

	-- Indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_orders_status_id ON orders (status, id);
	CREATE INDEX IF NOT EXISTS idx_orders_account_created ON orders (account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_account_executed ON trades (account_id, executed_at);
	CREATE INDEX IF NOT EXISTS idx_signals_strategy_created ON trading_signals (strategy_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_job_runs_name_started ON job_runs (job_name, started_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_account_taken ON account_snapshots (account_id, taken_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- AccountRepository Implementation ---

// Create saves a new account.
func (r *Repository) Create(ctx context.Context, acc *domain.Account) error {
	const query = `
	INSERT INTO accounts (id, cash_balance, strategy_id, auto_execute, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		acc.ID, acc.CashBalance.String(), acc.StrategyID, boolToInt(acc.AutoExecute), acc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert account %s: %w", acc.ID, err)
	}
	r.logger.Debug(ctx, "Account created", map[string]interface{}{"accountID": acc.ID})
	return nil
}

// FindByID retrieves an account by its ID. Returns nil, nil when not found.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `
	SELECT id, cash_balance, strategy_id, auto_execute, created_at
	FROM accounts WHERE id = ?`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query account %s: %w", id, err)
	}
	return acc, nil
}

// FindAll retrieves all accounts.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.Account, error) {
	const query = `
	SELECT id, cash_balance, strategy_id, auto_execute, created_at
	FROM accounts ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account during FindAll: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// FindByStrategy retrieves the accounts linked to a strategy.
func (r *Repository) FindByStrategy(ctx context.Context, strategyID int64) ([]*domain.Account, error) {
	const query = `
	SELECT id, cash_balance, strategy_id, auto_execute, created_at
	FROM accounts WHERE strategy_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts for strategy %d: %w", strategyID, err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account during FindByStrategy: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// --- InstrumentRepository Implementation ---

// Ensure returns the instrument for symbol, creating it on first reference.
func (r *Repository) Ensure(ctx context.Context, symbol, exchange, currency string) (*domain.Instrument, error) {
	inst, err := r.FindBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if inst != nil {
		return inst, nil
	}

	const query = `INSERT INTO instruments (symbol, exchange, currency) VALUES (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, symbol, exchange, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to insert instrument %s: %w", symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID for instrument %s: %w", symbol, err)
	}
	r.logger.Debug(ctx, "Instrument created", map[string]interface{}{"instrumentID": id, "symbol": symbol})
	return &domain.Instrument{ID: id, Symbol: symbol, Exchange: exchange, Currency: currency}, nil
}

// FindBySymbol retrieves an instrument. Returns nil, nil when not found.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error) {
	const query = `SELECT id, symbol, exchange, currency FROM instruments WHERE symbol = ?`

	inst := &domain.Instrument{}
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(&inst.ID, &inst.Symbol, &inst.Exchange, &inst.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query instrument %s: %w", symbol, err)
	}
	return inst, nil
}

// --- OrderRepository Implementation ---

// CreateOrder saves a new PENDING order and returns its assigned ID.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) (int64, error) {
	const query = `
	INSERT INTO orders (account_id, symbol, side, kind, quantity, limit_price, stop_price,
	                    status, reason, filled_quantity, filled_price, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		order.AccountID, order.Symbol, order.Side, order.Kind,
		order.Quantity.String(), order.LimitPrice.String(), order.StopPrice.String(),
		order.Status, order.Reason, order.FilledQuantity.String(), order.FilledPrice.String(),
		order.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order for %s/%s: %w", order.AccountID, order.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for order %s: %w", order.Symbol, err)
	}
	order.ID = id
	r.logger.Debug(ctx, "Order created", map[string]interface{}{"orderID": id, "symbol": order.Symbol, "side": order.Side})
	return id, nil
}

// FindOrderByID retrieves an order by ID. Returns nil, nil when not found.
func (r *Repository) FindOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := selectOrders + ` WHERE id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order %d: %w", id, err)
	}
	return order, nil
}

// FindOpen retrieves all non-terminal orders ordered by ascending ID.
func (r *Repository) FindOpen(ctx context.Context) ([]*domain.Order, error) {
	query := selectOrders + ` WHERE status IN (?, ?) ORDER BY id ASC`
	return r.queryOrders(ctx, query, domain.StatusPending, domain.StatusPartiallyFilled)
}

// FindOpenByAccountSymbol retrieves non-terminal orders for one account and symbol.
func (r *Repository) FindOpenByAccountSymbol(ctx context.Context, accountID, symbol string) ([]*domain.Order, error) {
	query := selectOrders + ` WHERE account_id = ? AND symbol = ? AND status IN (?, ?) ORDER BY id ASC`
	return r.queryOrders(ctx, query, accountID, symbol, domain.StatusPending, domain.StatusPartiallyFilled)
}

// FindRecentByAccount retrieves the most recent orders for an account.
func (r *Repository) FindRecentByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Order, error) {
	query := selectOrders + ` WHERE account_id = ? ORDER BY id DESC LIMIT ?`
	return r.queryOrders(ctx, query, accountID, limit)
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

// --- PositionRepository Implementation ---

// FindByAccount retrieves all positions held by an account.
func (r *Repository) FindByAccount(ctx context.Context, accountID string) ([]*domain.Position, error) {
	query := selectPositions + ` WHERE account_id = ? ORDER BY symbol`
	return r.queryPositions(ctx, query, accountID)
}

// FindByAccountSymbol retrieves one position. Returns nil, nil when not held.
func (r *Repository) FindByAccountSymbol(ctx context.Context, accountID, symbol string) (*domain.Position, error) {
	query := selectPositions + ` WHERE account_id = ? AND symbol = ?`

	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, accountID, symbol))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position %s/%s: %w", accountID, symbol, err)
	}
	return pos, nil
}

// FindAllPositions retrieves every open position.
func (r *Repository) FindAllPositions(ctx context.Context) ([]*domain.Position, error) {
	query := selectPositions + ` ORDER BY account_id, symbol`
	return r.queryPositions(ctx, query)
}

// UpdateValuation writes the last valuation price and unrealized P&L.
func (r *Repository) UpdateValuation(ctx context.Context, positionID int64, price, unrealizedPNL decimal.Decimal, at time.Time) error {
	const query = `UPDATE positions SET current_price = ?, unrealized_pnl = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, price.String(), unrealizedPNL.String(), at, positionID)
	if err != nil {
		return fmt.Errorf("failed to update valuation for position %d: %w", positionID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position %d valuation: %w", positionID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position %d not found for valuation: %w", positionID, ports.ErrNotFound)
	}
	return nil
}

func (r *Repository) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// --- TradeRepository Implementation ---

// FindTradesByAccount retrieves the most recent trades for an account.
func (r *Repository) FindTradesByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Trade, error) {
	query := selectTrades + ` WHERE account_id = ? ORDER BY id DESC LIMIT ?`
	return r.queryTrades(ctx, query, accountID, limit)
}

// FindByOrder retrieves all trades produced by one order, oldest first.
func (r *Repository) FindByOrder(ctx context.Context, orderID int64) ([]*domain.Trade, error) {
	query := selectTrades + ` WHERE order_id = ? ORDER BY id ASC`
	return r.queryTrades(ctx, query, orderID)
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- Helper Scan Functions ---

const selectOrders = `
	SELECT id, account_id, symbol, side, kind, quantity, limit_price, stop_price,
	       status, reason, filled_quantity, filled_price, filled_at, created_at
	FROM orders`

const selectPositions = `
	SELECT id, account_id, symbol, quantity, average_entry_price, current_price,
	       unrealized_pnl, updated_at
	FROM positions`

const selectTrades = `
	SELECT id, order_id, account_id, symbol, side, quantity, price, realized_pnl, executed_at
	FROM trades`

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(s scanner) (*domain.Account, error) {
	a := &domain.Account{}
	var cash string
	var autoExecute int
	if err := s.Scan(&a.ID, &cash, &a.StrategyID, &autoExecute, &a.CreatedAt); err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	var err error
	if a.CashBalance, err = decimal.NewFromString(cash); err != nil {
		return nil, fmt.Errorf("invalid cash balance '%s' for account %s: %w", cash, a.ID, err)
	}
	a.AutoExecute = autoExecute != 0
	return a, nil
}

func scanOrder(s scanner) (*domain.Order, error) {
	o := &domain.Order{}
	var quantity, limitPrice, stopPrice, filledQty, filledPrice string
	var side, kind, status string
	var filledAt sql.NullTime
	err := s.Scan(
		&o.ID, &o.AccountID, &o.Symbol, &side, &kind, &quantity, &limitPrice, &stopPrice,
		&status, &o.Reason, &filledQty, &filledPrice, &filledAt, &o.CreatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	o.Side = domain.OrderSide(side)
	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(status)
	if filledAt.Valid {
		o.FilledAt = filledAt.Time
	}
	if o.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("invalid quantity '%s' for order %d: %w", quantity, o.ID, err)
	}
	if o.LimitPrice, err = decimal.NewFromString(limitPrice); err != nil {
		return nil, fmt.Errorf("invalid limit price '%s' for order %d: %w", limitPrice, o.ID, err)
	}
	if o.StopPrice, err = decimal.NewFromString(stopPrice); err != nil {
		return nil, fmt.Errorf("invalid stop price '%s' for order %d: %w", stopPrice, o.ID, err)
	}
	if o.FilledQuantity, err = decimal.NewFromString(filledQty); err != nil {
		return nil, fmt.Errorf("invalid filled quantity '%s' for order %d: %w", filledQty, o.ID, err)
	}
	if o.FilledPrice, err = decimal.NewFromString(filledPrice); err != nil {
		return nil, fmt.Errorf("invalid filled price '%s' for order %d: %w", filledPrice, o.ID, err)
	}
	return o, nil
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var quantity, avgPrice, curPrice, unrealized string
	err := s.Scan(&p.ID, &p.AccountID, &p.Symbol, &quantity, &avgPrice, &curPrice, &unrealized, &p.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if p.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("invalid quantity '%s' for position %d: %w", quantity, p.ID, err)
	}
	if p.AverageEntryPrice, err = decimal.NewFromString(avgPrice); err != nil {
		return nil, fmt.Errorf("invalid average entry price '%s' for position %d: %w", avgPrice, p.ID, err)
	}
	if p.CurrentPrice, err = decimal.NewFromString(curPrice); err != nil {
		return nil, fmt.Errorf("invalid current price '%s' for position %d: %w", curPrice, p.ID, err)
	}
	if p.UnrealizedPNL, err = decimal.NewFromString(unrealized); err != nil {
		return nil, fmt.Errorf("invalid unrealized pnl '%s' for position %d: %w", unrealized, p.ID, err)
	}
	return p, nil
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var quantity, price, realized string
	var side string
	err := s.Scan(&t.ID, &t.OrderID, &t.AccountID, &t.Symbol, &side, &quantity, &price, &realized, &t.ExecutedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Side = domain.OrderSide(side)
	if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("invalid quantity '%s' for trade %d: %w", quantity, t.ID, err)
	}
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid price '%s' for trade %d: %w", price, t.ID, err)
	}
	if t.RealizedPNL, err = decimal.NewFromString(realized); err != nil {
		return nil, fmt.Errorf("invalid realized pnl '%s' for trade %d: %w", realized, t.ID, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
