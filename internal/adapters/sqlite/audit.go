package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paperTrader/internal/domain"
)

// Signal, snapshot, job run, watchlist, quote and strategy storage. These
// are plain reads and appends; the only write with merge semantics is the
// quote upsert, which keeps the newest as-of per symbol.

// --- SignalRepository Implementation ---

// CreateSignal saves a new signal and returns its assigned ID.
func (r *Repository) CreateSignal(ctx context.Context, sig *domain.TradingSignal) (int64, error) {
	const query = `
	INSERT INTO trading_signals (strategy_id, symbol, signal_type, strength, confidence, price, reason, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		sig.StrategyID, sig.Symbol, sig.Type, sig.Strength, sig.Confidence,
		sig.Price.String(), sig.Reason, sig.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert signal for %s: %w", sig.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for signal %s: %w", sig.Symbol, err)
	}
	sig.ID = id
	return id, nil
}

// FindRecentSignals retrieves the most recent signals across all strategies.
func (r *Repository) FindRecentSignals(ctx context.Context, limit int) ([]*domain.TradingSignal, error) {
	query := selectSignals + ` ORDER BY id DESC LIMIT ?`
	return r.querySignals(ctx, query, limit)
}

// FindSignalsByStrategy retrieves the most recent signals for one strategy.
func (r *Repository) FindSignalsByStrategy(ctx context.Context, strategyID int64, limit int) ([]*domain.TradingSignal, error) {
	query := selectSignals + ` WHERE strategy_id = ? ORDER BY id DESC LIMIT ?`
	return r.querySignals(ctx, query, strategyID, limit)
}

const selectSignals = `
	SELECT id, strategy_id, symbol, signal_type, strength, confidence, price, reason, created_at
	FROM trading_signals`

func (r *Repository) querySignals(ctx context.Context, query string, args ...interface{}) ([]*domain.TradingSignal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	signals := make([]*domain.TradingSignal, 0)
	for rows.Next() {
		sig := &domain.TradingSignal{}
		var sigType, price string
		err := rows.Scan(&sig.ID, &sig.StrategyID, &sig.Symbol, &sigType, &sig.Strength,
			&sig.Confidence, &price, &sig.Reason, &sig.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		sig.Type = domain.SignalType(sigType)
		if sig.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid price '%s' for signal %d: %w", price, sig.ID, err)
		}
		signals = append(signals, sig)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}

// --- SnapshotRepository Implementation ---

// CreateSnapshot saves a new snapshot and returns its assigned ID.
func (r *Repository) CreateSnapshot(ctx context.Context, snap *domain.AccountSnapshot) (int64, error) {
	const query = `
	INSERT INTO account_snapshots (account_id, cash, positions_value, equity, unrealized_pnl, taken_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		snap.AccountID, snap.Cash.String(), snap.PositionsValue.String(),
		snap.Equity.String(), snap.UnrealizedPNL.String(), snap.TakenAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot for account %s: %w", snap.AccountID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for snapshot of %s: %w", snap.AccountID, err)
	}
	snap.ID = id
	return id, nil
}

// FindLatestSnapshot retrieves the newest snapshot for an account.
// Returns nil, nil when none exists.
func (r *Repository) FindLatestSnapshot(ctx context.Context, accountID string) (*domain.AccountSnapshot, error) {
	const query = `
	SELECT id, account_id, cash, positions_value, equity, unrealized_pnl, taken_at
	FROM account_snapshots WHERE account_id = ? ORDER BY id DESC LIMIT 1`

	snap := &domain.AccountSnapshot{}
	var cash, positionsValue, equity, unrealized string
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&snap.ID, &snap.AccountID, &cash, &positionsValue, &equity, &unrealized, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest snapshot for account %s: %w", accountID, err)
	}
	if snap.Cash, err = decimal.NewFromString(cash); err != nil {
		return nil, fmt.Errorf("invalid cash '%s' for snapshot %d: %w", cash, snap.ID, err)
	}
	if snap.PositionsValue, err = decimal.NewFromString(positionsValue); err != nil {
		return nil, fmt.Errorf("invalid positions value '%s' for snapshot %d: %w", positionsValue, snap.ID, err)
	}
	if snap.Equity, err = decimal.NewFromString(equity); err != nil {
		return nil, fmt.Errorf("invalid equity '%s' for snapshot %d: %w", equity, snap.ID, err)
	}
	if snap.UnrealizedPNL, err = decimal.NewFromString(unrealized); err != nil {
		return nil, fmt.Errorf("invalid unrealized pnl '%s' for snapshot %d: %w", unrealized, snap.ID, err)
	}
	return snap, nil
}

// --- JobRunRepository Implementation ---

// RecordJobRun saves a job run record and returns its assigned ID.
func (r *Repository) RecordJobRun(ctx context.Context, run *domain.JobRun) (int64, error) {
	const query = `
	INSERT INTO job_runs (job_name, started_at, finished_at, outcome, error)
	VALUES (?, ?, ?, ?, ?)`

	var finishedAt interface{}
	if !run.FinishedAt.IsZero() {
		finishedAt = run.FinishedAt
	}
	result, err := r.db.ExecContext(ctx, query,
		run.JobName, run.StartedAt, finishedAt, run.Outcome, run.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job run for %s: %w", run.JobName, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for job run of %s: %w", run.JobName, err)
	}
	run.ID = id
	return id, nil
}

// FindJobRuns retrieves the most recent runs for a named job.
func (r *Repository) FindJobRuns(ctx context.Context, jobName string, limit int) ([]*domain.JobRun, error) {
	const query = `
	SELECT id, job_name, started_at, finished_at, outcome, error
	FROM job_runs WHERE job_name = ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job runs for %s: %w", jobName, err)
	}
	defer rows.Close()

	runs := make([]*domain.JobRun, 0)
	for rows.Next() {
		run := &domain.JobRun{}
		var outcome string
		var finishedAt sql.NullTime
		err := rows.Scan(&run.ID, &run.JobName, &run.StartedAt, &finishedAt, &outcome, &run.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job run row: %w", err)
		}
		run.Outcome = domain.JobOutcome(outcome)
		if finishedAt.Valid {
			run.FinishedAt = finishedAt.Time
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job run rows: %w", err)
	}
	return runs, nil
}

// --- WatchlistRepository Implementation ---

// Symbols returns the de-duplicated set of watched symbols.
func (r *Repository) Symbols(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT symbol FROM watchlists ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist symbols: %w", err)
	}
	defer rows.Close()

	symbols := make([]string, 0)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist symbols: %w", err)
	}
	return symbols, nil
}

// FindWatchlist retrieves an account's watchlist entries.
func (r *Repository) FindWatchlist(ctx context.Context, accountID string) ([]*domain.WatchlistEntry, error) {
	const query = `
	SELECT id, account_id, symbol, added_at FROM watchlists
	WHERE account_id = ? ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist for account %s: %w", accountID, err)
	}
	defer rows.Close()

	entries := make([]*domain.WatchlistEntry, 0)
	for rows.Next() {
		entry := &domain.WatchlistEntry{}
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Symbol, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist entries: %w", err)
	}
	return entries, nil
}

// AddToWatchlist inserts a watchlist entry, ignoring duplicates.
func (r *Repository) AddToWatchlist(ctx context.Context, accountID, symbol string, at time.Time) error {
	const query = `
	INSERT INTO watchlists (account_id, symbol, added_at) VALUES (?, ?, ?)
	ON CONFLICT (account_id, symbol) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, accountID, symbol, at); err != nil {
		return fmt.Errorf("failed to add %s to watchlist of %s: %w", symbol, accountID, err)
	}
	return nil
}

// --- QuoteRepository Implementation ---

// UpsertQuote stores the quote unless a newer as-of is already persisted.
// The as-of guard lives in the conflict clause so concurrent writers cannot
// regress the stored timestamp.
func (r *Repository) UpsertQuote(ctx context.Context, quote *domain.Quote) error {
	const query = `
	INSERT INTO quotes (symbol, price, as_of, source) VALUES (?, ?, ?, ?)
	ON CONFLICT (symbol) DO UPDATE SET
		price = excluded.price, as_of = excluded.as_of, source = excluded.source
	WHERE excluded.as_of >= quotes.as_of`

	_, err := r.db.ExecContext(ctx, query,
		quote.Symbol, quote.Price.String(), quote.AsOf, quote.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert quote for %s: %w", quote.Symbol, err)
	}
	return nil
}

// FindAllQuotes retrieves every persisted quote, used to warm the cache.
func (r *Repository) FindAllQuotes(ctx context.Context) ([]*domain.Quote, error) {
	const query = `SELECT symbol, price, as_of, source FROM quotes ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]*domain.Quote, 0)
	for rows.Next() {
		quote := &domain.Quote{}
		var price string
		if err := rows.Scan(&quote.Symbol, &price, &quote.AsOf, &quote.Source); err != nil {
			return nil, fmt.Errorf("failed to scan quote row: %w", err)
		}
		if quote.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid price '%s' for quote %s: %w", price, quote.Symbol, err)
		}
		quotes = append(quotes, quote)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quote rows: %w", err)
	}
	return quotes, nil
}

// --- StrategyRepository Implementation ---

// FindActive retrieves all active strategies.
func (r *Repository) FindActive(ctx context.Context) ([]*domain.Strategy, error) {
	query := selectStrategies + ` WHERE active != 0 ORDER BY id`
	return r.queryStrategies(ctx, query)
}

// FindStrategyByID retrieves a strategy. Returns nil, nil when not found.
func (r *Repository) FindStrategyByID(ctx context.Context, id int64) (*domain.Strategy, error) {
	query := selectStrategies + ` WHERE id = ?`

	strategies, err := r.queryStrategies(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(strategies) == 0 {
		return nil, nil
	}
	return strategies[0], nil
}

// SaveStrategy inserts or updates a strategy definition.
func (r *Repository) SaveStrategy(ctx context.Context, s *domain.Strategy) error {
	if s.ID == 0 {
		const query = `
		INSERT INTO strategies (name, kind, params_json, universe, active)
		VALUES (?, ?, ?, ?, ?)`
		result, err := r.db.ExecContext(ctx, query,
			s.Name, s.Kind, s.ParamsJSON, joinUniverse(s.Universe), boolToInt(s.Active))
		if err != nil {
			return fmt.Errorf("failed to insert strategy %s: %w", s.Name, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID for strategy %s: %w", s.Name, err)
		}
		s.ID = id
		return nil
	}

	const query = `
	UPDATE strategies SET name = ?, kind = ?, params_json = ?, universe = ?, active = ?
	WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		s.Name, s.Kind, s.ParamsJSON, joinUniverse(s.Universe), boolToInt(s.Active), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update strategy %d: %w", s.ID, err)
	}
	return nil
}

const selectStrategies = `SELECT id, name, kind, params_json, universe, active FROM strategies`

func (r *Repository) queryStrategies(ctx context.Context, query string, args ...interface{}) ([]*domain.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	strategies := make([]*domain.Strategy, 0)
	for rows.Next() {
		s := &domain.Strategy{}
		var universe string
		var active int
		if err := rows.Scan(&s.ID, &s.Name, &s.Kind, &s.ParamsJSON, &universe, &active); err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		s.Universe = splitUniverse(universe)
		s.Active = active != 0
		strategies = append(strategies, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy rows: %w", err)
	}
	return strategies, nil
}

func joinUniverse(symbols []string) string {
	deduped := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		deduped = append(deduped, s)
	}
	sort.Strings(deduped)
	return strings.Join(deduped, ",")
}

func splitUniverse(universe string) []string {
	if universe == "" {
		return nil
	}
	parts := strings.Split(universe, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			symbols = append(symbols, p)
		}
	}
	return symbols
}
