package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"paperTrader/internal/ports"
)

// Refresher is the price feed refresh pass. Each tick it collects the
// de-duplicated set of symbols referenced by open positions, pending orders
// and watchlists, fetches a quote for each through the throttled provider,
// and publishes successes to the cache and the quote store. A single bad
// symbol never fails the pass; rate-limit exhaustion defers the remaining
// symbols to the next tick.
type Refresher struct {
	provider  ports.QuoteProvider
	cache     ports.QuoteCache
	quotes    ports.QuoteRepository
	positions ports.PositionRepository
	orders    ports.OrderRepository
	watchlist ports.WatchlistRepository
	logger    ports.Logger
}

// RefresherConfig wires the refresher's collaborators.
type RefresherConfig struct {
	Provider  ports.QuoteProvider
	Cache     ports.QuoteCache
	Quotes    ports.QuoteRepository
	Positions ports.PositionRepository
	Orders    ports.OrderRepository
	Watchlist ports.WatchlistRepository
	Logger    ports.Logger
}

// NewRefresher creates the refresh pass.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Provider == nil || cfg.Cache == nil || cfg.Quotes == nil ||
		cfg.Positions == nil || cfg.Orders == nil || cfg.Watchlist == nil || cfg.Logger == nil {
		return nil, errors.New("refresher requires provider, cache, quote/position/order/watchlist stores and a logger")
	}
	return &Refresher{
		provider:  cfg.Provider,
		cache:     cfg.Cache,
		quotes:    cfg.Quotes,
		positions: cfg.Positions,
		orders:    cfg.Orders,
		watchlist: cfg.Watchlist,
		logger:    cfg.Logger,
	}, nil
}

// Tick runs one refresh pass. It returns an error only when the symbol set
// itself cannot be assembled; per-symbol fetch failures are recorded and
// skipped.
func (r *Refresher) Tick(ctx context.Context) error {
	op := "RefresherTick"

	symbols, err := r.activeSymbols(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(symbols) == 0 {
		r.logger.Debug(ctx, "No symbols to refresh")
		return nil
	}

	var refreshed, failed, deferred int
	for i, symbol := range symbols {
		quote, err := r.provider.FetchQuote(ctx, symbol)
		if err != nil {
			if errors.Is(err, ports.ErrRateLimited) {
				deferred = len(symbols) - i
				r.logger.Warn(ctx, "Rate limit reached, deferring remaining symbols to next tick",
					map[string]interface{}{"deferred": deferred})
				break
			}
			failed++
			r.logger.Warn(ctx, "Quote refresh failed for symbol, keeping prior quote",
				map[string]interface{}{"symbol": symbol, "error": err.Error()})
			continue
		}

		r.cache.Put(*quote)
		if err := r.quotes.UpsertQuote(ctx, quote); err != nil {
			// The cache already has the quote; persistence catches up next tick.
			r.logger.Warn(ctx, "Quote persistence failed",
				map[string]interface{}{"symbol": symbol, "error": err.Error()})
		}
		refreshed++
	}

	r.logger.Info(ctx, "Price feed refresh complete", map[string]interface{}{
		"symbols": len(symbols), "refreshed": refreshed, "failed": failed, "deferred": deferred})
	return nil
}

// activeSymbols assembles the de-duplicated, sorted symbol set from open
// positions, pending orders and watchlists.
func (r *Refresher) activeSymbols(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)

	positions, err := r.positions.FindAllPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	for _, p := range positions {
		seen[p.Symbol] = true
	}

	orders, err := r.orders.FindOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open orders: %w", err)
	}
	for _, o := range orders {
		seen[o.Symbol] = true
	}

	watched, err := r.watchlist.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist symbols: %w", err)
	}
	for _, s := range watched {
		seen[s] = true
	}

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}
