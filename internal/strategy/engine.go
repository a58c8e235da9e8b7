package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
	"paperTrader/internal/risk"
)

// Engine is the strategy signal pass. Each tick it evaluates every active
// strategy with at least one linked account against cached quotes and recent
// history, records the resulting signals, and for accounts with automatic
// execution enabled synthesizes market orders for signals above the
// confidence threshold. Synthesized orders enter the PENDING queue and fill
// on a later execution tick; the two passes are never fused.
type Engine struct {
	strategies ports.StrategyRepository
	accounts   ports.AccountRepository
	positions  ports.PositionRepository
	orders     ports.OrderRepository
	signals    ports.SignalRepository
	provider   ports.QuoteProvider
	cache      ports.QuoteCache
	sizer      *risk.Sizer
	logger     ports.Logger

	confidenceThreshold float64
	historyBars         int
	historyBarInterval  time.Duration
	now                 func() time.Time
}

// EngineConfig wires the signal engine's collaborators and tuning.
type EngineConfig struct {
	Strategies ports.StrategyRepository
	Accounts   ports.AccountRepository
	Positions  ports.PositionRepository
	Orders     ports.OrderRepository
	Signals    ports.SignalRepository
	Provider   ports.QuoteProvider
	Cache      ports.QuoteCache
	Sizer      *risk.Sizer
	Logger     ports.Logger

	ConfidenceThreshold float64       // automated orders need at least this confidence
	HistoryBars         int           // bars requested per evaluation
	HistoryBarInterval  time.Duration // bar width, e.g. 24h
	Now                 func() time.Time
}

// NewEngine creates the signal pass.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Strategies == nil || cfg.Accounts == nil || cfg.Positions == nil ||
		cfg.Orders == nil || cfg.Signals == nil || cfg.Provider == nil ||
		cfg.Cache == nil || cfg.Sizer == nil || cfg.Logger == nil {
		return nil, errors.New("signal engine requires all repositories, provider, cache, sizer and a logger")
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("confidence threshold %f must be in (0, 1]: %w",
			cfg.ConfidenceThreshold, ports.ErrInvalidParams)
	}
	if cfg.HistoryBars <= 0 || cfg.HistoryBarInterval <= 0 {
		return nil, fmt.Errorf("history bars %d and bar interval %s must be positive: %w",
			cfg.HistoryBars, cfg.HistoryBarInterval, ports.ErrInvalidParams)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		strategies:          cfg.Strategies,
		accounts:            cfg.Accounts,
		positions:           cfg.Positions,
		orders:              cfg.Orders,
		signals:             cfg.Signals,
		provider:            cfg.Provider,
		cache:               cfg.Cache,
		sizer:               cfg.Sizer,
		logger:              cfg.Logger,
		confidenceThreshold: cfg.ConfidenceThreshold,
		historyBars:         cfg.HistoryBars,
		historyBarInterval:  cfg.HistoryBarInterval,
		now:                 now,
	}, nil
}

// Tick runs one signal pass. Per-strategy and per-symbol failures are
// recorded and skipped; only a failure to list strategies fails the tick.
func (e *Engine) Tick(ctx context.Context) error {
	op := "SignalTick"

	strategies, err := e.strategies.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to load strategies: %w", op, err)
	}

	var produced int
	for _, strat := range strategies {
		n, err := e.evaluateStrategy(ctx, strat)
		if err != nil {
			if errors.Is(err, ports.ErrRateLimited) {
				e.logger.Warn(ctx, "Rate limit reached, deferring remaining strategies to next tick",
					map[string]interface{}{"strategyID": strat.ID})
				break
			}
			e.logger.Error(ctx, err, "Strategy evaluation failed",
				map[string]interface{}{"strategyID": strat.ID, "name": strat.Name})
			continue
		}
		produced += n
	}

	e.logger.Info(ctx, "Signal pass complete", map[string]interface{}{
		"strategies": len(strategies), "signals": produced})
	return nil
}

func (e *Engine) evaluateStrategy(ctx context.Context, strat *domain.Strategy) (int, error) {
	accounts, err := e.accounts.FindByStrategy(ctx, strat.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load linked accounts: %w", err)
	}
	if len(accounts) == 0 {
		// Strategies run only for accounts that follow them.
		return 0, nil
	}

	rule, err := ParseRule(strat.Kind, strat.ParamsJSON)
	if err != nil {
		return 0, err
	}

	bars := e.historyBars
	if min := rule.MinHistory(); bars < min {
		bars = min
	}

	var produced int
	for _, symbol := range strat.Universe {
		quote, found := e.cache.Get(symbol)
		if !found {
			e.logger.Debug(ctx, "No cached quote for strategy symbol, skipping",
				map[string]interface{}{"strategyID": strat.ID, "symbol": symbol})
			continue
		}

		candles, err := e.provider.FetchHistory(ctx, symbol, e.historyBarInterval, bars)
		if err != nil {
			if errors.Is(err, ports.ErrRateLimited) {
				return produced, err
			}
			e.logger.Warn(ctx, "History fetch failed for strategy symbol, skipping",
				map[string]interface{}{"strategyID": strat.ID, "symbol": symbol, "error": err.Error()})
			continue
		}

		verdict, err := rule.Evaluate(ctx, candles, quote.Price.InexactFloat64())
		if err != nil {
			e.logger.Warn(ctx, "Rule evaluation failed for symbol, skipping",
				map[string]interface{}{"strategyID": strat.ID, "symbol": symbol, "error": err.Error()})
			continue
		}
		if verdict.Type == domain.SignalHold {
			continue
		}

		confidence := Confidence(verdict.Score)
		signal := &domain.TradingSignal{
			StrategyID: strat.ID,
			Symbol:     symbol,
			Type:       verdict.Type,
			Strength:   verdict.Score,
			Confidence: confidence,
			Price:      quote.Price,
			Reason:     verdict.Reason,
			CreatedAt:  e.now(),
		}
		if _, err := e.signals.CreateSignal(ctx, signal); err != nil {
			e.logger.Error(ctx, err, "Failed to record signal",
				map[string]interface{}{"strategyID": strat.ID, "symbol": symbol})
			continue
		}
		produced++

		if confidence < e.confidenceThreshold {
			continue
		}
		for _, account := range accounts {
			if !account.AutoExecute {
				continue
			}
			if err := e.synthesizeOrder(ctx, account, signal); err != nil {
				e.logger.Error(ctx, err, "Failed to synthesize order from signal",
					map[string]interface{}{"accountID": account.ID, "symbol": symbol, "signalID": signal.ID})
			}
		}
	}
	return produced, nil
}

// synthesizeOrder turns an actionable signal into a PENDING market order.
// Buys are skipped when the account already holds the symbol or the position
// cap is reached; sells close the whole position. Either side is skipped
// while an open order for the same symbol exists, so consecutive signal
// ticks never stack duplicate orders.
func (e *Engine) synthesizeOrder(ctx context.Context, account *domain.Account, signal *domain.TradingSignal) error {
	open, err := e.orders.FindOpenByAccountSymbol(ctx, account.ID, signal.Symbol)
	if err != nil {
		return fmt.Errorf("failed to check open orders: %w", err)
	}
	if len(open) > 0 {
		e.logger.Debug(ctx, "Open order already queued for symbol, skipping",
			map[string]interface{}{"accountID": account.ID, "symbol": signal.Symbol})
		return nil
	}

	position, err := e.positions.FindByAccountSymbol(ctx, account.ID, signal.Symbol)
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}

	var quantity decimal.Decimal
	var side domain.OrderSide

	switch signal.Type {
	case domain.SignalBuy:
		if position != nil {
			e.logger.Debug(ctx, "Position already held, skipping buy signal",
				map[string]interface{}{"accountID": account.ID, "symbol": signal.Symbol})
			return nil
		}
		held, err := e.positions.FindByAccount(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("failed to count positions: %w", err)
		}
		if !e.sizer.CanOpen(len(held)) {
			e.logger.Debug(ctx, "Position cap reached, skipping buy signal",
				map[string]interface{}{"accountID": account.ID, "openPositions": len(held)})
			return nil
		}

		equity := account.CashBalance
		for _, p := range held {
			if q, found := e.cache.Get(p.Symbol); found {
				equity = equity.Add(p.MarketValue(q.Price))
			} else {
				equity = equity.Add(p.MarketValue(p.CurrentPrice))
			}
		}
		quantity = e.sizer.Quantity(equity, account.CashBalance, signal.Price)
		if !quantity.IsPositive() {
			e.logger.Debug(ctx, "Sized quantity is zero, skipping buy signal",
				map[string]interface{}{"accountID": account.ID, "symbol": signal.Symbol})
			return nil
		}
		side = domain.Buy

	case domain.SignalSell:
		if position == nil {
			return nil
		}
		// Automated sells close the whole position.
		quantity = position.Quantity
		side = domain.Sell

	default:
		return nil
	}

	order := &domain.Order{
		AccountID: account.ID,
		Symbol:    signal.Symbol,
		Side:      side,
		Kind:      domain.KindMarket,
		Quantity:  quantity,
		Status:    domain.StatusPending,
		CreatedAt: e.now(),
	}
	if _, err := e.orders.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	e.logger.Info(ctx, "Order synthesized from signal", map[string]interface{}{
		"accountID":  account.ID,
		"symbol":     signal.Symbol,
		"side":       side,
		"quantity":   quantity.String(),
		"signalID":   signal.ID,
		"confidence": signal.Confidence,
	})
	return nil
}
