package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

// Engine is the order execution pass. Each tick it walks all non-terminal
// orders in ascending ID order, evaluates each against the cached quote for
// its symbol and applies fills through the ledger's atomic operation.
//
// An order stays PENDING when its quote is missing, stale or does not
// trigger it. Insufficient cash or held quantity at fill time rejects the
// order with a reason instead of retrying forever. Re-running a tick against
// a terminal order is a no-op.
type Engine struct {
	orders         ports.OrderRepository
	ledger         ports.LedgerRepository
	cache          ports.QuoteCache
	policy         FillPolicy
	logger         ports.Logger
	quoteStaleness time.Duration
	now            func() time.Time
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Orders         ports.OrderRepository
	Ledger         ports.LedgerRepository
	Cache          ports.QuoteCache
	Policy         FillPolicy // defaults to FullFill
	Logger         ports.Logger
	QuoteStaleness time.Duration // quotes older than this never fill
	Now            func() time.Time
}

// NewEngine creates the execution pass.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Orders == nil || cfg.Ledger == nil || cfg.Cache == nil || cfg.Logger == nil {
		return nil, errors.New("engine requires order store, ledger, quote cache and a logger")
	}
	if cfg.QuoteStaleness <= 0 {
		return nil, errors.New("engine requires a positive quote staleness threshold")
	}
	policy := cfg.Policy
	if policy == nil {
		policy = FullFill{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		orders:         cfg.Orders,
		ledger:         cfg.Ledger,
		cache:          cfg.Cache,
		policy:         policy,
		logger:         cfg.Logger,
		quoteStaleness: cfg.QuoteStaleness,
		now:            now,
	}, nil
}

// Tick runs one execution pass. It returns an error only when the open
// order set cannot be loaded; per-order failures are recorded and skipped.
func (e *Engine) Tick(ctx context.Context) error {
	op := "ExecutionTick"

	open, err := e.orders.FindOpen(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to load open orders: %w", op, err)
	}

	var filled, rejected, pending int
	for _, order := range open {
		switch outcome := e.process(ctx, order); outcome {
		case outcomeFilled:
			filled++
		case outcomeRejected:
			rejected++
		default:
			pending++
		}
	}

	if filled > 0 || rejected > 0 {
		e.logger.Info(ctx, "Execution pass complete", map[string]interface{}{
			"open": len(open), "filled": filled, "rejected": rejected, "pending": pending})
	} else {
		e.logger.Debug(ctx, "Execution pass complete", map[string]interface{}{
			"open": len(open), "pending": pending})
	}
	return nil
}

type tickOutcome int

const (
	outcomePending tickOutcome = iota
	outcomeFilled
	outcomeRejected
)

func (e *Engine) process(ctx context.Context, order *domain.Order) tickOutcome {
	// The scheduler may re-invoke a pass; terminal orders are never touched.
	if order.Status.IsTerminal() {
		return outcomePending
	}

	quote, found := e.cache.Get(order.Symbol)
	if !found {
		e.logger.Debug(ctx, "No quote for order symbol, leaving pending",
			map[string]interface{}{"orderID": order.ID, "symbol": order.Symbol})
		return outcomePending
	}

	now := e.now()
	if age := now.Sub(quote.AsOf); age > e.quoteStaleness {
		e.logger.Debug(ctx, "Quote too stale to fill against, leaving pending",
			map[string]interface{}{"orderID": order.ID, "symbol": order.Symbol, "age": age.String()})
		return outcomePending
	}

	if !order.Triggered(quote.Price) {
		return outcomePending
	}

	quantity := e.policy.FillQuantity(order, quote)
	if !quantity.IsPositive() {
		return outcomePending
	}

	// Stop and limit orders fill at the quote price, never at their
	// configured trigger price.
	result, err := e.ledger.ApplyFill(ctx, &ports.FillRequest{
		Order:      order,
		Quantity:   quantity,
		Price:      quote.Price,
		ExecutedAt: now,
	})
	if err != nil {
		return e.handleFillError(ctx, order, err)
	}

	e.logger.Info(ctx, "Order filled", map[string]interface{}{
		"orderID":  order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"quantity": quantity.String(),
		"price":    quote.Price.String(),
		"status":   string(order.Status),
		"tradeID":  result.Trade.ID,
	})
	return outcomeFilled
}

func (e *Engine) handleFillError(ctx context.Context, order *domain.Order, err error) tickOutcome {
	var reason string
	switch {
	case errors.Is(err, ports.ErrInsufficientFunds):
		reason = domain.RejectInsufficientCash
	case errors.Is(err, ports.ErrInsufficientQuantity):
		reason = domain.RejectInsufficientQuantity
	case errors.Is(err, ports.ErrOrderTerminal):
		// A concurrent writer beat this pass to the order; nothing to do.
		return outcomePending
	default:
		e.logger.Error(ctx, err, "Fill failed, order stays open for next tick",
			map[string]interface{}{"orderID": order.ID, "symbol": order.Symbol})
		return outcomePending
	}

	if rejectErr := e.ledger.RejectOrder(ctx, order.ID, reason); rejectErr != nil {
		e.logger.Error(ctx, rejectErr, "Failed to reject order",
			map[string]interface{}{"orderID": order.ID, "reason": reason})
		return outcomePending
	}
	order.Status = domain.StatusRejected
	order.Reason = reason
	e.logger.Warn(ctx, "Order rejected", map[string]interface{}{
		"orderID": order.ID, "symbol": order.Symbol, "reason": reason})
	return outcomeRejected
}
