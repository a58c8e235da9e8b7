package execution

import (
	"github.com/shopspring/decimal"

	"paperTrader/internal/domain"
)

// FillPolicy decides how much of a triggered order fills in one tick.
// Returning a zero quantity leaves the order open for the next tick.
type FillPolicy interface {
	// FillQuantity returns the quantity to fill now, at most the order's
	// remaining quantity.
	FillQuantity(order *domain.Order, quote domain.Quote) decimal.Decimal
}

// FullFill fills the whole remaining quantity at tick resolution. This is
// the default policy.
type FullFill struct{}

func (FullFill) FillQuantity(order *domain.Order, quote domain.Quote) decimal.Decimal {
	return order.RemainingQuantity()
}

// CappedFill simulates limited per-tick liquidity: at most MaxQuantity fills
// per tick, so large orders fill partially across several ticks.
type CappedFill struct {
	MaxQuantity decimal.Decimal
}

func (p CappedFill) FillQuantity(order *domain.Order, quote domain.Quote) decimal.Decimal {
	remaining := order.RemainingQuantity()
	if remaining.GreaterThan(p.MaxQuantity) {
		return p.MaxQuantity
	}
	return remaining
}
