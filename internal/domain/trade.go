package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an append-only audit record of one fill. Partial fills produce
// multiple Trades for the same order.
type Trade struct {
	ID          int64
	OrderID     int64
	AccountID   string
	Symbol      string
	Side        OrderSide
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	RealizedPNL decimal.Decimal // zero for buys
	ExecutedAt  time.Time
}

// Notional returns price times quantity.
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
