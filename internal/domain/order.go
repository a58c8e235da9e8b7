package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is one request to trade an instrument. Status follows a finite state
// machine: PENDING -> {FILLED, PARTIALLY_FILLED -> FILLED, CANCELLED, REJECTED}.
// An order is immutable once in a terminal state.
type Order struct {
	ID         int64
	AccountID  string
	Symbol     string
	Side       OrderSide
	Kind       OrderKind
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal // required for LIMIT orders
	StopPrice  decimal.Decimal // required for STOP orders
	Status     OrderStatus
	Reason     string // human-readable rejection reason, empty otherwise

	FilledQuantity decimal.Decimal // accumulates across partial fills
	FilledPrice    decimal.Decimal // average fill price
	FilledAt       time.Time       // zero until first fill
	CreatedAt      time.Time
}

// RemainingQuantity returns the quantity still to be filled.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Triggered reports whether the order may fill against the given quote price.
// Market orders always trigger; limit and stop orders compare against their
// configured price. Stop orders fill at the quote price, not the stop price.
func (o *Order) Triggered(quotePrice decimal.Decimal) bool {
	switch o.Kind {
	case KindMarket:
		return true
	case KindLimit:
		if o.Side == Buy {
			return quotePrice.LessThanOrEqual(o.LimitPrice)
		}
		return quotePrice.GreaterThanOrEqual(o.LimitPrice)
	case KindStop:
		if o.Side == Buy {
			return quotePrice.GreaterThanOrEqual(o.StopPrice)
		}
		return quotePrice.LessThanOrEqual(o.StopPrice)
	}
	return false
}
