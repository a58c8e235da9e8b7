package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an account's current holding in one instrument, unique per
// (account, symbol) pair. Created on first fill, removed when quantity
// returns to zero.
type Position struct {
	ID                int64
	AccountID         string
	Symbol            string
	Quantity          decimal.Decimal
	AverageEntryPrice decimal.Decimal
	CurrentPrice      decimal.Decimal // last valuation price, zero until valued
	UnrealizedPNL     decimal.Decimal
	UpdatedAt         time.Time
}

// MarketValue returns quantity times the given price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price)
}

// CostBasis returns quantity times the average entry price.
func (p *Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AverageEntryPrice)
}

// WeightedAveragePrice recomputes the average entry price after buying
// addQty at addPrice on top of the existing holding.
func (p *Position) WeightedAveragePrice(addQty, addPrice decimal.Decimal) decimal.Decimal {
	totalQty := p.Quantity.Add(addQty)
	if totalQty.IsZero() {
		return decimal.Zero
	}
	totalCost := p.CostBasis().Add(addQty.Mul(addPrice))
	return totalCost.Div(totalQty)
}
