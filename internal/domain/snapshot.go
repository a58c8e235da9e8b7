package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot is an append-only equity snapshot produced by the
// valuation pass: cash + sum of position values at the prices used.
type AccountSnapshot struct {
	ID             int64
	AccountID      string
	Cash           decimal.Decimal
	PositionsValue decimal.Decimal
	Equity         decimal.Decimal
	UnrealizedPNL  decimal.Decimal
	TakenAt        time.Time
}
