package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingSignal is an append-only record of one strategy evaluation outcome.
// Advisory unless the owning account has automatic execution enabled.
type TradingSignal struct {
	ID         int64
	StrategyID int64
	Symbol     string
	Type       SignalType
	Strength   float64 // composite score, sign follows direction
	Confidence float64 // 0..1
	Price      decimal.Decimal
	Reason     string
	CreatedAt  time.Time
}
