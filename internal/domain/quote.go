package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the last-known price for an instrument with a freshness timestamp.
// A newer Quote replaces, never merges with, the prior one; the AsOf timestamp
// is monotonically non-decreasing per symbol.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	AsOf   time.Time
	Source string
}

// Candle is a single OHLCV bar of quote history.
type Candle struct {
	Symbol    string
	OpenTime  time.Time
	CloseTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
