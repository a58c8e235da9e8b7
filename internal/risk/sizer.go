package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"paperTrader/internal/ports"
)

// SizerConfig holds position sizing and portfolio limit settings.
type SizerConfig struct {
	// PercentOfEquity sizes each buy as a fraction of account equity,
	// e.g. 0.10 for 10%. Ignored when FixedNotional is positive.
	PercentOfEquity float64
	// FixedNotional sizes each buy as a fixed cash amount when positive.
	FixedNotional decimal.Decimal
	// MaxOpenPositions caps how many positions an account may hold.
	MaxOpenPositions int
}

// DefaultSizerConfig mirrors the stock automation defaults: 10% of equity
// per entry, at most 10 open positions.
func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		PercentOfEquity:  0.10,
		MaxOpenPositions: 10,
	}
}

// Sizer converts an entry decision into a whole-share order quantity and
// enforces portfolio limits.
type Sizer struct {
	config SizerConfig
}

// NewSizer validates the config and creates a sizer.
func NewSizer(config SizerConfig) (*Sizer, error) {
	if config.FixedNotional.IsZero() {
		if config.PercentOfEquity <= 0 || config.PercentOfEquity > 1 {
			return nil, fmt.Errorf("percent of equity %f must be in (0, 1]: %w",
				config.PercentOfEquity, ports.ErrInvalidParams)
		}
	} else if config.FixedNotional.IsNegative() {
		return nil, fmt.Errorf("fixed notional %s must be positive: %w",
			config.FixedNotional, ports.ErrInvalidParams)
	}
	if config.MaxOpenPositions <= 0 {
		return nil, fmt.Errorf("max open positions %d must be positive: %w",
			config.MaxOpenPositions, ports.ErrInvalidParams)
	}
	return &Sizer{config: config}, nil
}

// CanOpen reports whether a new position may be opened given how many the
// account already holds.
func (s *Sizer) CanOpen(openPositions int) bool {
	return openPositions < s.config.MaxOpenPositions
}

// Quantity returns the whole-share quantity to buy at price given the
// account's equity and cash. The target notional is capped by available
// cash so a sized order is never rejected for funds it predictably lacks.
// Returns zero when even one share is unaffordable.
func (s *Sizer) Quantity(equity, cash, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}

	notional := s.config.FixedNotional
	if notional.IsZero() {
		notional = equity.Mul(decimal.NewFromFloat(s.config.PercentOfEquity))
	}
	if notional.GreaterThan(cash) {
		notional = cash
	}

	// Whole shares only.
	return notional.Div(price).Floor()
}
