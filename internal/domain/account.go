package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds the cash ledger for one paper-trading account.
// CashBalance is mutated only by the execution engine's atomic fill.
type Account struct {
	ID          string
	CashBalance decimal.Decimal // never negative
	StrategyID  int64           // 0 when no strategy is linked
	AutoExecute bool            // signals above threshold create orders
	CreatedAt   time.Time
}

// NewAccount creates an account with a generated identifier and starting cash.
func NewAccount(startingCash decimal.Decimal) *Account {
	return &Account{
		ID:          uuid.NewString(),
		CashBalance: startingCash,
		CreatedAt:   time.Now().UTC(),
	}
}

// HasStrategy reports whether a strategy is linked to the account.
func (a *Account) HasStrategy() bool {
	return a.StrategyID != 0
}
