package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

// Service is the position valuation pass. Each tick it revalues every
// position against the cached quote for its symbol and appends one equity
// snapshot per account. It never mutates position quantity or entry price;
// valuation is read-only over positions and write-only over snapshots.
type Service struct {
	positions ports.PositionRepository
	accounts  ports.AccountRepository
	snapshots ports.SnapshotRepository
	cache     ports.QuoteCache
	logger    ports.Logger
	now       func() time.Time
}

// ServiceConfig wires the valuation pass's collaborators.
type ServiceConfig struct {
	Positions ports.PositionRepository
	Accounts  ports.AccountRepository
	Snapshots ports.SnapshotRepository
	Cache     ports.QuoteCache
	Logger    ports.Logger
	Now       func() time.Time
}

// NewService creates the valuation pass.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Positions == nil || cfg.Accounts == nil || cfg.Snapshots == nil ||
		cfg.Cache == nil || cfg.Logger == nil {
		return nil, errors.New("valuation requires position/account/snapshot stores, quote cache and a logger")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		positions: cfg.Positions,
		accounts:  cfg.Accounts,
		snapshots: cfg.Snapshots,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
		now:       now,
	}, nil
}

// Tick runs one valuation pass over all accounts. Positions without a cached
// quote keep their last valuation; a missing quote never fails the pass.
func (s *Service) Tick(ctx context.Context) error {
	op := "ValuationTick"

	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to load accounts: %w", op, err)
	}

	now := s.now()
	for _, account := range accounts {
		if err := s.revalueAccount(ctx, account, now); err != nil {
			// One account's failure must not starve the others.
			s.logger.Error(ctx, err, "Account valuation failed",
				map[string]interface{}{"accountID": account.ID})
		}
	}
	s.logger.Debug(ctx, "Valuation pass complete", map[string]interface{}{"accounts": len(accounts)})
	return nil
}

func (s *Service) revalueAccount(ctx context.Context, account *domain.Account, now time.Time) error {
	positions, err := s.positions.FindByAccount(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}

	positionsValue := decimal.Zero
	unrealized := decimal.Zero
	for _, pos := range positions {
		quote, found := s.cache.Get(pos.Symbol)
		if !found {
			// Stale valuation is better than none; fall back to the last
			// price written on the position.
			positionsValue = positionsValue.Add(pos.MarketValue(pos.CurrentPrice))
			unrealized = unrealized.Add(pos.UnrealizedPNL)
			continue
		}

		value := pos.MarketValue(quote.Price)
		pnl := value.Sub(pos.CostBasis())
		positionsValue = positionsValue.Add(value)
		unrealized = unrealized.Add(pnl)

		if err := s.positions.UpdateValuation(ctx, pos.ID, quote.Price, pnl, now); err != nil {
			return fmt.Errorf("failed to update valuation for position %d: %w", pos.ID, err)
		}
	}

	snapshot := &domain.AccountSnapshot{
		AccountID:      account.ID,
		Cash:           account.CashBalance,
		PositionsValue: positionsValue,
		Equity:         account.CashBalance.Add(positionsValue),
		UnrealizedPNL:  unrealized,
		TakenAt:        now,
	}
	if _, err := s.snapshots.CreateSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

// Equity returns an account's current equity (cash plus position values at
// cached prices) without writing anything.
func (s *Service) Equity(ctx context.Context, account *domain.Account) (decimal.Decimal, error) {
	positions, err := s.positions.FindByAccount(ctx, account.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load positions for equity: %w", err)
	}

	equity := account.CashBalance
	for _, pos := range positions {
		if quote, found := s.cache.Get(pos.Symbol); found {
			equity = equity.Add(pos.MarketValue(quote.Price))
		} else {
			equity = equity.Add(pos.MarketValue(pos.CurrentPrice))
		}
	}
	return equity, nil
}
