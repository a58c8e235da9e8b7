package ports

import (
	"context"
	"time"

	"paperTrader/internal/domain"
)

// QuoteProvider defines the contract with the external market data provider.
// Every call may block on the network; implementations must honour the
// context and may fail per call with ErrRateLimited, ErrTimeout or
// ErrProviderUnavailable. The core never assumes availability.
type QuoteProvider interface {
	// FetchQuote retrieves the current quote for a symbol.
	FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error)

	// FetchHistory retrieves up to limit recent OHLCV bars for a symbol at
	// the given bar interval, oldest first.
	FetchHistory(ctx context.Context, symbol string, interval time.Duration, limit int) ([]*domain.Candle, error)
}

// QuoteCache holds the last-known quote per instrument. put is
// last-writer-wins keyed by the as-of timestamp: an older quote than the one
// stored is silently dropped. Readers never block writers and vice versa.
type QuoteCache interface {
	// Get returns the cached quote and whether one exists. A missing entry
	// is not an error; callers apply their own staleness policy.
	Get(symbol string) (domain.Quote, bool)

	// Put stores the quote unless a newer one is already cached.
	Put(quote domain.Quote)

	// Staleness returns the age of the cached quote relative to now.
	// found is false when no quote is cached.
	Staleness(symbol string, now time.Time) (age time.Duration, found bool)
}
