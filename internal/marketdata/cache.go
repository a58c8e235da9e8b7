package marketdata

import (
	"sync"
	"time"

	"paperTrader/internal/domain"
)

// Cache is an in-memory last-known-quote store with last-writer-wins
// semantics keyed by the as-of timestamp. Safe for one periodic writer and
// many concurrent readers.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewCache creates an empty quote cache.
func NewCache() *Cache {
	return &Cache{quotes: make(map[string]domain.Quote)}
}

// Get returns the cached quote and whether one exists.
func (c *Cache) Get(symbol string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quote, found := c.quotes[symbol]
	return quote, found
}

// Put stores the quote unless a newer one is already cached. An out-of-order
// write with an older as-of is silently dropped.
func (c *Cache) Put(quote domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, found := c.quotes[quote.Symbol]; found && quote.AsOf.Before(existing.AsOf) {
		return
	}
	c.quotes[quote.Symbol] = quote
}

// Staleness returns the age of the cached quote relative to now.
func (c *Cache) Staleness(symbol string, now time.Time) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quote, found := c.quotes[symbol]
	if !found {
		return 0, false
	}
	return now.Sub(quote.AsOf), true
}

// Warm seeds the cache from persisted quotes, typically at startup. The
// per-entry LWW rule still applies.
func (c *Cache) Warm(quotes []*domain.Quote) {
	for _, q := range quotes {
		if q != nil {
			c.Put(*q)
		}
	}
}

// Symbols returns the symbols currently cached, in no particular order.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	symbols := make([]string, 0, len(c.quotes))
	for s := range c.quotes {
		symbols = append(symbols, s)
	}
	return symbols
}
