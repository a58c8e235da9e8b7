package domain

import "time"

// WatchlistEntry is one symbol an account follows. Watchlist symbols are
// included in the price feed refresh even without positions or orders.
type WatchlistEntry struct {
	ID        int64
	AccountID string
	Symbol    string
	AddedAt   time.Time
}
