package domain

// Instrument is immutable reference data for a tradeable symbol.
// Created on first reference, never deleted while referenced.
type Instrument struct {
	ID       int64
	Symbol   string // e.g., "AAPL"
	Exchange string // e.g., "NASDAQ"
	Currency string // e.g., "USD"
}
