package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

// ThrottledProvider wraps a QuoteProvider with a shared token-bucket gate.
// All provider calls across all jobs draw from the same bucket, so the
// process as a whole stays inside the provider's rate limit. Acquisition is
// non-blocking: when the bucket is empty the call fails with ErrRateLimited
// and the caller defers the work to its next tick.
type ThrottledProvider struct {
	inner   ports.QuoteProvider
	limiter *rate.Limiter
}

// NewThrottledProvider creates a throttled provider allowing callsPerSecond
// sustained calls with the given burst.
func NewThrottledProvider(inner ports.QuoteProvider, callsPerSecond float64, burst int) *ThrottledProvider {
	return &ThrottledProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst),
	}
}

// FetchQuote retrieves a quote if a token is available.
func (p *ThrottledProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if !p.limiter.Allow() {
		return nil, fmt.Errorf("quote fetch for %s throttled: %w", symbol, ports.ErrRateLimited)
	}
	return p.inner.FetchQuote(ctx, symbol)
}

// FetchHistory retrieves history if a token is available.
func (p *ThrottledProvider) FetchHistory(ctx context.Context, symbol string, interval time.Duration, limit int) ([]*domain.Candle, error) {
	if !p.limiter.Allow() {
		return nil, fmt.Errorf("history fetch for %s throttled: %w", symbol, ports.ErrRateLimited)
	}
	return p.inner.FetchHistory(ctx, symbol, interval, limit)
}
