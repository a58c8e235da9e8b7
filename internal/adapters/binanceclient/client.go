package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	sourceName = "binance"
)

// Client implements the ports.QuoteProvider interface using the go-binance
// spot client. Only public market-data endpoints are used; API keys are
// optional and merely raise the rate-limit ceiling.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	timeout    time.Duration
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
	Timeout    time.Duration // per-call timeout, e.g. 10 * time.Second
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only use public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global binance.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		timeout:    timeout,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1120, -1121: // Parameter/request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrProviderUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrProviderUnavailable, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// FetchQuote retrieves the current ticker price for a symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	op := "FetchQuote"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prices, err := c.spotClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(prices) == 0 {
		err := fmt.Errorf("no price data returned for symbol %s: %w", symbol, ports.ErrQuoteNotFound)
		return nil, c.handleError(ctx, err, op)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", prices[0].Price, err)
		return nil, c.handleError(ctx, parseErr, op)
	}
	if price.IsNegative() {
		err := fmt.Errorf("negative price %s for symbol %s: %w", price, symbol, ports.ErrInvalidRequest)
		return nil, c.handleError(ctx, err, op)
	}

	return &domain.Quote{
		Symbol: symbol,
		Price:  price,
		AsOf:   time.Now().UTC(),
		Source: sourceName,
	}, nil
}

// FetchHistory retrieves up to limit recent OHLCV bars for a symbol,
// oldest first.
func (c *Client) FetchHistory(ctx context.Context, symbol string, interval time.Duration, limit int) ([]*domain.Candle, error) {
	op := "FetchHistory"

	binanceInterval, err := toBinanceInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	klines, err := c.spotClient.NewKlinesService().
		Symbol(symbol).
		Interval(binanceInterval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	candles := make([]*domain.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := translateKline(symbol, k)
		if err != nil {
			// One malformed bar is dropped, the rest of the history stands.
			c.logger.Warn(ctx, "Skipping malformed kline", map[string]interface{}{
				"symbol": symbol, "openTime": k.OpenTime, "error": err.Error()})
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// Ping checks the connectivity to the provider API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

func translateKline(symbol string, k *binance.Kline) (*domain.Candle, error) {
	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return nil, fmt.Errorf("invalid open '%s': %w", k.Open, err)
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return nil, fmt.Errorf("invalid high '%s': %w", k.High, err)
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return nil, fmt.Errorf("invalid low '%s': %w", k.Low, err)
	}
	closePrice, err := decimal.NewFromString(k.Close)
	if err != nil {
		return nil, fmt.Errorf("invalid close '%s': %w", k.Close, err)
	}
	volume, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return nil, fmt.Errorf("invalid volume '%s': %w", k.Volume, err)
	}

	return &domain.Candle{
		Symbol:    symbol,
		OpenTime:  time.UnixMilli(k.OpenTime),
		CloseTime: time.UnixMilli(k.CloseTime),
		Open:      open.InexactFloat64(),
		High:      high.InexactFloat64(),
		Low:       low.InexactFloat64(),
		Close:     closePrice.InexactFloat64(),
		Volume:    volume.InexactFloat64(),
	}, nil
}

// toBinanceInterval maps a bar duration onto the provider's interval strings.
func toBinanceInterval(interval time.Duration) (string, error) {
	switch interval {
	case time.Minute:
		return "1m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case 30 * time.Minute:
		return "30m", nil
	case time.Hour:
		return "1h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1d", nil
	case 7 * 24 * time.Hour:
		return "1w", nil
	}
	return "", fmt.Errorf("unsupported bar interval %s: %w", interval, ports.ErrInvalidRequest)
}
