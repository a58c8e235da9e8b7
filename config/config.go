package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"paperTrader/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Market data provider
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Provider throttling
	ProviderRateLimit float64       // requests per second shared across all provider calls
	ProviderBurst     int           // token bucket burst size
	ProviderTimeout   time.Duration // per-call timeout

	// Job cadences
	OrderTickInterval    time.Duration // execution engine
	PositionTickInterval time.Duration // valuation pass
	QuoteTickInterval    time.Duration // price feed refresher
	SignalTickInterval   time.Duration // strategy signal engine

	// Scheduler behaviour
	JobSoftDeadline time.Duration // ticks running past this are logged, not killed
	BackoffMax      time.Duration // cap for per-job failure backoff

	// Execution parameters
	QuoteStaleness time.Duration // engine refuses to fill against older quotes

	// Strategy parameters
	ConfidenceThreshold float64       // minimum confidence for automated orders
	HistoryBars         int           // candles fetched per strategy evaluation
	HistoryBarInterval  time.Duration // candle interval for strategy history

	// Market calendar
	MarketTimezone string // e.g., "America/New_York"

	// Instrument defaults for create-on-first-reference
	DefaultExchange string
	DefaultCurrency string

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Provider credentials are optional: ticker and kline endpoints are public.
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	cfg.ProviderRateLimit, err = getEnvAsFloatRequired("PROVIDER_RATE_LIMIT", 5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PROVIDER_RATE_LIMIT: %v", err))
	} else if cfg.ProviderRateLimit <= 0 {
		errs = append(errs, "PROVIDER_RATE_LIMIT must be positive")
	}

	cfg.ProviderBurst = getEnvAsInt("PROVIDER_BURST", 10)
	if cfg.ProviderBurst <= 0 {
		errs = append(errs, "PROVIDER_BURST must be positive")
	}

	cfg.ProviderTimeout = getEnvAsDuration("PROVIDER_TIMEOUT_SECONDS", 10*time.Second, &errs)

	// Job cadences follow the classic job controller defaults:
	// orders 5s, positions 30s, quotes 60s, signals 300s.
	cfg.OrderTickInterval = getEnvAsDuration("ORDER_TICK_SECONDS", 5*time.Second, &errs)
	cfg.PositionTickInterval = getEnvAsDuration("POSITION_TICK_SECONDS", 30*time.Second, &errs)
	cfg.QuoteTickInterval = getEnvAsDuration("QUOTE_TICK_SECONDS", 60*time.Second, &errs)
	cfg.SignalTickInterval = getEnvAsDuration("SIGNAL_TICK_SECONDS", 300*time.Second, &errs)

	cfg.JobSoftDeadline = getEnvAsDuration("JOB_SOFT_DEADLINE_SECONDS", 60*time.Second, &errs)
	cfg.BackoffMax = getEnvAsDuration("BACKOFF_MAX_SECONDS", 600*time.Second, &errs)

	cfg.QuoteStaleness = getEnvAsDuration("QUOTE_STALENESS_SECONDS", 300*time.Second, &errs)

	cfg.ConfidenceThreshold = getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.7)
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		errs = append(errs, "CONFIDENCE_THRESHOLD must be between 0.0 and 1.0")
	}

	cfg.HistoryBars = getEnvAsInt("HISTORY_BARS", 100)
	if cfg.HistoryBars <= 0 {
		errs = append(errs, "HISTORY_BARS must be positive")
	}
	cfg.HistoryBarInterval = getEnvAsDuration("HISTORY_BAR_SECONDS", 24*time.Hour, &errs)

	cfg.MarketTimezone = getEnv("MARKET_TIMEZONE", "America/New_York")
	if cfg.MarketTimezone == "" {
		errs = append(errs, "MARKET_TIMEZONE must be set")
	}

	cfg.DefaultExchange = getEnv("DEFAULT_EXCHANGE", "NASDAQ")
	cfg.DefaultCurrency = getEnv("DEFAULT_CURRENCY", "USD")

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/paper_trader.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration reads a positive duration given in whole seconds.
// Validation failures are appended to errs.
func getEnvAsDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	seconds := getEnvAsInt(key, int(defaultValue/time.Second))
	if seconds <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be positive", key))
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
