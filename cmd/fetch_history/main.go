package main

import (
	"context"
	"flag"
	"log"
	"time"

	"paperTrader/config"
	"paperTrader/internal/adapters/binanceclient"
	"paperTrader/internal/adapters/logger"
	"paperTrader/internal/utils"
)

var (
	symbol   = flag.String("symbol", "BTCUSDT", "instrument symbol to fetch")
	bars     = flag.Int("bars", 365, "number of candles to fetch")
	interval = flag.Duration("interval", 24*time.Hour, "candle interval (1m, 5m, 15m, 30m, 1h, 4h, 24h, 168h)")
	output   = flag.String("out", "", "output CSV path (defaults to <symbol>_history.csv)")
)

// fetch_history downloads candle history for one symbol and saves it as CSV
// for offline signal replay.
func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
		Timeout:    cfg.ProviderTimeout,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	appLogger.Info(ctx, "Fetching candle history", map[string]interface{}{
		"symbol":   *symbol,
		"bars":     *bars,
		"interval": interval.String(),
	})
	candles, err := client.FetchHistory(ctx, *symbol, *interval, *bars)
	if err != nil {
		log.Fatalf("FATAL: Failed to fetch history: %v", err)
	}

	path := *output
	if path == "" {
		path = *symbol + "_history.csv"
	}
	if err := utils.WriteCandlesToCSV(candles, path); err != nil {
		log.Fatalf("FATAL: Failed to write CSV: %v", err)
	}
	appLogger.Info(ctx, "Candle history saved", map[string]interface{}{
		"file":    path,
		"candles": len(candles),
	})
}
