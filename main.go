package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"paperTrader/config"
	"paperTrader/internal/adapters/binanceclient"
	"paperTrader/internal/adapters/logger"
	"paperTrader/internal/adapters/sqlite"
	"paperTrader/internal/app"
	"paperTrader/internal/execution"
	"paperTrader/internal/marketdata"
	"paperTrader/internal/risk"
	"paperTrader/internal/scheduler"
	"paperTrader/internal/strategy"
	"paperTrader/internal/valuation"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Market Data Provider (Binance Adapter + shared throttle)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
		Timeout:    cfg.ProviderTimeout,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	provider := marketdata.NewThrottledProvider(binanceClient, cfg.ProviderRateLimit, cfg.ProviderBurst)
	cache := marketdata.NewCache()
	appLogger.Info(ctx, "Market data provider initialized", map[string]interface{}{
		"testnet":   cfg.IsTestnet,
		"rateLimit": cfg.ProviderRateLimit,
	})

	// 5. Initialize Market Calendar
	calendar, err := scheduler.NewMarketCalendar(cfg.MarketTimezone)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load market calendar timezone")
		log.Fatalf("FATAL: Failed to load market calendar timezone: %v", err)
	}

	// 6. Initialize Background Engines
	refresher, err := marketdata.NewRefresher(marketdata.RefresherConfig{
		Provider:  provider,
		Cache:     cache,
		Quotes:    repo,
		Positions: repo,
		Orders:    repo,
		Watchlist: repo,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize quote refresher")
		log.Fatalf("FATAL: Failed to initialize quote refresher: %v", err)
	}

	executionEngine, err := execution.NewEngine(execution.EngineConfig{
		Orders:         repo,
		Ledger:         repo,
		Cache:          cache,
		Logger:         appLogger,
		QuoteStaleness: cfg.QuoteStaleness,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize execution engine")
		log.Fatalf("FATAL: Failed to initialize execution engine: %v", err)
	}

	valuationService, err := valuation.NewService(valuation.ServiceConfig{
		Positions: repo,
		Accounts:  repo,
		Snapshots: repo,
		Cache:     cache,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize valuation service")
		log.Fatalf("FATAL: Failed to initialize valuation service: %v", err)
	}

	sizer, err := risk.NewSizer(risk.DefaultSizerConfig())
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position sizer")
		log.Fatalf("FATAL: Failed to initialize position sizer: %v", err)
	}
	signalEngine, err := strategy.NewEngine(strategy.EngineConfig{
		Strategies:          repo,
		Accounts:            repo,
		Positions:           repo,
		Orders:              repo,
		Signals:             repo,
		Provider:            provider,
		Cache:               cache,
		Sizer:               sizer,
		Logger:              appLogger,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		HistoryBars:         cfg.HistoryBars,
		HistoryBarInterval:  cfg.HistoryBarInterval,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize signal engine")
		log.Fatalf("FATAL: Failed to initialize signal engine: %v", err)
	}

	// 7. Initialize Application Service
	service, err := app.NewService(app.ServiceConfig{
		Cfg:         cfg,
		Logger:      appLogger,
		Accounts:    repo,
		Instruments: repo,
		Orders:      repo,
		Positions:   repo,
		Trades:      repo,
		Signals:     repo,
		JobRuns:     repo,
		Watchlist:   repo,
		Quotes:      repo,
		Ledger:      repo,
		Cache:       cache,
		Calendar:    calendar,
		Execution:   executionEngine,
		Valuation:   valuationService,
		Refresher:   refresher,
		Strategy:    signalEngine,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize application service")
		log.Fatalf("FATAL: Failed to initialize application service: %v", err)
	}
	appLogger.Info(ctx, "Application service initialized")

	// 8. Run until interrupted
	if err := service.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error(context.Background(), err, "Service exited with error")
		log.Fatalf("FATAL: Service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
