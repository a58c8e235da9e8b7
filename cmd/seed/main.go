package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paperTrader/config"
	"paperTrader/internal/adapters/logger"
	"paperTrader/internal/adapters/sqlite"
	"paperTrader/internal/domain"
	"paperTrader/internal/strategy"
)

var (
	cash        = flag.String("cash", "100000", "starting cash balance")
	autoExecute = flag.Bool("auto", false, "let high-confidence signals place orders")
	ruleKind    = flag.String("rule", "", "attach a strategy: ma_crossover or rsi_reversion (optional)")
	ruleParams  = flag.String("params", `{"short_period": 20, "long_period": 50}`, "rule parameters as JSON")
	universe    = flag.String("universe", "BTCUSDT,ETHUSDT", "comma-separated strategy universe")
	watch       = flag.String("watch", "", "comma-separated symbols to add to the account watchlist")
)

// seed bootstraps a fresh database with one paper-trading account, an
// optional strategy and a watchlist, so the background jobs have something
// to work on.
func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to open database: %v", err)
	}
	defer repo.Close()

	startingCash, err := decimal.NewFromString(*cash)
	if err != nil || !startingCash.IsPositive() {
		log.Fatalf("FATAL: -cash must be a positive decimal, got %q", *cash)
	}

	account := domain.NewAccount(startingCash)
	account.AutoExecute = *autoExecute

	if *ruleKind != "" {
		// Validate the rule before persisting anything.
		if _, err := strategy.ParseRule(*ruleKind, *ruleParams); err != nil {
			log.Fatalf("FATAL: Invalid rule: %v", err)
		}
		symbols := splitSymbols(*universe)
		if len(symbols) == 0 {
			log.Fatal("FATAL: -universe must name at least one symbol")
		}
		strat := &domain.Strategy{
			Name:       fmt.Sprintf("%s %s", *ruleKind, time.Now().UTC().Format("2006-01-02")),
			Kind:       *ruleKind,
			ParamsJSON: *ruleParams,
			Universe:   symbols,
			Active:     true,
		}
		if err := repo.SaveStrategy(ctx, strat); err != nil {
			log.Fatalf("FATAL: Failed to save strategy: %v", err)
		}
		account.StrategyID = strat.ID
		for _, symbol := range symbols {
			if _, err := repo.Ensure(ctx, symbol, cfg.DefaultExchange, cfg.DefaultCurrency); err != nil {
				log.Fatalf("FATAL: Failed to register instrument %s: %v", symbol, err)
			}
		}
		fmt.Printf("Created strategy %d (%s) over %s\n", strat.ID, strat.Kind, strings.Join(symbols, ", "))
	}

	if err := repo.Create(ctx, account); err != nil {
		log.Fatalf("FATAL: Failed to create account: %v", err)
	}
	fmt.Printf("Created account %s with %s cash (auto-execute: %v)\n",
		account.ID, startingCash.StringFixed(2), account.AutoExecute)

	for _, symbol := range splitSymbols(*watch) {
		if _, err := repo.Ensure(ctx, symbol, cfg.DefaultExchange, cfg.DefaultCurrency); err != nil {
			log.Fatalf("FATAL: Failed to register instrument %s: %v", symbol, err)
		}
		if err := repo.AddToWatchlist(ctx, account.ID, symbol, time.Now().UTC()); err != nil {
			log.Fatalf("FATAL: Failed to add %s to watchlist: %v", symbol, err)
		}
		fmt.Printf("Watching %s\n", symbol)
	}
}

func splitSymbols(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
