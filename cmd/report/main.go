package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"paperTrader/config"
	"paperTrader/internal/adapters/logger"
	"paperTrader/internal/adapters/sqlite"
	"paperTrader/internal/app"
	"paperTrader/internal/valuation"
)

var tradeLimit = flag.Int("trades", 10000, "trade history depth for the statistics")

// report prints every account's standing straight from the database: cash,
// open positions at their last valuation, realized trade statistics and the
// latest scheduler activity.
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

	accounts, err := repo.FindAll(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to list accounts: %v", err)
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts found.")
		return
	}

	for _, acc := range accounts {
		fmt.Printf("Account %s\n", acc.ID)
		fmt.Printf("  Cash: %s  Auto-execute: %v\n", acc.CashBalance.StringFixed(2), acc.AutoExecute)

		positions, err := repo.FindByAccount(ctx, acc.ID)
		if err != nil {
			log.Fatalf("FATAL: Failed to load positions: %v", err)
		}
		for _, pos := range positions {
			fmt.Printf("  %-8s %s @ %s  last=%s  unrealized=%s\n",
				pos.Symbol, pos.Quantity.String(), pos.AverageEntryPrice.StringFixed(2),
				pos.CurrentPrice.StringFixed(2), pos.UnrealizedPNL.StringFixed(2))
		}

		if snap, err := repo.FindLatestSnapshot(ctx, acc.ID); err == nil && snap != nil {
			fmt.Printf("  Equity: %s (as of %s)\n",
				snap.Equity.StringFixed(2), snap.TakenAt.Format("2006-01-02 15:04:05"))
		}

		trades, err := repo.FindTradesByAccount(ctx, acc.ID, *tradeLimit)
		if err != nil {
			log.Fatalf("FATAL: Failed to load trades: %v", err)
		}
		stats := valuation.AnalyzeTrades(trades)
		if stats.TotalTrades > 0 {
			fmt.Printf("  Closed trades: %d  Win rate: %.1f%%  Realized P&L: %.2f  Expectancy: %.2f\n",
				stats.TotalTrades, stats.WinRate*100, stats.RealizedPNL, stats.Expectancy)
		} else {
			fmt.Println("  No closed trades yet.")
		}
		fmt.Println()
	}

	fmt.Println("Recent job activity:")
	for _, job := range []string{app.JobProcessOrders, app.JobUpdatePositions, app.JobRefreshMarketData, app.JobTradingBot} {
		runs, err := repo.FindJobRuns(ctx, job, 1)
		if err != nil {
			log.Fatalf("FATAL: Failed to load job runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Printf("  %-20s never ran\n", job)
			continue
		}
		last := runs[0]
		line := fmt.Sprintf("  %-20s %s at %s", job, last.Outcome, last.StartedAt.Format("2006-01-02 15:04:05"))
		if last.Error != "" {
			line += "  (" + last.Error + ")"
		}
		fmt.Println(line)
	}
}
