package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"paperTrader/internal/domain"
	"paperTrader/internal/strategy"
	"paperTrader/internal/utils"
)

var (
	input     = flag.String("in", "", "candle history CSV (see cmd/fetch_history)")
	kind      = flag.String("rule", strategy.KindMACrossover, "rule kind: ma_crossover or rsi_reversion")
	params    = flag.String("params", `{"short_period": 20, "long_period": 50}`, "rule parameters as JSON")
	threshold = flag.Float64("threshold", 0.7, "confidence threshold for actionable signals")
	verbose   = flag.Bool("v", false, "print every evaluation, not just actionable signals")
)

// replay_signals walks saved candle history through a strategy rule bar by
// bar and reports the signals it would have produced. Useful for sanity
// checking rule parameters before enabling them on a live strategy.
func main() {
	flag.Parse()
	if *input == "" {
		log.Fatal("FATAL: -in is required")
	}

	rule, err := strategy.ParseRule(*kind, *params)
	if err != nil {
		log.Fatalf("FATAL: Invalid rule: %v", err)
	}

	candles, err := utils.ReadCandlesFromCSV(*input)
	if err != nil {
		log.Fatalf("FATAL: Failed to read candles: %v", err)
	}
	if len(candles) <= rule.MinHistory() {
		log.Fatalf("FATAL: Need more than %d candles, have %d", rule.MinHistory(), len(candles))
	}

	ctx := context.Background()
	counts := map[domain.SignalType]int{}
	actionable := 0

	fmt.Printf("Replaying %d candles of %s through %s %s\n\n",
		len(candles), candles[0].Symbol, *kind, *params)

	for i := rule.MinHistory(); i < len(candles); i++ {
		bar := candles[i]
		verdict, err := rule.Evaluate(ctx, candles[:i], bar.Close)
		if err != nil {
			log.Fatalf("FATAL: Evaluation failed at bar %d: %v", i, err)
		}
		counts[verdict.Type]++
		confidence := strategy.Confidence(verdict.Score)

		if verdict.Type == domain.SignalHold && !*verbose {
			continue
		}
		marker := " "
		if verdict.Type != domain.SignalHold && confidence >= *threshold {
			actionable++
			marker = "*"
		}
		fmt.Printf("%s %s  %-4s  close=%.2f  score=%+.2f  confidence=%.2f  %s\n",
			marker, bar.CloseTime.Format("2006-01-02"), verdict.Type, bar.Close,
			verdict.Score, confidence, verdict.Reason)
	}

	fmt.Printf("\nSummary: %d BUY, %d SELL, %d HOLD; %d at or above confidence %.2f\n",
		counts[domain.SignalBuy], counts[domain.SignalSell], counts[domain.SignalHold],
		actionable, *threshold)
}
