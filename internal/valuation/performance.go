package valuation

import (
	"math"

	"paperTrader/internal/domain"
)

// TradeStats holds realized performance metrics computed from an account's
// trade history. Only sell trades realize P&L, so the counters below run
// over sells.
type TradeStats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	RealizedPNL   float64
	AverageWin    float64
	AverageLoss   float64
	ProfitFactor  float64 // gross profit / gross loss, Inf when lossless
	Expectancy    float64 // expected P&L per closing trade
}

// AnalyzeTrades computes realized trade statistics from a trade history.
func AnalyzeTrades(trades []*domain.Trade) *TradeStats {
	stats := &TradeStats{}

	var grossProfit, grossLoss float64
	for _, trade := range trades {
		if trade.Side != domain.Sell {
			continue
		}
		stats.TotalTrades++
		pnl := trade.RealizedPNL.InexactFloat64()
		stats.RealizedPNL += pnl

		if pnl > 0 {
			stats.WinningTrades++
			grossProfit += pnl
			stats.AverageWin = (stats.AverageWin*float64(stats.WinningTrades-1) + pnl) / float64(stats.WinningTrades)
		} else {
			stats.LosingTrades++
			grossLoss += math.Abs(pnl)
			stats.AverageLoss = (stats.AverageLoss*float64(stats.LosingTrades-1) + pnl) / float64(stats.LosingTrades)
		}
	}

	if stats.TotalTrades == 0 {
		return stats
	}

	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
	if grossLoss > 0 {
		stats.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		stats.ProfitFactor = math.Inf(1)
	}
	stats.Expectancy = stats.WinRate*stats.AverageWin + (1-stats.WinRate)*stats.AverageLoss
	return stats
}
