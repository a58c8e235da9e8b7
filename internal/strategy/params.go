package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
	"paperTrader/internal/strategy/indicators"
)

// Strategy kinds understood by the signal engine.
const (
	KindMACrossover  = "ma_crossover"
	KindRSIReversion = "rsi_reversion"
)

// Verdict is the outcome of evaluating one rule against one symbol.
// Score is a signed composite: positive favours buying, negative selling.
type Verdict struct {
	Type   domain.SignalType
	Score  float64
	Reason string
}

// Confidence maps a score onto [0.5, 0.9]: half a point of confidence for
// showing up, the rest proportional to signal magnitude.
func Confidence(score float64) float64 {
	return math.Min(0.9, math.Abs(score)/10+0.5)
}

// Rule is one strategy's evaluation logic, built from validated parameters.
type Rule interface {
	// Kind returns the strategy kind the rule implements.
	Kind() string
	// MinHistory returns the minimum number of bars Evaluate needs.
	MinHistory() int
	// Evaluate inspects recent history plus the current price and returns
	// a verdict. A HOLD verdict produces no signal.
	Evaluate(ctx context.Context, candles []*domain.Candle, price float64) (Verdict, error)
}

// ParseRule decodes and validates a strategy's JSON parameters into a Rule.
func ParseRule(kind, paramsJSON string) (Rule, error) {
	switch kind {
	case KindMACrossover:
		var p MACrossoverParams
		if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
			return nil, fmt.Errorf("invalid %s params: %w: %w", kind, ports.ErrInvalidParams, err)
		}
		return p.Rule()
	case KindRSIReversion:
		var p RSIReversionParams
		if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
			return nil, fmt.Errorf("invalid %s params: %w: %w", kind, ports.ErrInvalidParams, err)
		}
		return p.Rule()
	}
	return nil, fmt.Errorf("unknown strategy kind %q: %w", kind, ports.ErrInvalidParams)
}

// MACrossoverParams configures a moving-average crossover rule.
type MACrossoverParams struct {
	ShortPeriod int `json:"short_period"`
	LongPeriod  int `json:"long_period"`
}

// Rule validates the params and builds the rule.
func (p MACrossoverParams) Rule() (Rule, error) {
	if p.ShortPeriod <= 0 || p.LongPeriod <= 0 {
		return nil, fmt.Errorf("ma_crossover periods must be positive, got short=%d long=%d: %w",
			p.ShortPeriod, p.LongPeriod, ports.ErrInvalidParams)
	}
	if p.ShortPeriod >= p.LongPeriod {
		return nil, fmt.Errorf("ma_crossover short period %d must be below long period %d: %w",
			p.ShortPeriod, p.LongPeriod, ports.ErrInvalidParams)
	}
	return &maCrossoverRule{
		params: p,
		short: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: p.ShortPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
		long: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: p.LongPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
	}, nil
}

type maCrossoverRule struct {
	params MACrossoverParams
	short  *indicators.MovingAverage
	long   *indicators.MovingAverage
}

func (r *maCrossoverRule) Kind() string    { return KindMACrossover }
func (r *maCrossoverRule) MinHistory() int { return r.params.LongPeriod }

func (r *maCrossoverRule) Evaluate(ctx context.Context, candles []*domain.Candle, price float64) (Verdict, error) {
	shortMA, err := r.short.Calculate(ctx, candles)
	if err != nil {
		return Verdict{Type: domain.SignalHold}, err
	}
	longMA, err := r.long.Calculate(ctx, candles)
	if err != nil {
		return Verdict{Type: domain.SignalHold}, err
	}
	if longMA == 0 {
		return Verdict{Type: domain.SignalHold}, nil
	}

	// Signed percentage spread between the averages drives the score.
	spread := (shortMA - longMA) / longMA * 100

	switch {
	case shortMA > longMA && price > shortMA:
		return Verdict{
			Type:   domain.SignalBuy,
			Score:  spread,
			Reason: fmt.Sprintf("short SMA(%d)=%.2f above long SMA(%d)=%.2f with price %.2f above trend", r.params.ShortPeriod, shortMA, r.params.LongPeriod, longMA, price),
		}, nil
	case shortMA < longMA:
		return Verdict{
			Type:   domain.SignalSell,
			Score:  spread,
			Reason: fmt.Sprintf("short SMA(%d)=%.2f below long SMA(%d)=%.2f", r.params.ShortPeriod, shortMA, r.params.LongPeriod, longMA),
		}, nil
	}
	return Verdict{Type: domain.SignalHold}, nil
}

// RSIReversionParams configures a mean-reversion rule on RSI extremes.
type RSIReversionParams struct {
	Period     int     `json:"period"`
	Oversold   float64 `json:"oversold"`
	Overbought float64 `json:"overbought"`
}

// Rule validates the params and builds the rule.
func (p RSIReversionParams) Rule() (Rule, error) {
	if p.Period <= 1 {
		return nil, fmt.Errorf("rsi_reversion period %d must be above 1: %w", p.Period, ports.ErrInvalidParams)
	}
	if p.Oversold <= 0 || p.Overbought >= 100 || p.Oversold >= p.Overbought {
		return nil, fmt.Errorf("rsi_reversion thresholds oversold=%f overbought=%f must satisfy 0 < oversold < overbought < 100: %w",
			p.Oversold, p.Overbought, ports.ErrInvalidParams)
	}
	return &rsiReversionRule{
		params: p,
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: p.Period},
			Overbought:      p.Overbought,
			Oversold:        p.Oversold,
		}),
	}, nil
}

type rsiReversionRule struct {
	params RSIReversionParams
	rsi    *indicators.RSI
}

func (r *rsiReversionRule) Kind() string    { return KindRSIReversion }
func (r *rsiReversionRule) MinHistory() int { return r.params.Period + 1 }

func (r *rsiReversionRule) Evaluate(ctx context.Context, candles []*domain.Candle, price float64) (Verdict, error) {
	value, err := r.rsi.Calculate(ctx, candles)
	if err != nil {
		return Verdict{Type: domain.SignalHold}, err
	}

	switch {
	case r.rsi.IsOversold(value):
		// Deeper below the threshold scores higher.
		score := (r.params.Oversold - value) / r.params.Oversold * 10
		return Verdict{
			Type:   domain.SignalBuy,
			Score:  score,
			Reason: fmt.Sprintf("RSI(%d)=%.2f below oversold threshold %.0f", r.params.Period, value, r.params.Oversold),
		}, nil
	case r.rsi.IsOverbought(value):
		score := -(value - r.params.Overbought) / (100 - r.params.Overbought) * 10
		return Verdict{
			Type:   domain.SignalSell,
			Score:  score,
			Reason: fmt.Sprintf("RSI(%d)=%.2f above overbought threshold %.0f", r.params.Period, value, r.params.Overbought),
		}, nil
	}
	return Verdict{Type: domain.SignalHold}, nil
}
