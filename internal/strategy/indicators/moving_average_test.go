package indicators

import (
	"context"
	"testing"
	"time"

	"paperTrader/internal/domain"
)

func TestMovingAverage_Calculate(t *testing.T) {
	now := time.Now()
	candles := []*domain.Candle{
		{OpenTime: now.Add(-4 * time.Hour), Close: 100.0},
		{OpenTime: now.Add(-3 * time.Hour), Close: 102.0},
		{OpenTime: now.Add(-2 * time.Hour), Close: 101.0},
		{OpenTime: now.Add(-1 * time.Hour), Close: 103.0},
		{OpenTime: now, Close: 104.0},
	}

	tests := []struct {
		name          string
		config        MovingAverageConfig
		candles       []*domain.Candle
		expectedValue float64
		expectError   bool
	}{
		{
			name: "SMA with sufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            SimpleMovingAverage,
			},
			candles:       candles,
			expectedValue: 102.666667, // (101 + 103 + 104) / 3
			expectError:   false,
		},
		{
			name: "EMA with sufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            ExponentialMovingAverage,
			},
			candles:       candles,
			expectedValue: 103.0, // seeded with SMA(100,102,101), then 103 and 104 applied
			expectError:   false,
		},
		{
			name: "Insufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 6},
				Type:            SimpleMovingAverage,
			},
			candles:       candles,
			expectedValue: 0,
			expectError:   true,
		},
		{
			name: "Invalid MA type",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            "INVALID",
			},
			candles:       candles,
			expectedValue: 0,
			expectError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma := NewMovingAverage(tt.config)
			value, err := ma.Calculate(context.Background(), tt.candles)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected an error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := value - tt.expectedValue; diff > 0.0001 || diff < -0.0001 {
				t.Errorf("expected %f, got %f", tt.expectedValue, value)
			}
		})
	}
}

func TestMovingAverage_RequiredDataPoints(t *testing.T) {
	ma := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 20},
		Type:            SimpleMovingAverage,
	})
	if got := ma.RequiredDataPoints(); got != 20 {
		t.Errorf("expected 20 required data points, got %d", got)
	}
}
