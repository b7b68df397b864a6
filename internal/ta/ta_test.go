package ta

import (
	"math"
	"testing"

	"gold-signal-bot/internal/types"
)

func candlesFromCloses(closes ...float64) []types.Candle {
	cs := make([]types.Candle, len(closes))
	for i, c := range closes {
		cs[i] = types.Candle{Ts: int64(i * 3600), Open: c, High: c, Low: c, Close: c}
	}
	return cs
}

func linear(n int, start, step float64) []types.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return candlesFromCloses(closes...)
}

func TestEMA(t *testing.T) {
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	// seed = avg(1,2,3) = 2, k = 0.5 -> 3, 4
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("EMA[%d]: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestEMAShortSeries(t *testing.T) {
	got := EMA([]float64{4, 6}, 10)
	if len(got) != 1 || got[0] != 5 {
		t.Errorf("Expected [5] for short series, got %v", got)
	}
	if EMA(nil, 3) != nil {
		t.Error("Expected nil for empty input")
	}
	if EMA([]float64{1, 2}, 0) != nil {
		t.Error("Expected nil for zero period")
	}
}

func TestRSIDegenerate(t *testing.T) {
	tests := []struct {
		name    string
		candles []types.Candle
		period  int
	}{
		{"empty", nil, 14},
		{"exactly period", linear(14, 100, 1), 14},
		{"zero period", linear(30, 100, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.candles, tt.period)
			want := types.RSIResult{Value: 50, Overbought: false, Oversold: false}
			if got != want {
				t.Errorf("Expected %+v, got %+v", want, got)
			}
		})
	}
}

func TestRSITrend(t *testing.T) {
	up := RSI(linear(30, 100, 1), 14)
	if !up.Overbought || up.Oversold {
		t.Errorf("Expected overbought on steady rise, got %+v", up)
	}
	if up.Value < 70 {
		t.Errorf("Expected RSI >= 70, got %f", up.Value)
	}

	down := RSI(linear(30, 200, -1), 14)
	if !down.Oversold || down.Overbought {
		t.Errorf("Expected oversold on steady fall, got %+v", down)
	}
	if down.Value != 0 {
		t.Errorf("Expected RSI 0 with no gains, got %f", down.Value)
	}
}

func TestRSIAlternating(t *testing.T) {
	closes := make([]float64, 31)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 101
		}
	}
	got := RSI(candlesFromCloses(closes...), 14)
	if got.Value < 40 || got.Value > 60 {
		t.Errorf("Expected RSI near 50 for alternating series, got %f", got.Value)
	}
	if got.Overbought || got.Oversold {
		t.Errorf("Expected no extremes, got %+v", got)
	}
}

func TestMACDDegenerate(t *testing.T) {
	got := MACD(linear(25, 100, 1), 12, 26, 9)
	if got != (types.MACDResult{}) {
		t.Errorf("Expected zero MACD for short input, got %+v", got)
	}
	if got.Bullish {
		t.Error("Expected bullish=false for short input")
	}
}

func TestMACDDirection(t *testing.T) {
	// flat then rising: fast EMA pulls away from slow, histogram positive
	closes := make([]float64, 0, 60)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100)
	}
	for i := 1; i <= 20; i++ {
		closes = append(closes, 100+float64(i)*float64(i)*0.1)
	}
	got := MACD(candlesFromCloses(closes...), 12, 26, 9)
	if got.MACD <= 0 {
		t.Errorf("Expected positive MACD line, got %f", got.MACD)
	}
	if !got.Bullish || got.Histogram <= 0 {
		t.Errorf("Expected bullish histogram, got %+v", got)
	}
	if math.Abs(got.Histogram-(got.MACD-got.Signal)) > 1e-3 {
		t.Errorf("Expected histogram = macd - signal, got %+v", got)
	}
}

func TestEMACrossover(t *testing.T) {
	t.Run("insufficient", func(t *testing.T) {
		got := EMACrossover(linear(22, 100, 1), 9, 21)
		want := types.EMAResult{Fast: 0, Slow: 0, Crossover: types.CrossNone}
		if got != want {
			t.Errorf("Expected %+v, got %+v", want, got)
		}
	})

	t.Run("bullish", func(t *testing.T) {
		closes := make([]float64, 0, 40)
		for i := 0; i < 39; i++ {
			closes = append(closes, 100-float64(i)*0.1)
		}
		closes = append(closes, 120)
		got := EMACrossover(candlesFromCloses(closes...), 9, 21)
		if got.Crossover != types.CrossBullish {
			t.Errorf("Expected BULLISH, got %+v", got)
		}
		if got.Fast <= got.Slow {
			t.Errorf("Expected fast > slow after bullish cross, got %+v", got)
		}
	})

	t.Run("bearish", func(t *testing.T) {
		closes := make([]float64, 0, 40)
		for i := 0; i < 39; i++ {
			closes = append(closes, 100+float64(i)*0.1)
		}
		closes = append(closes, 80)
		got := EMACrossover(candlesFromCloses(closes...), 9, 21)
		if got.Crossover != types.CrossBearish {
			t.Errorf("Expected BEARISH, got %+v", got)
		}
	})

	t.Run("trend without cross", func(t *testing.T) {
		got := EMACrossover(linear(40, 100, 1), 9, 21)
		if got.Crossover != types.CrossNone {
			t.Errorf("Expected NONE on established trend, got %+v", got)
		}
		if got.Fast <= got.Slow {
			t.Errorf("Expected fast above slow in uptrend, got %+v", got)
		}
	})
}
