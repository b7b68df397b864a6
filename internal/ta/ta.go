package ta

import (
	"math"

	"gold-signal-bot/internal/types"
)

const (
	DefaultRSIPeriod  = 14
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
	DefaultEMAFast    = 9
	DefaultEMASlow    = 21
)

// EMA seeds with the simple average of the first min(period, len) points,
// then applies the 2/(period+1) recurrence from index period onward.
// out[0] corresponds to input index period-1.
func EMA(series []float64, period int) []float64 {
	if len(series) == 0 || period <= 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	n := period
	if len(series) < n {
		n = len(series)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += series[i]
	}
	out := make([]float64, 0, len(series)-n+1)
	out = append(out, sum/float64(n))
	for i := period; i < len(series); i++ {
		prev := out[len(out)-1]
		out = append(out, (series[i]-prev)*k+prev)
	}
	return out
}

// RSI uses Wilder smoothing. Short input yields the neutral {50,false,false}.
func RSI(candles []types.Candle, period int) types.RSIResult {
	neutral := types.RSIResult{Value: 50}
	if period <= 0 || len(candles) < period+1 {
		return neutral
	}
	cl := types.Closes(candles)
	gains := make([]float64, 0, len(cl)-1)
	losses := make([]float64, 0, len(cl)-1)
	for i := 1; i < len(cl); i++ {
		d := cl[i] - cl[i-1]
		if d > 0 {
			gains = append(gains, d)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -d)
		}
	}
	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	// no losses at all: cap RS at 100
	rs := 100.0
	if avgLoss != 0 {
		rs = avgGain / avgLoss
	}
	rsi := 100.0 - 100.0/(1.0+rs)
	return types.RSIResult{
		Value:      round(rsi, 2),
		Overbought: rsi >= 70,
		Oversold:   rsi <= 30,
	}
}

// MACD returns zeros when len(candles) < slow.
func MACD(candles []types.Candle, fast, slow, signal int) types.MACDResult {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast > slow || len(candles) < slow {
		return types.MACDResult{}
	}
	cl := types.Closes(candles)
	fastEMA := EMA(cl, fast)
	slowEMA := EMA(cl, slow)

	// both series end at the last close; align on the slow one
	offset := len(fastEMA) - len(slowEMA)
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}
	sig := EMA(line, signal)

	m := line[len(line)-1]
	s := sig[len(sig)-1]
	h := m - s
	return types.MACDResult{
		MACD:      round(m, 4),
		Signal:    round(s, 4),
		Histogram: round(h, 4),
		Bullish:   h > 0,
	}
}

// EMACrossover compares the last two aligned points of the fast and slow EMA.
func EMACrossover(candles []types.Candle, fast, slow int) types.EMAResult {
	none := types.EMAResult{Crossover: types.CrossNone}
	if fast <= 0 || slow <= 0 || fast > slow || len(candles) < slow+2 {
		return none
	}
	cl := types.Closes(candles)
	f := EMA(cl, fast)
	s := EMA(cl, slow)

	curF, curS := f[len(f)-1], s[len(s)-1]
	prevF, prevS := f[len(f)-2], s[len(s)-2]

	cross := types.CrossNone
	switch {
	case prevF <= prevS && curF > curS:
		cross = types.CrossBullish
	case prevF >= prevS && curF < curS:
		cross = types.CrossBearish
	}
	return types.EMAResult{
		Fast:      round(curF, 2),
		Slow:      round(curS, 2),
		Crossover: cross,
	}
}

// Analyze runs every indicator with default periods.
func Analyze(candles []types.Candle) types.IndicatorSet {
	return types.IndicatorSet{
		RSI:  RSI(candles, DefaultRSIPeriod),
		MACD: MACD(candles, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal),
		EMA:  EMACrossover(candles, DefaultEMAFast, DefaultEMASlow),
	}
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
