package signals

import "gold-signal-bot/internal/types"

// Indicator weights. RSI contributes at most 30, MACD and EMA at most 35.
const (
	rsiExtremeWeight  = 30
	rsiMomentumWeight = 15
	macdWeight        = 35
	emaCrossWeight    = 35
	emaTrendWeight    = 15
)

// Score tallies bullish and bearish evidence from the indicator set and
// returns human-readable reasons in indicator order.
func Score(ind types.IndicatorSet) (bull, bear int, reasons []string) {
	switch {
	case ind.RSI.Oversold:
		bull += rsiExtremeWeight
		reasons = append(reasons, "RSI oversold (<=30)")
	case ind.RSI.Overbought:
		bear += rsiExtremeWeight
		reasons = append(reasons, "RSI overbought (>=70)")
	case ind.RSI.Value < 45:
		bull += rsiMomentumWeight
		reasons = append(reasons, "RSI showing bullish momentum")
	case ind.RSI.Value > 55:
		bear += rsiMomentumWeight
		reasons = append(reasons, "RSI showing bearish momentum")
	}

	switch {
	case ind.MACD.Bullish && ind.MACD.Histogram > 0:
		bull += macdWeight
		reasons = append(reasons, "MACD histogram positive")
	case !ind.MACD.Bullish && ind.MACD.Histogram < 0:
		bear += macdWeight
		reasons = append(reasons, "MACD histogram negative")
	}

	switch {
	case ind.EMA.Crossover == types.CrossBullish:
		bull += emaCrossWeight
		reasons = append(reasons, "EMA bullish crossover (9 > 21)")
	case ind.EMA.Crossover == types.CrossBearish:
		bear += emaCrossWeight
		reasons = append(reasons, "EMA bearish crossover (9 < 21)")
	case ind.EMA.Fast > ind.EMA.Slow:
		bull += emaTrendWeight
		reasons = append(reasons, "Fast EMA above slow EMA")
	default:
		bear += emaTrendWeight
		reasons = append(reasons, "Fast EMA below slow EMA")
	}
	return bull, bear, reasons
}

// Decide converts scores into a direction and confidence. ok is false when
// confidence is below minConfidence.
func Decide(bull, bear, minConfidence int) (dir types.Direction, confidence int, ok bool) {
	confidence = bull - bear
	if confidence < 0 {
		confidence = -confidence
	}
	if confidence > 100 {
		confidence = 100
	}
	if confidence < minConfidence {
		return "", confidence, false
	}
	if bull > bear {
		return types.Buy, confidence, true
	}
	return types.Sell, confidence, true
}
