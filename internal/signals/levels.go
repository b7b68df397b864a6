package signals

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/types"
)

// ErrInvalidLevels is returned when rounding collapses two levels onto each
// other, which happens with a stop distance below the price precision.
var ErrInvalidLevels = errors.New("price levels not strictly ordered")

var tierFactors = []decimal.Decimal{
	decimal.NewFromFloat(0.5),
	decimal.NewFromInt(1),
	decimal.NewFromFloat(1.5),
}

type Levels struct {
	Entry       float64
	StopLoss    float64
	TakeProfits [3]float64
}

// ComputeLevels derives stop-loss and three take-profit tiers from entry.
// The stop distance is StopLossPips*PipSize; tiers sit at 0.5x, 1x and
// 1.5x of stop distance times riskReward. Arithmetic is decimal and every
// level is rounded to the instrument's price precision.
func ComputeLevels(entry float64, dir types.Direction, in store.Instrument, riskReward float64) (Levels, error) {
	places := in.PriceDecimals
	e := decimal.NewFromFloat(entry).Round(places)
	slDist := decimal.NewFromFloat(in.StopLossPips).Mul(decimal.NewFromFloat(in.PipSize))
	tpDist := slDist.Mul(decimal.NewFromFloat(riskReward))

	sign := decimal.NewFromInt(1)
	if dir == types.Sell {
		sign = sign.Neg()
	}

	lv := Levels{
		Entry:    e.InexactFloat64(),
		StopLoss: e.Sub(slDist.Mul(sign)).Round(places).InexactFloat64(),
	}
	for i, f := range tierFactors {
		lv.TakeProfits[i] = e.Add(tpDist.Mul(f).Mul(sign)).Round(places).InexactFloat64()
	}

	if err := lv.validate(dir); err != nil {
		return Levels{}, err
	}
	return lv, nil
}

func (lv Levels) validate(dir types.Direction) error {
	ordered := []float64{lv.StopLoss, lv.Entry, lv.TakeProfits[0], lv.TakeProfits[1], lv.TakeProfits[2]}
	for i := 1; i < len(ordered); i++ {
		up := ordered[i] > ordered[i-1]
		if (dir == types.Buy && !up) || (dir == types.Sell && (up || ordered[i] == ordered[i-1])) {
			return fmt.Errorf("%w: %s %v", ErrInvalidLevels, dir, ordered)
		}
	}
	return nil
}
