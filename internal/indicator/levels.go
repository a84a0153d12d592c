package indicator

import (
	"alert-systemv1/internal/model"
)

// ComputeSupportResistance derives the naive horizontal boundaries over the
// trailing lookback candles (or fewer if history is shorter): support is the
// minimum low, resistance the maximum high, rounded to 2 decimals.
// Both are NaN only when the history is empty.
func ComputeSupportResistance(candles []model.Candle, lookback int) model.SupportResistance {
	if len(candles) == 0 || lookback <= 0 {
		return model.UndefinedSupportResistance()
	}

	start := len(candles) - lookback
	if start < 0 {
		start = 0
	}

	support := candles[start].Low
	resistance := candles[start].High
	for _, c := range candles[start+1:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return model.SupportResistance{
		Support:    model.Round2(support),
		Resistance: model.Round2(resistance),
	}
}
