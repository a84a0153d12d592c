// Package indicator derives technical indicator series from candle history.
//
// All calculations are full-window recomputes over the bounded history rather
// than incremental streaming updates. The window is small (≤100 candles), so
// recomputing wholesale on every new candle keeps the code simple, makes the
// output a pure function of the history, and removes any carried state that
// could drift. NaN marks an undefined value throughout.
package indicator

import (
	"math"

	"alert-systemv1/internal/model"
)

// EMASeries computes an exponential moving average series aligned one-to-one
// with candles. Entries before index period-1 are NaN. The seed at period-1 is
// the simple average of the first period closes; each subsequent value follows
//
//	ema[i] = (close[i] - ema[i-1]) * 2/(period+1) + ema[i-1]
//
// The recurrence runs at full float64 precision; rounding to 2 decimals is
// applied once, after the whole series is computed, so rounding error never
// compounds across steps.
func EMASeries(candles []model.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(candles) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		out[i] = (candles[i].Close-out[i-1])*k + out[i-1]
	}

	// Round at the boundary only.
	for i := period - 1; i < len(out); i++ {
		out[i] = model.Round2(out[i])
	}
	return out
}
