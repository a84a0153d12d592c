// Package pattern provides stateless candle-pattern predicates used by the
// alert rule engine. Every function is pure: it reads the current candle, a
// window of preceding candles, and indicator snapshots, and stores nothing.
package pattern

import (
	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/model"
)

// strongBodyFactor is the multiple of the average body size a candle must
// exceed to count as "strong".
const strongBodyFactor = 1.5

// AverageBodySize returns the arithmetic mean of |close-open| over the
// trailing lookback candles. Returns 0 if the window is shorter than lookback.
func AverageBodySize(candles []model.Candle, lookback int) float64 {
	if lookback <= 0 || len(candles) < lookback {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-lookback:] {
		sum += c.Body()
	}
	return sum / float64(lookback)
}

// AverageVolume returns the arithmetic mean of volume over the trailing
// lookback candles. Returns 0 if the window is shorter than lookback.
func AverageVolume(candles []model.Candle, lookback int) float64 {
	if lookback <= 0 || len(candles) < lookback {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-lookback:] {
		sum += c.Volume
	}
	return sum / float64(lookback)
}

// IsStrongBullishCandle reports whether current is bullish with a body larger
// than strongBodyFactor times the trailing average body size of window.
// An average of 0 (insufficient window) never qualifies.
func IsStrongBullishCandle(current model.Candle, window []model.Candle, lookback int) bool {
	avg := AverageBodySize(window, lookback)
	return current.Bullish() && avg > 0 && current.Body() > strongBodyFactor*avg
}

// IsStrongBearishCandle is the bearish mirror of IsStrongBullishCandle.
func IsStrongBearishCandle(current model.Candle, window []model.Candle, lookback int) bool {
	avg := AverageBodySize(window, lookback)
	return current.Bearish() && avg > 0 && current.Body() > strongBodyFactor*avg
}

// HasBullishPullback reports a pullback-and-bounce: the immediately preceding
// candle's [low,high] range touched the fast or medium EMA (at either the
// current or previous snapshot), and the current candle closed above the
// preceding close. Requires fast and medium defined in both snapshots.
func HasBullishPullback(current model.Candle, window []model.Candle, cur, prev indicator.Snapshot) bool {
	prevCandle, ok := pullbackTouch(window, cur, prev)
	if !ok {
		return false
	}
	return current.Close > prevCandle.Close
}

// HasBearishPullback is the mirror: EMA touch on the preceding candle followed
// by a close below the preceding close.
func HasBearishPullback(current model.Candle, window []model.Candle, cur, prev indicator.Snapshot) bool {
	prevCandle, ok := pullbackTouch(window, cur, prev)
	if !ok {
		return false
	}
	return current.Close < prevCandle.Close
}

// pullbackTouch returns the preceding candle and whether it touched any of the
// four fast/medium EMA values.
func pullbackTouch(window []model.Candle, cur, prev indicator.Snapshot) (model.Candle, bool) {
	if len(window) == 0 {
		return model.Candle{}, false
	}
	if !emaPairDefined(cur) || !emaPairDefined(prev) {
		return model.Candle{}, false
	}
	pc := window[len(window)-1]
	touched := pc.Touches(cur.EMAFast) || pc.Touches(cur.EMAMedium) ||
		pc.Touches(prev.EMAFast) || pc.Touches(prev.EMAMedium)
	return pc, touched
}

func emaPairDefined(s indicator.Snapshot) bool {
	// Only fast and medium participate in pullback detection.
	return !isNaN(s.EMAFast) && !isNaN(s.EMAMedium)
}

func isNaN(v float64) bool { return v != v }
