// Package rules combines indicator state, pattern detectors, and cross-candle
// comparisons into typed alert candidates.
//
// Each rule is a conjunction of independent boolean checks over (current
// candle, previous window, current indicators, previous indicators); any
// failing condition suppresses the alert. Rules produce at most one candidate
// per new-candle event, and the engine itself is stateless: target-line
// confirmation bookkeeping is carried by the caller through Input/Outcome.
package rules

import (
	"fmt"

	"github.com/google/uuid"

	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/model"
	"alert-systemv1/internal/pattern"
)

// Config holds the rule lookbacks and thresholds.
type Config struct {
	StrongBodyLookback int     // trailing candles for average body size
	PullbackLookback   int     // trailing candles reserved for pullback context
	VolumeAvgLookback  int     // trailing candles for average volume
	VolumeFactor       float64 // volume must exceed factor × trailing average

	// EarlyPullbackEnabled gates the optional EARLY_PULLBACK rule. It is a
	// pure input consulted at evaluation time; toggling changes no state.
	EarlyPullbackEnabled bool
}

// DefaultConfig returns the standard rule parameters.
func DefaultConfig() Config {
	return Config{
		StrongBodyLookback: 10,
		PullbackLookback:   3,
		VolumeAvgLookback:  10,
		VolumeFactor:       1.2,
	}
}

// minWindow is the window length all multi-candle rules require.
func (c Config) minWindow() int {
	return c.StrongBodyLookback + c.PullbackLookback + c.VolumeAvgLookback
}

// Input carries everything one evaluation needs. Window holds the candles
// strictly before Current, oldest first.
type Input struct {
	Asset   string
	Current model.Candle
	Window  []model.Candle

	Cur  indicator.Snapshot // snapshot at Current
	Prev indicator.Snapshot // snapshot from the previous cycle

	Pivot   model.PivotLevel
	Confirm *TargetConfirmation // prior target-line confirmation, nil if none
}

// Outcome is the result of one evaluation: zero or more alert candidates plus
// the target-confirmation state to carry into the next cycle.
type Outcome struct {
	Alerts  []model.Alert
	Confirm *TargetConfirmation
}

// Engine evaluates all alert rules for one candle event.
type Engine struct {
	cfg Config
}

// NewEngine creates a rule engine with the given config.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate runs every applicable rule and returns the candidates. Dedup is
// the alert log's concern, not the engine's.
func (e *Engine) Evaluate(in Input) Outcome {
	out := Outcome{Confirm: in.Confirm}

	if a := e.buyCall(in); a != nil {
		out.Alerts = append(out.Alerts, *a)
	}
	if a := e.sellPut(in); a != nil {
		out.Alerts = append(out.Alerts, *a)
	}
	if a := e.earlyPullback(in); a != nil {
		out.Alerts = append(out.Alerts, *a)
	}

	targetAlert, confirm := e.targetLine(in)
	if targetAlert != nil {
		out.Alerts = append(out.Alerts, *targetAlert)
	}
	out.Confirm = confirm

	return out
}

// multiCandleReady checks the shared pre-requisites of BUY_CALL and SELL_PUT:
// enough window history, and both snapshots fully defined.
func (e *Engine) multiCandleReady(in Input) bool {
	return len(in.Window) >= e.cfg.minWindow() && in.Cur.Defined() && in.Prev.Defined()
}

func (e *Engine) buyCall(in Input) *model.Alert {
	if !e.multiCandleReady(in) {
		return nil
	}
	c := in.Current
	prev := in.Window[len(in.Window)-1]

	conditions := in.Cur.EMAFast > in.Cur.EMAMedium &&
		in.Cur.EMAMedium > in.Cur.EMASlow &&
		c.Close > in.Cur.EMASlow &&
		pattern.HasBullishPullback(c, in.Window, in.Cur, in.Prev) &&
		pattern.IsStrongBullishCandle(c, in.Window, e.cfg.StrongBodyLookback) &&
		c.Close > prev.High &&
		c.Volume > e.cfg.VolumeFactor*pattern.AverageVolume(in.Window, e.cfg.VolumeAvgLookback)
	if !conditions {
		return nil
	}

	return newAlert(model.AlertBuyCall, in.Asset, c.TS,
		fmt.Sprintf("%s: strong bullish bounce off EMA, close %.2f broke above prior high %.2f on elevated volume",
			in.Asset, model.Round2(c.Close), model.Round2(prev.High)))
}

func (e *Engine) sellPut(in Input) *model.Alert {
	if !e.multiCandleReady(in) {
		return nil
	}
	c := in.Current
	prev := in.Window[len(in.Window)-1]

	conditions := in.Cur.EMAFast < in.Cur.EMAMedium &&
		in.Cur.EMAMedium < in.Cur.EMASlow &&
		c.Close < in.Cur.EMASlow &&
		pattern.HasBearishPullback(c, in.Window, in.Cur, in.Prev) &&
		pattern.IsStrongBearishCandle(c, in.Window, e.cfg.StrongBodyLookback) &&
		c.Close < prev.Low &&
		c.Volume > e.cfg.VolumeFactor*pattern.AverageVolume(in.Window, e.cfg.VolumeAvgLookback)
	if !conditions {
		return nil
	}

	return newAlert(model.AlertSellPut, in.Asset, c.TS,
		fmt.Sprintf("%s: strong bearish rejection off EMA, close %.2f broke below prior low %.2f on elevated volume",
			in.Asset, model.Round2(c.Close), model.Round2(prev.Low)))
}

// earlyPullback fires when the current candle's range straddles the medium
// EMA while a trend is in place. Direction follows the prevailing fast/medium
// relation; a flat stack produces nothing.
func (e *Engine) earlyPullback(in Input) *model.Alert {
	if !e.cfg.EarlyPullbackEnabled {
		return nil
	}
	medium := in.Cur.EMAMedium
	if isNaN(medium) || isNaN(in.Cur.EMAFast) {
		return nil
	}
	if !in.Current.Touches(medium) {
		return nil
	}

	switch {
	case in.Cur.EMAFast > medium:
		return newAlert(model.AlertEarlyPullbackBull, in.Asset, in.Current.TS,
			fmt.Sprintf("%s: price pulled back to EMA-medium %.2f in an uptrend", in.Asset, medium))
	case in.Cur.EMAFast < medium:
		return newAlert(model.AlertEarlyPullbackBear, in.Asset, in.Current.TS,
			fmt.Sprintf("%s: price rallied to EMA-medium %.2f in a downtrend", in.Asset, medium))
	default:
		return nil
	}
}

func newAlert(typ model.AlertType, asset string, ts int64, msg string) *model.Alert {
	return &model.Alert{
		ID:      uuid.NewString(),
		Type:    typ,
		Asset:   asset,
		TS:      ts,
		Message: msg,
	}
}

func isNaN(v float64) bool { return v != v }
