package rules

import (
	"testing"

	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/model"
)

func testConfig() Config {
	return Config{
		StrongBodyLookback: 2,
		PullbackLookback:   1,
		VolumeAvgLookback:  2,
		VolumeFactor:       1.2,
	}
}

// bullishSetup builds a window and snapshots that satisfy every BUY_CALL
// condition for the returned current candle:
//
//	EMA stack:       fast 101.6 > medium 101.2 > slow 100.8 (prev slightly lower)
//	Pullback:        window[4] dips to 100.9..101.9, touching fast EMA 101.6
//	Strong candle:   avg body over trailing 2 = 0.35, current body 1.5 > 0.525
//	Breakout:        close 103 > prior high 101.9
//	Volume:          avg over trailing 2 = 107.5, current 140 > 129
func bullishSetup() Input {
	window := []model.Candle{
		{Asset: "NIFTY", TS: 1000, Open: 100, High: 100.6, Low: 99.9, Close: 100.5, Volume: 100},
		{Asset: "NIFTY", TS: 2000, Open: 100.5, High: 101.1, Low: 100.4, Close: 101, Volume: 100},
		{Asset: "NIFTY", TS: 3000, Open: 101, High: 101.5, Low: 100.9, Close: 101.4, Volume: 100},
		{Asset: "NIFTY", TS: 4000, Open: 101.4, High: 101.9, Low: 101.3, Close: 101.8, Volume: 110},
		{Asset: "NIFTY", TS: 5000, Open: 101.8, High: 101.9, Low: 100.9, Close: 101.5, Volume: 105},
	}
	current := model.Candle{Asset: "NIFTY", TS: 6000, Open: 101.5, High: 103.1, Low: 101.4, Close: 103, Volume: 140}

	return Input{
		Asset:   "NIFTY",
		Current: current,
		Window:  window,
		Cur:     indicator.Snapshot{EMAFast: 101.6, EMAMedium: 101.2, EMASlow: 100.8},
		Prev:    indicator.Snapshot{EMAFast: 101.5, EMAMedium: 101.1, EMASlow: 100.7},
		Pivot:   model.UndefinedPivot(),
	}
}

func alertsOfType(alerts []model.Alert, typ model.AlertType) []model.Alert {
	var out []model.Alert
	for _, a := range alerts {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestBuyCall_FullScenario(t *testing.T) {
	e := NewEngine(testConfig())
	in := bullishSetup()

	out := e.Evaluate(in)

	buys := alertsOfType(out.Alerts, model.AlertBuyCall)
	if len(buys) != 1 {
		t.Fatalf("expected exactly 1 BUY_CALL, got %d (alerts: %+v)", len(buys), out.Alerts)
	}
	if n := len(alertsOfType(out.Alerts, model.AlertSellPut)); n != 0 {
		t.Fatalf("expected 0 SELL_PUT, got %d", n)
	}

	a := buys[0]
	if a.Asset != "NIFTY" || a.TS != 6000 {
		t.Errorf("alert must carry the triggering candle's asset and timestamp, got %s/%d", a.Asset, a.TS)
	}
	if a.ID == "" {
		t.Error("alert must have an id")
	}
}

func TestBuyCall_AnyFailingConditionSuppresses(t *testing.T) {
	e := NewEngine(testConfig())

	mutations := []struct {
		name   string
		mutate func(*Input)
	}{
		{"volume below threshold", func(in *Input) { in.Current.Volume = 120 }}, // 1.2*107.5 = 129
		{"close below prior high", func(in *Input) { in.Current.Close = 101.7; in.Current.High = 101.8 }},
		{"weak body", func(in *Input) { in.Current.Close = 101.9; in.Current.High = 102 }},
		{"ema stack inverted", func(in *Input) { in.Cur.EMAFast = 101.0 }},
		{"close below slow ema", func(in *Input) { in.Cur.EMASlow = 103.5; in.Cur.EMAMedium = 103.6; in.Cur.EMAFast = 103.7 }},
		{"undefined previous snapshot", func(in *Input) { in.Prev = indicator.UndefinedSnapshot() }},
		{"short window", func(in *Input) { in.Window = in.Window[1:] }},
		{"no pullback touch", func(in *Input) {
			in.Window[len(in.Window)-1].Low = 102.5
			in.Window[len(in.Window)-1].High = 102.9
		}},
	}

	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			in := bullishSetup()
			tc.mutate(&in)
			out := e.Evaluate(in)
			if n := len(alertsOfType(out.Alerts, model.AlertBuyCall)); n != 0 {
				t.Errorf("expected BUY_CALL suppressed, got %d", n)
			}
		})
	}
}

// bearishSetup mirrors bullishSetup for SELL_PUT.
func bearishSetup() Input {
	window := []model.Candle{
		{Asset: "NIFTY", TS: 1000, Open: 103, High: 103.1, Low: 102.4, Close: 102.5, Volume: 100},
		{Asset: "NIFTY", TS: 2000, Open: 102.5, High: 102.6, Low: 101.9, Close: 102, Volume: 100},
		{Asset: "NIFTY", TS: 3000, Open: 102, High: 102.1, Low: 101.5, Close: 101.6, Volume: 100},
		{Asset: "NIFTY", TS: 4000, Open: 101.6, High: 101.7, Low: 101.1, Close: 101.2, Volume: 110},
		{Asset: "NIFTY", TS: 5000, Open: 101.2, High: 102.1, Low: 101.1, Close: 101.5, Volume: 105},
	}
	current := model.Candle{Asset: "NIFTY", TS: 6000, Open: 101.5, High: 101.6, Low: 99.9, Close: 100, Volume: 140}

	return Input{
		Asset:   "NIFTY",
		Current: current,
		Window:  window,
		Cur:     indicator.Snapshot{EMAFast: 101.4, EMAMedium: 101.8, EMASlow: 102.2},
		Prev:    indicator.Snapshot{EMAFast: 101.5, EMAMedium: 101.9, EMASlow: 102.3},
		Pivot:   model.UndefinedPivot(),
	}
}

func TestSellPut_MirrorScenario(t *testing.T) {
	e := NewEngine(testConfig())
	out := e.Evaluate(bearishSetup())

	if n := len(alertsOfType(out.Alerts, model.AlertSellPut)); n != 1 {
		t.Fatalf("expected exactly 1 SELL_PUT, got %d (alerts: %+v)", n, out.Alerts)
	}
	if n := len(alertsOfType(out.Alerts, model.AlertBuyCall)); n != 0 {
		t.Fatalf("expected 0 BUY_CALL, got %d", n)
	}
}

func TestEarlyPullback_FlagGated(t *testing.T) {
	in := Input{
		Asset:   "NIFTY",
		Current: model.Candle{TS: 7000, Open: 101.3, High: 101.5, Low: 100.8, Close: 101.4, Volume: 90},
		Cur:     indicator.Snapshot{EMAFast: 101.6, EMAMedium: 101.0, EMASlow: 100.5},
		Prev:    indicator.Snapshot{EMAFast: 101.5, EMAMedium: 100.9, EMASlow: 100.4},
		Pivot:   model.UndefinedPivot(),
	}

	// Disabled: nothing fires, regardless of the pattern.
	off := NewEngine(testConfig())
	if n := len(off.Evaluate(in).Alerts); n != 0 {
		t.Fatalf("flag off: expected 0 alerts, got %d", n)
	}

	// Enabled: uptrend (fast > medium), range straddles medium.
	cfg := testConfig()
	cfg.EarlyPullbackEnabled = true
	on := NewEngine(cfg)
	out := on.Evaluate(in)
	if n := len(alertsOfType(out.Alerts, model.AlertEarlyPullbackBull)); n != 1 {
		t.Fatalf("expected 1 bullish early pullback, got %d", n)
	}

	// Downtrend variant.
	in.Cur.EMAFast = 100.4
	out = on.Evaluate(in)
	if n := len(alertsOfType(out.Alerts, model.AlertEarlyPullbackBear)); n != 1 {
		t.Fatalf("expected 1 bearish early pullback, got %d", n)
	}

	// Range off the medium EMA: no touch, no alert.
	in.Current.Low = 101.2
	in.Current.High = 101.5
	if n := len(on.Evaluate(in).Alerts); n != 0 {
		t.Fatalf("no touch: expected 0 alerts, got %d", n)
	}
}
