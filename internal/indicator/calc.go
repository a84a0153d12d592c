package indicator

import (
	"encoding/json"
	"math"

	"alert-systemv1/internal/model"
)

// Config holds the EMA periods and the support/resistance lookback.
type Config struct {
	FastPeriod   int
	MediumPeriod int
	SlowPeriod   int
	SRLookback   int
}

// DefaultConfig returns the standard 10/20/50 EMA stack with a 15-candle
// support/resistance lookback.
func DefaultConfig() Config {
	return Config{FastPeriod: 10, MediumPeriod: 20, SlowPeriod: 50, SRLookback: 15}
}

// Snapshot holds the three EMA values at one candle index. NaN = undefined.
type Snapshot struct {
	EMAFast   float64
	EMAMedium float64
	EMASlow   float64
}

// Defined reports whether all three EMAs are available.
func (s Snapshot) Defined() bool {
	return !math.IsNaN(s.EMAFast) && !math.IsNaN(s.EMAMedium) && !math.IsNaN(s.EMASlow)
}

// MarshalJSON emits null for undefined EMAs so NaN never reaches the wire.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EMAFast   *float64 `json:"ema_fast"`
		EMAMedium *float64 `json:"ema_medium"`
		EMASlow   *float64 `json:"ema_slow"`
	}{nullable(s.EMAFast), nullable(s.EMAMedium), nullable(s.EMASlow)})
}

// UnmarshalJSON maps null back to NaN, inverse of MarshalJSON.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var raw struct {
		EMAFast   *float64 `json:"ema_fast"`
		EMAMedium *float64 `json:"ema_medium"`
		EMASlow   *float64 `json:"ema_slow"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.EMAFast = deref(raw.EMAFast)
	s.EMAMedium = deref(raw.EMAMedium)
	s.EMASlow = deref(raw.EMASlow)
	return nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// UndefinedSnapshot returns an all-NaN snapshot.
func UndefinedSnapshot() Snapshot {
	nan := math.NaN()
	return Snapshot{EMAFast: nan, EMAMedium: nan, EMASlow: nan}
}

// Result is the output of one full recompute over a candle history.
type Result struct {
	Snapshots []Snapshot // index-aligned with the input candles
	Levels    model.SupportResistance
}

// Latest returns the snapshot for the newest candle, or an undefined snapshot
// when the history is empty.
func (r Result) Latest() Snapshot {
	if len(r.Snapshots) == 0 {
		return UndefinedSnapshot()
	}
	return r.Snapshots[len(r.Snapshots)-1]
}

// ComputeAll runs the three EMA series plus support/resistance over the
// current history. It is the sole entry point the monitor calls after every
// candle append. Deterministic: identical history yields identical output.
func ComputeAll(candles []model.Candle, cfg Config) Result {
	fast := EMASeries(candles, cfg.FastPeriod)
	medium := EMASeries(candles, cfg.MediumPeriod)
	slow := EMASeries(candles, cfg.SlowPeriod)

	snaps := make([]Snapshot, len(candles))
	for i := range candles {
		snaps[i] = Snapshot{EMAFast: fast[i], EMAMedium: medium[i], EMASlow: slow[i]}
	}
	return Result{
		Snapshots: snaps,
		Levels:    ComputeSupportResistance(candles, cfg.SRLookback),
	}
}
