package model

import (
	"encoding/json"
	"math"
)

// Round2 rounds v to 2 decimal places for display-grade output.
// NaN passes through unchanged.
func Round2(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*100) / 100
}

// SupportResistance holds the trailing-window price boundaries.
// NaN means undefined (empty history).
type SupportResistance struct {
	Support    float64
	Resistance float64
}

// Defined reports whether both boundaries are set.
func (sr SupportResistance) Defined() bool {
	return !math.IsNaN(sr.Support) && !math.IsNaN(sr.Resistance)
}

// MarshalJSON emits null for undefined values so NaN never leaks into JSON.
func (sr SupportResistance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Support    *float64 `json:"support"`
		Resistance *float64 `json:"resistance"`
	}{fptr(sr.Support), fptr(sr.Resistance)})
}

// UnmarshalJSON maps null back to NaN, inverse of MarshalJSON.
func (sr *SupportResistance) UnmarshalJSON(b []byte) error {
	var raw struct {
		Support    *float64 `json:"support"`
		Resistance *float64 `json:"resistance"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	sr.Support = fval(raw.Support)
	sr.Resistance = fval(raw.Resistance)
	return nil
}

// UndefinedSupportResistance returns an all-NaN pair.
func UndefinedSupportResistance() SupportResistance {
	nan := math.NaN()
	return SupportResistance{Support: nan, Resistance: nan}
}

// PivotLevel is the periodically recomputed target line for an asset.
// NaN means undefined (no history yet).
type PivotLevel struct {
	Pivot float64
	R1    float64
	S1    float64
}

// Defined reports whether the pivot has been computed.
func (p PivotLevel) Defined() bool { return !math.IsNaN(p.Pivot) }

// UndefinedPivot returns an all-NaN pivot level.
func UndefinedPivot() PivotLevel {
	nan := math.NaN()
	return PivotLevel{Pivot: nan, R1: nan, S1: nan}
}

// MarshalJSON emits null for undefined values.
func (p PivotLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pivot *float64 `json:"pivot"`
		R1    *float64 `json:"r1"`
		S1    *float64 `json:"s1"`
	}{fptr(p.Pivot), fptr(p.R1), fptr(p.S1)})
}

// UnmarshalJSON maps null back to NaN, inverse of MarshalJSON.
func (p *PivotLevel) UnmarshalJSON(b []byte) error {
	var raw struct {
		Pivot *float64 `json:"pivot"`
		R1    *float64 `json:"r1"`
		S1    *float64 `json:"s1"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Pivot = fval(raw.Pivot)
	p.R1 = fval(raw.R1)
	p.S1 = fval(raw.S1)
	return nil
}

func fptr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func fval(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
