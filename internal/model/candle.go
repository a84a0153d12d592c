package model

import (
	"encoding/json"
	"math"
)

// Candle represents one OHLCV bar for a single asset.
// TS is the bar timestamp in epoch milliseconds; prices are display-grade
// float64 values (IEEE-754 double, rounded to 2 decimals at output boundaries).
type Candle struct {
	Asset  string  `json:"asset"`
	TS     int64   `json:"ts"` // epoch ms
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool { return c.Close < c.Open }

// Body returns the absolute size of the candle body |close-open|.
func (c Candle) Body() float64 { return math.Abs(c.Close - c.Open) }

// Touches reports whether level falls inside the candle's [low, high] range.
// A NaN level never touches.
func (c Candle) Touches(level float64) bool {
	if math.IsNaN(level) {
		return false
	}
	return c.Low <= level && level <= c.High
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
