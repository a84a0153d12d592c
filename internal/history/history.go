// Package history provides the bounded per-asset candle history store.
// Appends are strictly time-ordered; when the buffer exceeds its capacity
// the oldest candles are evicted FIFO via slice-trim (O(1) amortized).
package history

import (
	"fmt"

	"alert-systemv1/internal/model"
)

// OrderingError reports a candle whose timestamp is not strictly greater
// than the last stored timestamp. The event must be dropped or re-sequenced
// by the caller; it is never silently accepted.
type OrderingError struct {
	Last int64 // last stored timestamp (ms)
	Got  int64 // rejected timestamp (ms)
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("history: out-of-order candle: ts %d <= last %d", e.Got, e.Last)
}

// Buffer is a bounded, append-only candle sequence for one asset.
// Not safe for concurrent use; callers serialize access per asset.
type Buffer struct {
	limit   int
	candles []model.Candle
}

// New creates a Buffer holding at most limit candles. Minimum limit is 1.
func New(limit int) *Buffer {
	if limit < 1 {
		limit = 1
	}
	return &Buffer{
		limit:   limit,
		candles: make([]model.Candle, 0, limit+1),
	}
}

// Append adds a candle and trims to the most recent limit entries.
// Returns an *OrderingError if c.TS <= the last stored timestamp.
func (b *Buffer) Append(c model.Candle) error {
	if n := len(b.candles); n > 0 && c.TS <= b.candles[n-1].TS {
		return &OrderingError{Last: b.candles[n-1].TS, Got: c.TS}
	}
	b.candles = append(b.candles, c)
	if len(b.candles) > b.limit {
		// Shift-trim keeps the backing array bounded instead of re-slicing,
		// so a long-lived buffer never pins evicted candles.
		copy(b.candles, b.candles[len(b.candles)-b.limit:])
		b.candles = b.candles[:b.limit]
	}
	return nil
}

// Candles returns the stored candles, oldest first. The returned slice is
// owned by the buffer; callers must not mutate or retain it across appends.
func (b *Buffer) Candles() []model.Candle {
	return b.candles
}

// Snapshot returns an independent copy of the stored candles.
func (b *Buffer) Snapshot() []model.Candle {
	out := make([]model.Candle, len(b.candles))
	copy(out, b.candles)
	return out
}

// Last returns the most recent candle, if any.
func (b *Buffer) Last() (model.Candle, bool) {
	if len(b.candles) == 0 {
		return model.Candle{}, false
	}
	return b.candles[len(b.candles)-1], true
}

// Len returns the number of stored candles.
func (b *Buffer) Len() int { return len(b.candles) }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return b.limit }
