// Package pivot recomputes the classic pivot point ("target line") per asset
// on a fixed wall-clock interval, independent of candle arrival.
package pivot

import (
	"context"
	"log"
	"time"

	"alert-systemv1/internal/model"
)

// Source is the read side the ticker needs from the asset monitor. Reads must
// be snapshot-consistent: the monitor hands out the latest candle under its
// per-asset lock and accepts the recomputed level the same way.
type Source interface {
	Assets() []string
	LatestCandle(asset string) (model.Candle, bool)
	SetPivot(asset string, lvl model.PivotLevel)
}

// Compute derives the pivot level from one candle:
//
//	pivot = (high + low + close) / 3
//	r1    = 2*pivot - low
//	s1    = 2*pivot - high
//
// all rounded to 2 decimals.
func Compute(c model.Candle) model.PivotLevel {
	p := model.Round2((c.High + c.Low + c.Close) / 3)
	return model.PivotLevel{
		Pivot: p,
		R1:    model.Round2(2*p - c.Low),
		S1:    model.Round2(2*p - c.High),
	}
}

// Ticker drives periodic pivot recomputation across all monitored assets.
type Ticker struct {
	src      Source
	interval time.Duration

	// OnRecompute, if set, is called after each tick with the number of
	// assets whose level was refreshed. Used for metrics.
	OnRecompute func(n int)
}

// NewTicker creates a Ticker reading from src every interval.
func NewTicker(src Source, interval time.Duration) *Ticker {
	return &Ticker{src: src, interval: interval}
}

// Run blocks until ctx is cancelled, recomputing every interval. Assets with
// an empty history keep an undefined level and are skipped.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log.Printf("[pivot] target line recompute every %s", t.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := t.recomputeAll()
			if t.OnRecompute != nil {
				t.OnRecompute(n)
			}
		}
	}
}

func (t *Ticker) recomputeAll() int {
	n := 0
	for _, asset := range t.src.Assets() {
		c, ok := t.src.LatestCandle(asset)
		if !ok {
			continue // no history yet, level stays undefined
		}
		t.src.SetPivot(asset, Compute(c))
		n++
	}
	return n
}
