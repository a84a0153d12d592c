package pivot

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"alert-systemv1/internal/model"
)

func TestCompute_Fixture(t *testing.T) {
	lvl := Compute(model.Candle{High: 110, Low: 90, Close: 100})
	if lvl.Pivot != 100.00 {
		t.Fatalf("expected pivot=100.00, got %v", lvl.Pivot)
	}
	if lvl.R1 != 110 {
		t.Errorf("expected r1=110 (2*100-90), got %v", lvl.R1)
	}
	if lvl.S1 != 90 {
		t.Errorf("expected s1=90 (2*100-110), got %v", lvl.S1)
	}
}

func TestCompute_Rounding(t *testing.T) {
	// (10 + 10 + 11) / 3 = 10.333... → 10.33
	lvl := Compute(model.Candle{High: 11, Low: 10, Close: 10})
	if math.Abs(lvl.Pivot-10.33) > 0.0001 {
		t.Errorf("expected pivot=10.33, got %v", lvl.Pivot)
	}
}

// stubSource is a minimal in-memory Source for ticker tests.
type stubSource struct {
	mu     sync.Mutex
	latest map[string]model.Candle
	levels map[string]model.PivotLevel
}

func (s *stubSource) Assets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.latest))
	for a := range s.latest {
		out = append(out, a)
	}
	return out
}

func (s *stubSource) LatestCandle(asset string) (model.Candle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.latest[asset]
	if ok && c.TS == 0 {
		return model.Candle{}, false // simulates empty history
	}
	return c, ok
}

func (s *stubSource) SetPivot(asset string, lvl model.PivotLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[asset] = lvl
}

func TestTicker_RecomputesOnInterval(t *testing.T) {
	src := &stubSource{
		latest: map[string]model.Candle{
			"NIFTY": {TS: 1000, High: 110, Low: 90, Close: 100},
			"EMPTY": {TS: 0}, // no history: must stay untouched
		},
		levels: make(map[string]model.PivotLevel),
	}

	tk := NewTicker(src, 5*time.Millisecond)
	ticks := make(chan int, 64)
	tk.OnRecompute = func(n int) { ticks <- n }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	select {
	case n := <-ticks:
		if n != 1 {
			t.Errorf("expected 1 asset recomputed per tick, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
	cancel()
	<-done

	src.mu.Lock()
	defer src.mu.Unlock()
	if lvl, ok := src.levels["NIFTY"]; !ok || lvl.Pivot != 100.00 {
		t.Errorf("expected NIFTY pivot=100.00, got %+v", lvl)
	}
	if _, ok := src.levels["EMPTY"]; ok {
		t.Error("asset with empty history must keep an undefined level")
	}
}
