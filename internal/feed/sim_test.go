package feed

import (
	"context"
	"testing"
	"time"

	"alert-systemv1/internal/model"
)

func TestSim_InitialHistory(t *testing.T) {
	s := NewSim(SimConfig{Assets: []string{"NIFTY"}, Interval: time.Minute, Start: 500, Seed: 42})

	hist, err := s.InitialHistory(context.Background(), "NIFTY", 50)
	if err != nil {
		t.Fatalf("initial history: %v", err)
	}
	if len(hist) != 50 {
		t.Fatalf("expected 50 candles, got %d", len(hist))
	}
	for i, c := range hist {
		if c.Asset != "NIFTY" {
			t.Fatalf("candle %d has asset %q", i, c.Asset)
		}
		if c.High < c.Low || c.High < c.Close || c.Low > c.Open {
			t.Fatalf("candle %d has inconsistent OHLC: %+v", i, c)
		}
		if i == 0 {
			continue
		}
		if c.TS <= hist[i-1].TS {
			t.Fatalf("timestamps must be strictly increasing at %d: %d then %d", i, hist[i-1].TS, c.TS)
		}
		if c.Open != hist[i-1].Close {
			t.Fatalf("candle %d must open at the previous close: open=%v prev close=%v", i, c.Open, hist[i-1].Close)
		}
	}
}

func TestSim_SubscribeContinuesWalk(t *testing.T) {
	s := NewSim(SimConfig{Assets: []string{"NIFTY"}, Interval: 5 * time.Millisecond, Seed: 7})

	hist, err := s.InitialHistory(context.Background(), "NIFTY", 5)
	if err != nil {
		t.Fatalf("initial history: %v", err)
	}
	lastTS := hist[len(hist)-1].TS

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan model.Candle, 16)
	done := make(chan struct{})
	go func() {
		s.Subscribe(ctx, out)
		close(done)
	}()

	select {
	case c := <-out:
		if c.TS <= lastTS {
			t.Errorf("live candle ts %d must follow seeded history ts %d", c.TS, lastTS)
		}
	case <-time.After(time.Second):
		t.Fatal("no candle emitted")
	}
	cancel()
	<-done
}
