package history

import (
	"errors"
	"testing"

	"alert-systemv1/internal/model"
)

func candleAt(ts int64) model.Candle {
	return model.Candle{Asset: "BTCUSDT", TS: ts, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10}
}

func TestBuffer_AppendAndLen(t *testing.T) {
	b := New(10)
	for i := int64(1); i <= 5; i++ {
		if err := b.Append(candleAt(i * 1000)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if b.Len() != 5 {
		t.Fatalf("expected len=5, got %d", b.Len())
	}
	last, ok := b.Last()
	if !ok || last.TS != 5000 {
		t.Fatalf("expected last ts=5000, got %v ok=%v", last.TS, ok)
	}
}

func TestBuffer_EvictsOldestAtCapacity(t *testing.T) {
	const limit = 100
	b := New(limit)
	for i := int64(0); i < limit+1; i++ {
		if err := b.Append(candleAt(i + 1)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if b.Len() != limit {
		t.Fatalf("expected len=%d after overflow, got %d", limit, b.Len())
	}
	// Oldest (ts=1) must be gone; ts=2 is now the head.
	if got := b.Candles()[0].TS; got != 2 {
		t.Errorf("expected oldest ts=2 after eviction, got %d", got)
	}
	if got := b.Candles()[limit-1].TS; got != limit+1 {
		t.Errorf("expected newest ts=%d, got %d", limit+1, got)
	}
}

func TestBuffer_RejectsOutOfOrder(t *testing.T) {
	b := New(10)
	if err := b.Append(candleAt(2000)); err != nil {
		t.Fatalf("append: %v", err)
	}

	cases := []struct {
		name string
		ts   int64
	}{
		{"equal timestamp", 2000},
		{"earlier timestamp", 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := b.Append(candleAt(tc.ts))
			if err == nil {
				t.Fatal("expected OrderingError, got nil")
			}
			var oe *OrderingError
			if !errors.As(err, &oe) {
				t.Fatalf("expected *OrderingError, got %T", err)
			}
			if oe.Last != 2000 || oe.Got != tc.ts {
				t.Errorf("unexpected error fields: last=%d got=%d", oe.Last, oe.Got)
			}
		})
	}

	// Rejection must not mutate state.
	if b.Len() != 1 {
		t.Errorf("expected len=1 after rejections, got %d", b.Len())
	}
}

func TestBuffer_SnapshotIsIndependent(t *testing.T) {
	b := New(3)
	b.Append(candleAt(1))
	b.Append(candleAt(2))

	snap := b.Snapshot()
	b.Append(candleAt(3))
	b.Append(candleAt(4)) // evicts ts=1

	if len(snap) != 2 || snap[0].TS != 1 || snap[1].TS != 2 {
		t.Errorf("snapshot mutated by later appends: %+v", snap)
	}
}
