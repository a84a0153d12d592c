package alertlog

import (
	"fmt"
	"sync"
	"testing"

	"alert-systemv1/internal/model"
)

func alert(id string, typ model.AlertType, asset string, ts int64) model.Alert {
	return model.Alert{ID: id, Type: typ, Asset: asset, TS: ts, Message: "test"}
}

func TestLog_DedupByTypeAssetTimestamp(t *testing.T) {
	l := New(0)

	if !l.Append(alert("a", model.AlertBuyCall, "NIFTY", 1000)) {
		t.Fatal("first append must be accepted")
	}
	// Same triple, different id: duplicate.
	if l.Append(alert("b", model.AlertBuyCall, "NIFTY", 1000)) {
		t.Fatal("duplicate (type,asset,ts) must be dropped")
	}
	if l.Len() != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", l.Len())
	}

	// Differing on any triple component is not a duplicate.
	if !l.Append(alert("c", model.AlertSellPut, "NIFTY", 1000)) {
		t.Error("different type must be accepted")
	}
	if !l.Append(alert("d", model.AlertBuyCall, "BANKNIFTY", 1000)) {
		t.Error("different asset must be accepted")
	}
	if !l.Append(alert("e", model.AlertBuyCall, "NIFTY", 2000)) {
		t.Error("different timestamp must be accepted")
	}
	if l.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", l.Len())
	}
}

func TestLog_Dismiss(t *testing.T) {
	l := New(0)
	l.Append(alert("a", model.AlertBuyCall, "NIFTY", 1000))

	if !l.Dismiss("a") {
		t.Fatal("dismiss of existing id must succeed")
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty log, got %d", l.Len())
	}
	if l.Dismiss("a") {
		t.Error("dismiss of absent id must be a no-op")
	}

	// After dismissal the key is free again.
	if !l.Append(alert("f", model.AlertBuyCall, "NIFTY", 1000)) {
		t.Error("re-append after dismissal must be accepted")
	}
}

func TestLog_ConcurrentAppendNoDuplicates(t *testing.T) {
	l := New(0)

	// Many goroutines race on the same 10 dedup keys.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for ts := int64(0); ts < 10; ts++ {
				l.Append(alert(fmt.Sprintf("%d-%d", g, ts), model.AlertBuyCall, "NIFTY", ts))
			}
		}(g)
	}
	wg.Wait()

	if l.Len() != 10 {
		t.Fatalf("expected 10 unique entries, got %d", l.Len())
	}
}

func TestLog_AcceptedChannel(t *testing.T) {
	l := New(4)
	l.Append(alert("a", model.AlertBuyCall, "NIFTY", 1000))
	l.Append(alert("b", model.AlertBuyCall, "NIFTY", 1000)) // dup, not emitted

	select {
	case got := <-l.Accepted():
		if got.ID != "a" {
			t.Errorf("expected accepted alert a, got %s", got.ID)
		}
	default:
		t.Fatal("expected one accepted alert on the channel")
	}
	select {
	case got := <-l.Accepted():
		t.Fatalf("duplicate must not be emitted, got %s", got.ID)
	default:
	}
}

func TestLog_RestoreSkipsDuplicates(t *testing.T) {
	l := New(0)
	l.Append(alert("a", model.AlertBuyCall, "NIFTY", 1000))

	n := l.Restore([]model.Alert{
		alert("x", model.AlertBuyCall, "NIFTY", 1000), // dup of "a"
		alert("y", model.AlertSellPut, "NIFTY", 2000),
	})
	if n != 1 {
		t.Fatalf("expected 1 restored, got %d", n)
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", l.Len())
	}
}
