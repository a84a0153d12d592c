package sqlite

import (
	"context"
	"testing"

	"alert-systemv1/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(WriterConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InsertLoadDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := model.Alert{
		ID:      "id-1",
		Type:    model.AlertBuyCall,
		Asset:   "NIFTY",
		TS:      60_000,
		Message: "bullish breakout",
	}
	b := model.Alert{
		ID:      "id-2",
		Type:    model.AlertTargetConfirmBull,
		Asset:   "NIFTY",
		TS:      120_000,
		Message: "target line broken",
		Region:  &model.BreakRegion{Low: 100, High: 102, Target: 101},
	}

	if err := s.Insert(ctx, a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := s.Insert(ctx, b); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	got, err := s.LoadAlerts(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(got))
	}
	if got[0].ID != "id-1" || got[1].ID != "id-2" {
		t.Errorf("expected oldest-first ordering, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].Region == nil || got[1].Region.Target != 101 {
		t.Errorf("break region must round-trip, got %+v", got[1].Region)
	}
	if got[0].Region != nil {
		t.Error("absent region must stay nil")
	}

	if err := s.Delete(ctx, "id-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := s.CountAlerts(ctx); n != 1 {
		t.Errorf("expected 1 alert after delete, got %d", n)
	}

	// Unknown ID is not an error.
	if err := s.Delete(ctx, "nope"); err != nil {
		t.Errorf("delete unknown id: %v", err)
	}
}

func TestStore_DuplicateTripleIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := model.Alert{ID: "x-1", Type: model.AlertSellPut, Asset: "BANKNIFTY", TS: 60_000, Message: "m"}
	dup := model.Alert{ID: "x-2", Type: model.AlertSellPut, Asset: "BANKNIFTY", TS: 60_000, Message: "m"}

	if err := s.Insert(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, dup); err != nil {
		t.Fatalf("insert dup: %v", err)
	}
	if n, _ := s.CountAlerts(ctx); n != 1 {
		t.Errorf("duplicate (type, asset, ts) must be ignored, got %d rows", n)
	}
}

func TestStore_BatchInsert(t *testing.T) {
	s := openTestStore(t)

	batch := []model.Alert{
		{ID: "b-1", Type: model.AlertBuyCall, Asset: "NIFTY", TS: 60_000, Message: "m1"},
		{ID: "b-2", Type: model.AlertBuyCall, Asset: "NIFTY", TS: 120_000, Message: "m2"},
		{ID: "b-3", Type: model.AlertSellPut, Asset: "NIFTY", TS: 120_000, Message: "m3"},
	}
	if err := s.insertBatch(batch); err != nil {
		t.Fatalf("batch insert: %v", err)
	}
	if n, _ := s.CountAlerts(context.Background()); n != 3 {
		t.Errorf("expected 3 alerts, got %d", n)
	}
}
