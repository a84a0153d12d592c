package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/internal/model"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// startDroppingServer serves one filtered-out candle plus one wanted candle
// per connection, then closes it, forcing the feed to reconnect.
func startDroppingServer(t *testing.T) *httptest.Server {
	t.Helper()
	var ts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := atomic.AddInt64(&ts, 1)
		noise := model.Candle{Asset: "OTHER", TS: n * 60_000, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
		c := model.Candle{Asset: "NIFTY", TS: n * 60_000, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10}
		conn.WriteMessage(websocket.TextMessage, noise.JSON())
		conn.WriteMessage(websocket.TextMessage, c.JSON())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestWSFeed(t *testing.T, srv *httptest.Server) *WSFeed {
	t.Helper()
	f, err := NewWS(WSConfig{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http"),
		Assets:            []string{"NIFTY"},
		ReconnectDelay:    5 * time.Millisecond,
		MaxReconnectDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new ws feed: %v", err)
	}
	return f
}

func TestWS_DeliversAcrossReconnects(t *testing.T) {
	srv := startDroppingServer(t)
	f := newTestWSFeed(t, srv)

	var connects, reconnects int64
	f.OnConnect = func() { atomic.AddInt64(&connects, 1) }
	f.OnReconnect = func() { atomic.AddInt64(&reconnects, 1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan model.Candle, 16)
	done := make(chan struct{})
	go func() {
		f.Subscribe(ctx, out)
		close(done)
	}()

	var got []model.Candle
	for len(got) < 3 {
		select {
		case c := <-out:
			if c.Asset != "NIFTY" {
				t.Fatalf("candles for other assets must be filtered, got %q", c.Asset)
			}
			got = append(got, c)
		case <-time.After(3 * time.Second):
			t.Fatalf("expected 3 candles, got %d", len(got))
		}
	}

	// Three candles require three connections, so at least two reconnects.
	if atomic.LoadInt64(&connects) < 3 {
		t.Errorf("expected at least 3 connects, got %d", connects)
	}
	if atomic.LoadInt64(&reconnects) < 2 {
		t.Errorf("expected at least 2 reconnects, got %d", reconnects)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestWS_ReconnectsDoNotAccumulateGoroutines(t *testing.T) {
	srv := startDroppingServer(t)
	f := newTestWSFeed(t, srv)

	var reconnects int64
	f.OnReconnect = func() { atomic.AddInt64(&reconnects, 1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan model.Candle, 64)
	done := make(chan struct{})
	go func() {
		f.Subscribe(ctx, out)
		close(done)
	}()

	waitReconnects := func(n int64) {
		deadline := time.Now().Add(5 * time.Second)
		for atomic.LoadInt64(&reconnects) < n {
			if time.Now().After(deadline) {
				t.Fatalf("expected %d reconnects, have %d", n, reconnects)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	waitReconnects(3)
	before := runtime.NumGoroutine()

	waitReconnects(9)
	after := runtime.NumGoroutine()

	// Each connection's context watcher must exit with its connection; six
	// more reconnect cycles must not leave six more goroutines behind.
	if after > before+3 {
		t.Errorf("goroutines grew from %d to %d across reconnects", before, after)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}
