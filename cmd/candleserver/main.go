// cmd/candleserver — Demo WebSocket candle server.
// Broadcasts simulated closed candles for running the alert engine in ws
// feed mode without a real market data provider.
//
// The candle JSON shape is identical to model.Candle:
//
//	{"asset":"NIFTY","ts":1700000060000,"open":...,"high":...,"low":...,"close":...,"volume":...}
//
// Config (env vars):
//
//	CANDLE_SERVER_ADDR  — listen address  (default: ":9001")
//	CANDLE_ASSETS       — comma-separated asset names (default: "NIFTY,BANKNIFTY")
//	CANDLE_INTERVAL_MS  — broadcast interval milliseconds (default: "1000")
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/internal/feed"
	"alert-systemv1/internal/model"
)

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop candle
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[candleserver] upgrade error: %v", err)
			return
		}
		log.Printf("[candleserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[candleserver] client disconnected: %s", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Candle generator ─────────────────────────────────────────────────────────

// runGenerator drives the shared random-walk simulator and broadcasts every
// candle it emits.
func runGenerator(ctx context.Context, h *hub, assets []string, intervalMs int) {
	sim := feed.NewSim(feed.SimConfig{
		Assets:   assets,
		Interval: time.Duration(intervalMs) * time.Millisecond,
	})

	candleCh := make(chan model.Candle, 256)
	go sim.Subscribe(ctx, candleCh)

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-candleCh:
			b, err := json.Marshal(c)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[candleserver] starting demo candle server...")

	addr := envOrDefault("CANDLE_SERVER_ADDR", ":9001")
	assetsEnv := envOrDefault("CANDLE_ASSETS", "NIFTY,BANKNIFTY")
	intervalMs := envIntOrDefault("CANDLE_INTERVAL_MS", 1000)

	assets := parseAssets(assetsEnv)
	if len(assets) == 0 {
		log.Fatalf("[candleserver] no assets configured via CANDLE_ASSETS")
	}
	log.Printf("[candleserver] assets: %v", assets)
	log.Printf("[candleserver] broadcast interval: %dms", intervalMs)

	h := newHub()
	go runGenerator(context.Background(), h, assets, intervalMs)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"candleserver"}`)
	})

	log.Printf("[candleserver] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[candleserver] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseAssets(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
