// Package gateway exposes the engine's live output over WebSocket. Each
// connected client receives the latest combined state for every asset on
// connect, then incremental envelopes as candles, alerts, and dismissals
// flow through the engine.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/internal/model"
	"alert-systemv1/internal/monitor"
)

// Hub manages WebSocket clients and fans engine events out to them.
type Hub struct {
	// AlertSnapshot, when set, supplies the current alert log for the
	// initial state sent to a freshly connected client.
	AlertSnapshot func() []model.Alert

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]json.RawMessage // channel -> last envelope data
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]json.RawMessage),
	}
}

// envelope is the wire frame sent to clients.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	TS      string          `json:"ts"`
	Initial bool            `json:"initial,omitempty"`
}

func encodeEnvelope(channel string, data interface{}, initial bool) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Channel: channel,
		Data:    raw,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Initial: initial,
	})
}

// BroadcastUpdate fans a combined asset state out to all clients and
// remembers it as the latest value for the asset's channel.
func (h *Hub) BroadcastUpdate(u monitor.Update) {
	raw, err := json.Marshal(u)
	if err != nil {
		log.Printf("[gateway] update marshal error: %v", err)
		return
	}
	channel := "asset:" + u.Asset

	h.mu.Lock()
	h.latest[channel] = raw
	h.mu.Unlock()

	msg, err := json.Marshal(envelope{
		Channel: channel,
		Data:    raw,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	h.broadcast(msg)
}

// BroadcastAlert fans a newly accepted alert out to all clients.
func (h *Hub) BroadcastAlert(a model.Alert) {
	msg, err := encodeEnvelope("alerts", a, false)
	if err != nil {
		log.Printf("[gateway] alert marshal error: %v", err)
		return
	}
	h.broadcast(msg)
}

// BroadcastDismissal tells all clients an alert was removed from the log.
func (h *Hub) BroadcastDismissal(alertID string) {
	msg, err := encodeEnvelope("alerts:dismissed", alertID, false)
	if err != nil {
		return
	}
	h.broadcast(msg)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow client, drop; the next update carries full state
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] client connected (%d total)", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] client disconnected (%d total)", n)
}

// sendInitialState queues the latest per-asset state and the full alert log
// for a newly connected client.
func (h *Hub) sendInitialState(c *Client) {
	h.mu.RLock()
	channels := make(map[string]json.RawMessage, len(h.latest))
	for ch, raw := range h.latest {
		channels[ch] = raw
	}
	h.mu.RUnlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for ch, raw := range channels {
		msg, err := json.Marshal(envelope{Channel: ch, Data: raw, TS: now, Initial: true})
		if err != nil {
			continue
		}
		c.queue(msg)
	}

	if h.AlertSnapshot != nil {
		msg, err := encodeEnvelope("alerts:init", h.AlertSnapshot(), true)
		if err == nil {
			c.queue(msg)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request and runs the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade error: %v", err)
		return
	}

	c := newClient(h, conn)
	h.register(c)
	h.sendInitialState(c)

	go c.writePump()
	go c.readPump()
}
