package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/internal/model"
)

// WSConfig holds configuration for the WebSocket candle feed.
type WSConfig struct {
	// URL of the candle WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// Assets this feed is expected to carry; candles for other assets
	// are dropped on ingest.
	Assets []string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// WSFeed consumes closed candles from a plain-JSON WebSocket server. The
// wire message shape is identical to model.Candle.
type WSFeed struct {
	cfg    WSConfig
	wanted map[string]bool

	// Optional hook, called after every successful connection.
	OnConnect func()

	// Optional hook, called each time a reconnection happens.
	OnReconnect func()

	// Optional hook, called for every candle dropped on a full channel.
	OnDrop func()
}

// NewWS creates a WebSocket feed. Returns an error if the URL is unparseable.
func NewWS(cfg WSConfig) (*WSFeed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(cfg.Assets))
	for _, a := range cfg.Assets {
		wanted[a] = true
	}
	return &WSFeed{cfg: cfg, wanted: wanted}, nil
}

// Assets lists the configured asset names.
func (f *WSFeed) Assets() []string {
	out := make([]string, len(f.cfg.Assets))
	copy(out, f.cfg.Assets)
	return out
}

// InitialHistory returns an empty slice: the live feed carries no backfill
// endpoint, so history accumulates from the stream itself.
func (f *WSFeed) InitialHistory(_ context.Context, asset string, _ int) ([]model.Candle, error) {
	log.Printf("[feed] no backfill for %s, accumulating from live stream", asset)
	return nil, nil
}

// Subscribe connects to the WebSocket server and streams candles into out.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect.
func (f *WSFeed) Subscribe(ctx context.Context, out chan<- model.Candle) error {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.runOnce(ctx, out)
		if err == nil {
			// Context cancelled cleanly
			return nil
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (f *WSFeed) runOnce(ctx context.Context, out chan<- model.Candle) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", f.cfg.URL)
	if f.OnConnect != nil {
		f.OnConnect()
	}

	// Async context watcher, closes the connection when ctx is cancelled.
	// Scoped to this connection so the goroutine exits with runOnce instead
	// of piling up across reconnect attempts.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var c model.Candle
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
			continue
		}
		if c.Asset == "" || !f.wanted[c.Asset] {
			continue
		}

		select {
		case out <- c:
		default:
			log.Println("[feed] candle channel full, dropping candle")
			if f.OnDrop != nil {
				f.OnDrop()
			}
		}
	}
}
