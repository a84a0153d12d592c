// Package redis persists accepted alerts and combined asset state to Redis
// for external consumers: alerts go to a trimmed stream plus pubsub, asset
// state is kept as a latest-value key with TTL plus pubsub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"alert-systemv1/internal/model"
	"alert-systemv1/internal/monitor"
)

const (
	alertStreamKey    = "alerts:stream"
	alertStreamMaxLen = 10000
	defaultLatestTTL  = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes alerts and asset updates to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// WriteAlert performs a pipelined XADD + PUBLISH for one alert.
func (w *Writer) WriteAlert(ctx context.Context, a model.Alert) {
	data, err := json.Marshal(a)
	if err != nil {
		log.Printf("[redis] alert marshal error: %v", err)
		return
	}
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: alertStreamKey,
		MaxLen: alertStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, "pub:alerts", jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] alert pipeline error for %s/%s: %v", a.Asset, a.Type, err)
	}
}

// WriteAssetUpdate stores the latest combined state for one asset and
// publishes it for live subscribers.
func (w *Writer) WriteAssetUpdate(ctx context.Context, u monitor.Update) {
	data, err := json.Marshal(u)
	if err != nil {
		log.Printf("[redis] update marshal error: %v", err)
		return
	}
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.Set(ctx, "asset:latest:"+u.Asset, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, "pub:asset:"+u.Asset, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] update pipeline error for %s: %v", u.Asset, err)
	}
}

// PublishDismissal notifies subscribers that an alert was dismissed.
func (w *Writer) PublishDismissal(ctx context.Context, alertID string) {
	if err := w.client.Publish(ctx, "pub:alerts:dismissed", alertID).Err(); err != nil {
		log.Printf("[redis] dismissal publish error for %s: %v", alertID, err)
	}
}

// Close releases the underlying client.
func (w *Writer) Close() error {
	return w.client.Close()
}
