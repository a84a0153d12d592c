// Package engine is the top-level orchestrator: it wires the feed, the
// per-asset monitor, the alert log, notification backends, persistence, and
// the WebSocket gateway, and runs them until shutdown.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"alert-systemv1/config"
	"alert-systemv1/internal/alertlog"
	"alert-systemv1/internal/feed"
	"alert-systemv1/internal/gateway"
	"alert-systemv1/internal/history"
	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/logger"
	"alert-systemv1/internal/markethours"
	"alert-systemv1/internal/metrics"
	"alert-systemv1/internal/model"
	"alert-systemv1/internal/monitor"
	"alert-systemv1/internal/notification"
	"alert-systemv1/internal/pivot"
	"alert-systemv1/internal/rules"
	redisstore "alert-systemv1/internal/store/redis"
	sqlitestore "alert-systemv1/internal/store/sqlite"
)

const candleBuf = 1024

// Service wires all subsystems and manages their lifecycle.
type Service struct {
	cfg *config.Config

	alerts *alertlog.Log
	mon    *monitor.Monitor
	src    feed.Feed
	hub    *gateway.Hub
	notify *notification.Multi

	prom   *metrics.Metrics
	health *metrics.HealthStatus

	redisW *redisstore.Writer
	sqlst  *sqlitestore.Store

	candleCh chan model.Candle
}

// New creates a Service from the given Config. Redis and SQLite are
// optional: a failed connection degrades persistence but the in-memory
// pipeline keeps running.
func New(cfg *config.Config) (*Service, error) {
	svc := &Service{
		cfg:      cfg,
		alerts:   alertlog.New(256),
		prom:     metrics.NewMetrics(),
		health:   metrics.NewHealthStatus(),
		candleCh: make(chan model.Candle, candleBuf),
	}

	assets := cfg.ParseAssets()
	if len(assets) == 0 {
		return nil, errors.New("engine: no assets configured")
	}

	monCfg := monitor.Config{
		HistoryLimit: cfg.HistoryLimit,
		Indicators: indicator.Config{
			FastPeriod:   cfg.FastPeriod,
			MediumPeriod: cfg.MediumPeriod,
			SlowPeriod:   cfg.SlowPeriod,
			SRLookback:   cfg.SRLookback,
		},
		Rules: rules.Config{
			StrongBodyLookback:   rules.DefaultConfig().StrongBodyLookback,
			PullbackLookback:     rules.DefaultConfig().PullbackLookback,
			VolumeAvgLookback:    rules.DefaultConfig().VolumeAvgLookback,
			VolumeFactor:         cfg.VolumeFactor,
			EarlyPullbackEnabled: cfg.EarlyPullback,
		},
	}
	svc.mon = monitor.New(monCfg, svc.alerts)
	svc.mon.OnDedupDrop = svc.prom.DedupDrops.Inc

	// ---- Feed ----
	switch cfg.FeedMode {
	case "ws":
		f, err := feed.NewWS(feed.WSConfig{URL: cfg.FeedWSURL, Assets: assets})
		if err != nil {
			return nil, fmt.Errorf("engine: ws feed: %w", err)
		}
		f.OnConnect = func() { svc.health.SetFeedConnected(true) }
		f.OnReconnect = func() {
			svc.prom.FeedReconnects.Inc()
			svc.health.SetFeedConnected(false)
		}
		f.OnDrop = svc.prom.DroppedCandles.Inc
		svc.src = f
	case "sim":
		sim := feed.NewSim(feed.SimConfig{
			Assets:   assets,
			Interval: time.Duration(cfg.TimeframeSec) * time.Second,
		})
		sim.OnDrop = svc.prom.DroppedCandles.Inc
		svc.src = sim
	default:
		return nil, fmt.Errorf("engine: unknown FEED_MODE %q", cfg.FeedMode)
	}

	// ---- Gateway ----
	svc.hub = gateway.NewHub()
	svc.hub.AlertSnapshot = svc.alerts.Alerts

	// ---- Notifications ----
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	svc.notify = notification.NewMulti(backends...)
	svc.notify.OnError = func(error) { svc.prom.NotifyFailures.Inc() }

	// ---- Redis (optional) ----
	rw, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Printf("[engine] WARNING: redis unavailable: %v (continuing without redis)", err)
	} else {
		svc.redisW = rw
		svc.health.SetRedisConfigured()
	}

	// ---- SQLite (optional) ----
	if st := openSQLite(cfg.SQLitePath); st != nil {
		svc.sqlst = st
		svc.health.SetSQLiteConfigured()
	}

	return svc, nil
}

// openSQLite opens the alert database, creating its directory first. Returns
// nil when either step fails; persistence is optional.
func openSQLite(path string) *sqlitestore.Store {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[engine] WARNING: sqlite dir %s: %v (alerts will not survive restarts)", filepath.Dir(path), err)
		return nil
	}
	st, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: path})
	if err != nil {
		log.Printf("[engine] WARNING: sqlite unavailable: %v (alerts will not survive restarts)", err)
		return nil
	}
	return st
}

// Run starts all subsystems and blocks until ctx is cancelled or a
// subsystem fails.
func (svc *Service) Run(ctx context.Context) error {
	log.Println("[engine] starting alert engine...")
	log.Printf("[engine] %s", markethours.StatusString(time.Now()))

	svc.restoreAlerts(ctx)
	svc.seedAssets(ctx)

	// Redis writes go through a circuit breaker so a Redis outage buffers
	// instead of blocking the pipeline.
	var redisBW *redisstore.BufferedWriter
	if svc.redisW != nil {
		cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
		redisBW = redisstore.NewBufferedWriter(ctx, svc.redisW, cb, 10000)
		redisBW.OnBuffer = func() { log.Println("[engine] redis write buffered (circuit open)") }
	}

	msrv := metrics.NewServer(svc.cfg.MetricsAddr, svc.health)
	msrv.Start()
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msrv.Stop(shCtx)
		cancel()
	}()

	if svc.redisW != nil || svc.sqlst != nil {
		svc.health.StartLivenessChecker(ctx, svc.redisClient(), svc.sqliteDB(), 10*time.Second)
	}
	svc.health.SetAssets(svc.src.Assets())
	svc.health.SetFeedConnected(true)

	tk := pivot.NewTicker(svc.mon, svc.cfg.PivotInterval)
	tk.OnRecompute = func(n int) { svc.prom.PivotRecomputes.Add(float64(n)) }

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return svc.src.Subscribe(ctx, svc.candleCh) })
	g.Go(func() error { svc.ingestLoop(ctx); return nil })
	g.Go(func() error { svc.alertLoop(ctx, redisBW); return nil })
	g.Go(func() error { svc.updateLoop(ctx, redisBW); return nil })
	g.Go(func() error { tk.Run(ctx); return nil })
	g.Go(func() error { return svc.runHTTP(ctx) })

	log.Printf("[engine] all systems running: %d assets, timeframe %ds, http %s, metrics %s",
		len(svc.src.Assets()), svc.cfg.TimeframeSec, svc.cfg.HTTPAddr, svc.cfg.MetricsAddr)

	err := g.Wait()
	svc.closeStores()
	return err
}

// restoreAlerts loads persisted alerts into the in-memory log.
func (svc *Service) restoreAlerts(ctx context.Context) {
	if svc.sqlst == nil {
		return
	}
	persisted, err := svc.sqlst.LoadAlerts(ctx)
	if err != nil {
		log.Printf("[engine] alert restore failed: %v", err)
		return
	}
	n := svc.alerts.Restore(persisted)
	log.Printf("[engine] restored %d persisted alerts", n)
}

// seedAssets bootstraps every asset's history from the feed.
func (svc *Service) seedAssets(ctx context.Context) {
	for _, asset := range svc.src.Assets() {
		hist, err := svc.src.InitialHistory(ctx, asset, svc.cfg.HistoryLimit)
		if err != nil {
			log.Printf("[engine] initial history for %s failed: %v", asset, err)
			continue
		}
		if len(hist) == 0 {
			continue
		}
		if err := svc.mon.Seed(asset, hist); err != nil {
			log.Printf("[engine] seed %s failed: %v", asset, err)
		}
	}
	svc.prom.AssetsGauge.Set(float64(len(svc.mon.Assets())))
}

// ingestLoop drives candles from the feed through the monitor.
func (svc *Service) ingestLoop(ctx context.Context) {
	var oe *history.OrderingError
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-svc.candleCh:
			if !ok {
				return
			}
			svc.prom.CandlesTotal.Inc()
			svc.health.SetLastCandleTime(time.Now())

			start := time.Now()
			err := svc.mon.OnNewCandle(c.Asset, c)
			svc.prom.ComputeDur.Observe(time.Since(start).Seconds())

			if err != nil {
				if errors.As(err, &oe) {
					svc.prom.OrderingErrors.Inc()
					log.Printf("[engine] ordering violation: %v", err)
				} else {
					log.Printf("[engine] candle processing error: %v", err)
				}
			}
			svc.prom.AssetsGauge.Set(float64(len(svc.mon.Assets())))
		}
	}
}

// alertLoop fans accepted alerts out to notifiers, stores, and the gateway.
func (svc *Service) alertLoop(ctx context.Context, redisBW *redisstore.BufferedWriter) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-svc.alerts.Accepted():
			if !ok {
				return
			}
			svc.prom.AlertsTotal.WithLabelValues(string(a.Type)).Inc()
			svc.hub.BroadcastAlert(a)

			sendCtx := logger.WithTraceID(ctx, logger.GenerateTraceID(a.Asset, time.Now()))
			slog.Info("alert accepted",
				append([]any{
					slog.String("type", string(a.Type)),
					slog.String("asset", a.Asset),
					slog.Int64("ts", a.TS),
				}, logger.LogWithTrace(sendCtx)...)...)
			svc.notify.Send(sendCtx, a)

			if redisBW != nil {
				start := time.Now()
				redisBW.WriteAlert(a)
				svc.prom.RedisWriteDur.Observe(time.Since(start).Seconds())
			}
			if svc.sqlst != nil {
				start := time.Now()
				if err := svc.sqlst.Insert(ctx, a); err != nil {
					log.Printf("[engine] sqlite insert failed: %v", err)
				}
				svc.prom.SQLiteWriteDur.Observe(time.Since(start).Seconds())
			}
		}
	}
}

// updateLoop forwards combined asset states to the gateway and Redis.
func (svc *Service) updateLoop(ctx context.Context, redisBW *redisstore.BufferedWriter) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-svc.mon.Updates():
			if !ok {
				return
			}
			svc.hub.BroadcastUpdate(u)
			if redisBW != nil {
				redisBW.WriteAssetUpdate(u)
			}
		}
	}
}

// Dismiss removes an alert everywhere: memory, SQLite, Redis, and clients.
func (svc *Service) Dismiss(ctx context.Context, id string) bool {
	if !svc.alerts.Dismiss(id) {
		return false
	}
	svc.prom.Dismissals.Inc()
	if svc.sqlst != nil {
		if err := svc.sqlst.Delete(ctx, id); err != nil {
			log.Printf("[engine] sqlite delete failed: %v", err)
		}
	}
	if svc.redisW != nil {
		svc.redisW.PublishDismissal(ctx, id)
	}
	svc.hub.BroadcastDismissal(id)
	return true
}

// ChangeTimeframe discards all per-asset state and reseeds from the feed.
// Accepted alerts are kept: only candle-derived state restarts.
func (svc *Service) ChangeTimeframe(ctx context.Context, seconds int) {
	log.Printf("[engine] timeframe change: %ds -> %ds", svc.cfg.TimeframeSec, seconds)
	svc.cfg.TimeframeSec = seconds
	svc.mon.Reset()
	svc.seedAssets(ctx)
}

func (svc *Service) redisClient() *goredis.Client {
	if svc.redisW == nil {
		return nil
	}
	return svc.redisW.Client()
}

func (svc *Service) sqliteDB() *sql.DB {
	if svc.sqlst == nil {
		return nil
	}
	return svc.sqlst.DB()
}

func (svc *Service) closeStores() {
	if svc.redisW != nil {
		svc.redisW.Close()
	}
	if svc.sqlst != nil {
		svc.sqlst.Close()
	}
}
