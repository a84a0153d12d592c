package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the alert engine.
type Metrics struct {
	CandlesTotal   prometheus.Counter
	OrderingErrors prometheus.Counter
	FeedReconnects prometheus.Counter
	DroppedCandles prometheus.Counter

	AlertsTotal *prometheus.CounterVec // labels: type
	DedupDrops  prometheus.Counter
	Dismissals  prometheus.Counter

	ComputeDur      prometheus.Histogram
	PivotRecomputes prometheus.Counter
	AssetsGauge     prometheus.Gauge

	NotifyFailures prometheus.Counter
	RedisWriteDur  prometheus.Histogram
	SQLiteWriteDur prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_candles_total",
			Help: "Total candles processed across all assets",
		}),
		OrderingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_ordering_errors_total",
			Help: "Candles rejected for non-increasing timestamps",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_feed_reconnects_total",
			Help: "Total feed reconnection attempts",
		}),
		DroppedCandles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_dropped_candles_total",
			Help: "Candles dropped on a full ingest channel",
		}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertengine_alerts_total",
			Help: "Accepted alerts by type",
		}, []string{"type"}),
		DedupDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_dedup_drops_total",
			Help: "Alerts suppressed by the dedup index",
		}),
		Dismissals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_dismissals_total",
			Help: "Alerts dismissed by the operator",
		}),

		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_compute_duration_seconds",
			Help:    "Indicator recompute plus rule evaluation latency per candle",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),
		PivotRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_pivot_recomputes_total",
			Help: "Pivot level recomputations across all assets",
		}),
		AssetsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertengine_assets",
			Help: "Number of assets currently monitored",
		}),

		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_notify_failures_total",
			Help: "Alert delivery failures across notification backends",
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_sqlite_write_duration_seconds",
			Help:    "SQLite write latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.CandlesTotal,
		m.OrderingErrors,
		m.FeedReconnects,
		m.DroppedCandles,
		m.AlertsTotal,
		m.DedupDrops,
		m.Dismissals,
		m.ComputeDur,
		m.PivotRecomputes,
		m.AssetsGauge,
		m.NotifyFailures,
		m.RedisWriteDur,
		m.SQLiteWriteDur,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastCandleTime time.Time `json:"last_candle_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	Assets         []string  `json:"assets"`

	// Stores are optional; only configured ones count toward health.
	RedisConfigured  bool `json:"redis_configured"`
	SQLiteConfigured bool `json:"sqlite_configured"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetAssets(assets []string) {
	h.mu.Lock()
	h.Assets = assets
	h.mu.Unlock()
}

// SetRedisConfigured marks Redis as a configured dependency. The connection
// was just verified by the caller, so it also counts as connected until the
// liveness checker says otherwise.
func (h *HealthStatus) SetRedisConfigured() {
	h.mu.Lock()
	h.RedisConfigured = true
	h.RedisConnected = true
	h.mu.Unlock()
}

// SetSQLiteConfigured marks SQLite as a configured dependency.
func (h *HealthStatus) SetSQLiteConfigured() {
	h.mu.Lock()
	h.SQLiteConfigured = true
	h.SQLiteOK = true
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	// Unconfigured stores never degrade health; the engine runs fine without
	// persistence.
	redisDown := h.RedisConfigured && !h.RedisConnected
	sqliteDown := h.SQLiteConfigured && !h.SQLiteOK

	if !h.FeedConnected || redisDown || sqliteDown {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if redisDown && sqliteDown {
		overallStatus = "unhealthy"
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status           string   `json:"status"`
		Uptime           string   `json:"uptime"`
		FeedConnected    bool     `json:"feed_connected"`
		LastCandleTime   string   `json:"last_candle_time"`
		CandleAge        string   `json:"candle_age"`
		RedisConfigured  bool     `json:"redis_configured"`
		RedisConnected   bool     `json:"redis_connected"`
		RedisLatencyMs   float64  `json:"redis_latency_ms"`
		SQLiteConfigured bool     `json:"sqlite_configured"`
		SQLiteOK         bool     `json:"sqlite_ok"`
		SQLiteLatencyMs  float64  `json:"sqlite_latency_ms"`
		Assets           []string `json:"assets"`
		LastCheckAt      string   `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:    h.FeedConnected,
		LastCandleTime:   h.LastCandleTime.Format(time.RFC3339),
		CandleAge:        candleAge,
		RedisConfigured:  h.RedisConfigured,
		RedisConnected:   h.RedisConnected,
		RedisLatencyMs:   h.RedisLatencyMs,
		SQLiteConfigured: h.SQLiteConfigured,
		SQLiteOK:         h.SQLiteOK,
		SQLiteLatencyMs:  h.SQLiteLatencyMs,
		Assets:           h.Assets,
		LastCheckAt:      h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
