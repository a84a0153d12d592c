package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Feed
	FeedMode  string // "sim" or "ws"
	FeedWSURL string
	Assets    string // comma-separated asset names

	// Pipeline
	TimeframeSec  int // candle timeframe in seconds
	HistoryLimit  int
	FastPeriod    int
	MediumPeriod  int
	SlowPeriod    int
	SRLookback    int
	VolumeFactor  float64
	EarlyPullback bool
	PivotInterval time.Duration

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	MetricsAddr   string
	HTTPAddr      string

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		FeedMode:  getEnv("FEED_MODE", "sim"),
		FeedWSURL: getEnv("FEED_WS_URL", "ws://localhost:9001/ws"),
		Assets:    getEnv("ASSETS", "NIFTY,BANKNIFTY"),

		TimeframeSec:  getEnvInt("TIMEFRAME_SEC", 60),
		HistoryLimit:  getEnvInt("HISTORY_LIMIT", 100),
		FastPeriod:    getEnvInt("EMA_FAST", 10),
		MediumPeriod:  getEnvInt("EMA_MEDIUM", 20),
		SlowPeriod:    getEnvInt("EMA_SLOW", 50),
		SRLookback:    getEnvInt("SR_LOOKBACK", 15),
		VolumeFactor:  getEnvFloat("VOLUME_FACTOR", 1.2),
		EarlyPullback: getEnvBool("EARLY_PULLBACK", false),
		PivotInterval: time.Duration(getEnvInt("PIVOT_INTERVAL_SEC", 300)) * time.Second,

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/alerts.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// ParseAssets splits the Assets string into trimmed, non-empty names.
func (c *Config) ParseAssets() []string {
	parts := strings.Split(c.Assets, ",")
	assets := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		assets = append(assets, p)
	}
	return assets
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
