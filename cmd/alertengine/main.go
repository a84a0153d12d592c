package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"alert-systemv1/config"
	"alert-systemv1/internal/engine"
	"alert-systemv1/internal/logger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("alertengine", slog.LevelInfo)

	// Optional .env for local development; real deployments use the environment.
	if err := godotenv.Load(); err == nil {
		log.Println("[alertengine] loaded .env")
	}

	cfg := config.Load()
	log.Printf("[alertengine] assets: %v, feed: %s, timeframe: %ds",
		cfg.ParseAssets(), cfg.FeedMode, cfg.TimeframeSec)

	svc, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("[alertengine] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[alertengine] shutdown signal received")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("[alertengine] fatal: %v", err)
	}
	log.Println("[alertengine] stopped")
}
