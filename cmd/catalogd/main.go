// cmd/catalogd runs the instrument catalog service: it opens the SQLite
// store, connects the optional redis instrument cache, serves /metrics
// and /healthz, and blocks until shutdown. Transport layers embed the
// catalog service directly; this binary is the standalone wiring.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"instrument-catalogv1/config"
	"instrument-catalogv1/internal/catalog"
	"instrument-catalogv1/internal/logger"
	"instrument-catalogv1/internal/metrics"
	"instrument-catalogv1/internal/notification"
	rediscache "instrument-catalogv1/internal/store/redis"
	sqlitestore "instrument-catalogv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	slogger := logger.Init("catalogd", slog.LevelInfo)
	slogger.Info("starting")

	cfg := config.Load()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown context ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite store ----
	os.MkdirAll(filepath.Dir(cfg.CatalogDBPath), 0o755)
	store, err := sqlitestore.Open(sqlitestore.Config{Path: cfg.CatalogDBPath})
	if err != nil {
		log.Fatalf("[catalogd] sqlite init failed: %v", err)
	}
	defer store.Close()
	health.SetSQLiteOK(true)
	slogger.Info("sqlite store ready", "path", cfg.CatalogDBPath)

	// ---- Optional redis instrument cache ----
	var cache *rediscache.Cache
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		cache, err = rediscache.NewCache(rediscache.CacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			slogger.Warn("redis cache unavailable, continuing without it", "err", err)
			health.SetRedisConnected(false)
		} else {
			defer cache.Close()
			redisClient = cache.Client()
			health.SetRedisConnected(true)
			slogger.Info("redis instrument cache ready", "addr", cfg.RedisAddr)
		}
	}

	// ---- Feed alerts ----
	var notifier notification.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.NotifyWebhookURL)
		slogger.Info("import alerts enabled", "webhook", cfg.NotifyWebhookURL)
	}

	// ---- Catalog service ----
	svc := catalog.New(store, catalog.Options{
		BatchSize:     cfg.BatchSize,
		MaxCandidates: cfg.MaxCandidates,
		Cache:         cache,
		Metrics:       prom,
		Notifier:      notifier,
		Logger:        slogger,
	})

	if n, err := svc.CountInstruments(ctx); err == nil {
		prom.InstrumentCount.Set(float64(n))
		slogger.Info("catalog ready", "instruments", n)
	}

	// ---- Periodic liveness checks ----
	health.StartLivenessChecker(ctx, store.DB(), redisClient, 15*time.Second)

	<-sigCh
	slogger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
}
