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

// Metrics holds all Prometheus metrics for the instrument catalog.
type Metrics struct {
	ImportsTotal    *prometheus.CounterVec // labels: status
	ImportRowsTotal *prometheus.CounterVec // labels: result=ok|err
	ImportDur       prometheus.Histogram
	UpsertBatchDur  prometheus.Histogram

	SearchesTotal prometheus.Counter
	SearchDur     prometheus.Histogram

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	InstrumentCount prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_imports_total",
			Help: "Import jobs reaching a terminal status",
		}, []string{"status"}),
		ImportRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_import_rows_total",
			Help: "CSV rows processed by import result",
		}, []string{"result"}),
		ImportDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_import_duration_seconds",
			Help:    "Wall time of one CSV import",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		UpsertBatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_upsert_batch_duration_seconds",
			Help:    "SQLite bulk upsert latency per batch",
			Buckets: prometheus.DefBuckets,
		}),
		SearchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "Search requests served",
		}),
		SearchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_search_duration_seconds",
			Help:    "Search latency including fuzzy re-ranking",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Instrument point lookups served from redis",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Instrument point lookups that fell through to sqlite",
		}),
		InstrumentCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_instruments",
			Help: "Instrument rows in the catalog",
		}),
	}

	prometheus.MustRegister(
		m.ImportsTotal,
		m.ImportRowsTotal,
		m.ImportDur,
		m.UpsertBatchDur,
		m.SearchesTotal,
		m.SearchDur,
		m.CacheHits,
		m.CacheMisses,
		m.InstrumentCount,
	)

	return m
}

// HealthStatus represents catalog health.
type HealthStatus struct {
	mu sync.RWMutex

	SQLiteOK       bool      `json:"sqlite_ok"`
	RedisConnected bool      `json:"redis_connected"`
	LastImportAt   time.Time `json:"last_import_at"`

	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastImportAt(t time.Time) {
	h.mu.Lock()
	h.LastImportAt = t
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

// CheckRedis pings redis and records latency + connectivity.
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

// StartLivenessChecker runs periodic dependency checks. rdb may be nil
// when the cache is not configured.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, sqlDB *sql.DB, rdb *goredis.Client, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. Redis is an optional
// dependency, so only SQLite decides healthy vs unhealthy.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if !h.RedisConnected {
		overallStatus = "degraded"
	}

	lastImport := ""
	if !h.LastImportAt.IsZero() {
		lastImport = h.LastImportAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		LastImportAt    string  `json:"last_import_at,omitempty"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		LastImportAt:    lastImport,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
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
