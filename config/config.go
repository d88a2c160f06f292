package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Catalog storage
	CatalogDBPath string
	BatchSize     int // import flush size
	MaxCandidates int // fuzzy ranking candidate ceiling

	// Infrastructure
	RedisAddr     string // empty disables the instrument cache
	RedisPassword string
	MetricsAddr   string

	// Feed alerts
	NotifyWebhookURL string // empty disables import notifications
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is honored when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	return &Config{
		CatalogDBPath: getEnv("CATALOG_DB_PATH", "data/catalog.db"),
		BatchSize:     getEnvInt("IMPORT_BATCH_SIZE", 2000),
		MaxCandidates: getEnvInt("SEARCH_MAX_CANDIDATES", 2000),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
	}
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
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring invalid value for %s: %q", key, v)
		return fallback
	}
	return n
}
