// Package redis is an optional read-through cache for instrument point
// lookups. The SQLite store stays authoritative; cache failures are
// logged and reads fall through, so the catalog works unchanged when
// redis is down or absent.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"instrument-catalogv1/internal/model"
)

const keyPrefix = "catalog:instrument:"

// CacheConfig configures the instrument cache.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // per-entry expiry; 0 means 15 minutes
}

// Cache caches JSON-encoded instruments keyed by id and by token.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewCache connects to redis and pings the server.
func NewCache(cfg CacheConfig) (*Cache, error) {
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

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	log.Printf("[redis] instrument cache connected to %s (ttl=%s)", cfg.Addr, ttl)
	return &Cache{client: client, ttl: ttl}, nil
}

// IDKey returns the cache key for a lookup by instrument id.
func (c *Cache) IDKey(id string) string { return keyPrefix + "id:" + id }

// TokenKey returns the cache key for a lookup by instrument token.
func (c *Cache) TokenKey(token string) string { return keyPrefix + "token:" + token }

// GetInstrument returns the cached instrument under key, or nil on a
// miss or any cache error.
func (c *Cache) GetInstrument(ctx context.Context, key string) *model.Instrument {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[redis] cache get %s: %v", key, err)
		}
		return nil
	}
	var in model.Instrument
	if err := json.Unmarshal(data, &in); err != nil {
		log.Printf("[redis] cache decode %s: %v", key, err)
		return nil
	}
	return &in
}

// PutInstrument stores an instrument under key with the cache TTL.
// Best effort.
func (c *Cache) PutInstrument(ctx context.Context, key string, in *model.Instrument) {
	data, err := json.Marshal(in)
	if err != nil {
		log.Printf("[redis] cache encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("[redis] cache set %s: %v", key, err)
	}
}

// Flush removes every cached instrument. Called after imports and
// clears, since any entry may now be stale.
func (c *Cache) Flush(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			log.Printf("[redis] cache flush scan: %v", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				log.Printf("[redis] cache flush del: %v", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Client exposes the underlying client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// Close closes the connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
