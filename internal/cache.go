package internal

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CacheBackend is the persistent second tier behind the in-memory cache
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// CacheOptions configures NewCache
type CacheOptions struct {
	TTL        time.Duration
	MaxEntries int
	Backend    string // "sqlite", "memory"
	RedisURL   string // wins over Backend when set
	SQLitePath string
}

// Cache is a two-tier cache: L1 in memory, optional L2 in redis or sqlite.
// Concurrent Memo calls for the same key share a single computation.
type Cache struct {
	l1         sync.Map // key → *cacheEntry
	l2         CacheBackend
	ttl        time.Duration
	maxEntries int
	group      singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCache builds the cache described by opts. An unreachable L2 is logged and skipped.
func NewCache(ctx context.Context, opts CacheOptions) *Cache {
	c := &Cache{ttl: opts.TTL, maxEntries: opts.MaxEntries}
	if c.ttl <= 0 {
		c.ttl = 24 * time.Hour
	}

	switch {
	case opts.RedisURL != "":
		backend, err := newRedisBackend(ctx, opts.RedisURL)
		if err != nil {
			slog.Warn("cache: redis unavailable, L2 disabled", slog.Any("error", err))
		} else {
			c.l2 = backend
		}
	case opts.Backend == "sqlite" && opts.SQLitePath != "":
		backend, err := openSQLiteBackend(ctx, opts.SQLitePath)
		if err != nil {
			slog.Warn("cache: sqlite unavailable, L2 disabled", slog.Any("error", err))
		} else {
			c.l2 = backend
		}
	}

	slog.Debug("cache: initialized",
		slog.Duration("ttl", c.ttl),
		slog.Bool("l2", c.l2 != nil),
		slog.Int("max_entries", c.maxEntries))
	return c
}

// NewMemoryCache returns a cache without a persistent tier
func NewMemoryCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{ttl: ttl, maxEntries: maxEntries}
}

// WithBackend attaches an L2 backend, mainly for tests
func (c *Cache) WithBackend(b CacheBackend) *Cache {
	c.l2 = b
	return c
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("am:%x", hash[:12])
}

// Get tries L1, then L2. An L2 hit repopulates L1.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			c.hits.Add(1)
			return entry.data, true
		}
		c.l1.Delete(key)
	}

	if c.l2 != nil {
		data, ok, err := c.l2.Get(ctx, key)
		if err != nil {
			slog.Debug("cache: L2 get failed", slog.String("key", key), slog.Any("error", err))
		}
		if ok {
			c.hits.Add(1)
			c.storeL1(key, data)
			return data, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores value in both tiers
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	c.storeL1(key, value)
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, value, c.ttl); err != nil {
			slog.Debug("cache: L2 set failed", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// Delete removes key from both tiers
func (c *Cache) Delete(ctx context.Context, key string) {
	c.l1.Delete(key)
	if c.l2 != nil {
		if err := c.l2.Delete(ctx, key); err != nil {
			slog.Debug("cache: L2 delete failed", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// Clear drops every entry from both tiers
func (c *Cache) Clear(ctx context.Context) error {
	c.l1.Range(func(key, _ any) bool {
		c.l1.Delete(key)
		return true
	})
	if c.l2 != nil {
		if err := c.l2.Clear(ctx); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
	}
	return nil
}

// Stats returns current hit/miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close releases the L2 backend
func (c *Cache) Close() error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Close()
}

// Memo returns the cached bytes for key or computes, stores and returns them.
// Errors are never cached.
func (c *Cache) Memo(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(ctx, key); ok {
		return data, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// another caller may have filled the key while we waited
		if val, ok := c.l1.Load(key); ok {
			if entry := val.(*cacheEntry); time.Now().Before(entry.expiresAt) {
				return entry.data, nil
			}
		}
		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// MemoJSON is Memo for values that round-trip through JSON
func MemoJSON[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.Memo(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		// corrupt entry, drop it so the next call recomputes
		c.Delete(ctx, key)
		return zero, fmt.Errorf("decoding cached value: %w", err)
	}
	return out, nil
}

func (c *Cache) storeL1(key string, data []byte) {
	c.evictIfNeeded()
	c.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)})
}

// evictIfNeeded removes expired entries first, then the oldest ones, while L1 is full.
func (c *Cache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := now.Add(c.ttl + time.Hour)
		c.l1.Range(func(key, val any) bool {
			// earlier expiry means older entry since every entry gets the same ttl
			if entry, ok := val.(*cacheEntry); ok && entry.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

// redisBackend stores entries under a common prefix so Clear can scan them
type redisBackend struct {
	rdb    *redis.Client
	prefix string
}

func newRedisBackend(ctx context.Context, redisURL string) (*redisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
	return &redisBackend{rdb: rdb, prefix: AppName + ":"}, nil
}

func (r *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *redisBackend) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

func (r *redisBackend) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+"*", 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *redisBackend) Close() error {
	return r.rdb.Close()
}
