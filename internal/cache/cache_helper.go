package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache errors
var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// CacheConfig defines cache configuration for one kind of cached data.
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
	// Size bounds the in-process fallback used when Redis is not configured.
	// Zero leaves it unbounded.
	Size int
}

var (
	// Profiles change rarely; role changes invalidate explicitly.
	ProfileCacheConfig = CacheConfig{
		TTL:    5 * time.Minute,
		Prefix: "profile:",
		Size:   10000,
	}

	// Resolved auth state per session id.
	StateCacheConfig = CacheConfig{
		TTL:    24 * time.Hour,
		Prefix: "authstate:",
		Size:   10000,
	}

	// Revoked token ids. Never evicted by size; each entry lives exactly as
	// long as the token it revokes.
	RevokedCacheConfig = CacheConfig{
		Prefix: "revoked:",
	}

	// Provider user lookups (Casdoor).
	UserCacheConfig = CacheConfig{
		TTL:    10 * time.Minute,
		Prefix: "user:",
		Size:   10000,
	}

	// Dashboard aggregates.
	StatsCacheConfig = CacheConfig{
		TTL:    2 * time.Minute,
		Prefix: "stats:",
		Size:   1000,
	}
)

// sweepEvery is how many local writes pass between purges of expired entries.
const sweepEvery = 1024

// localEntry is a value in the in-process fallback. A zero expiresAt never expires.
type localEntry struct {
	value     string
	expiresAt time.Time
}

func (e localEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// CacheHelper wraps Redis with JSON (de)serialization and key prefixing.
// Without a Redis client it falls back to an in-process LRU, or to a
// no-op when neither is configured.
type CacheHelper struct {
	client *redis.Client
	local  *expirable.LRU[string, localEntry]
	prefix string

	// mu serializes local writes so SetStringNX is atomic.
	mu     sync.Mutex
	writes atomic.Uint64
}

// NewCacheHelper creates a Redis-backed helper. A nil client yields a no-op helper.
func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{client: client, prefix: prefix}
}

// NewLocalCacheHelper creates a helper backed by an in-process LRU. config.TTL
// caps every entry; a shorter ttl passed on write wins.
func NewLocalCacheHelper(config CacheConfig) *CacheHelper {
	return &CacheHelper{
		local:  expirable.NewLRU[string, localEntry](config.Size, nil, config.TTL),
		prefix: config.Prefix,
	}
}

func (c *CacheHelper) GetCacheKey(key string) string {
	return c.prefix + key
}

// Available reports whether values written to the helper can be read back.
func (c *CacheHelper) Available() bool {
	return c.client != nil || c.local != nil
}

func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.GetString(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	return c.SetString(ctx, key, string(data), ttl)
}

// SetString stores a raw string for ttl. Zero ttl keeps it until evicted.
func (c *CacheHelper) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	switch {
	case c.client != nil:
		return c.client.Set(ctx, c.GetCacheKey(key), value, ttl).Err()
	case c.local != nil:
		c.mu.Lock()
		c.local.Add(c.GetCacheKey(key), newLocalEntry(value, ttl))
		c.mu.Unlock()
		c.afterLocalWrite()
		return nil
	default:
		return nil
	}
}

// SetStringNX stores value only when key is absent and reports whether it
// did. Concurrent callers for one key see exactly one true.
func (c *CacheHelper) SetStringNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	cacheKey := c.GetCacheKey(key)
	switch {
	case c.client != nil:
		ok, err := c.client.SetNX(ctx, cacheKey, value, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("cache setnx error: %w", err)
		}
		return ok, nil
	case c.local != nil:
		c.mu.Lock()
		if e, ok := c.local.Peek(cacheKey); ok && !e.expired(time.Now()) {
			c.mu.Unlock()
			return false, nil
		}
		c.local.Add(cacheKey, newLocalEntry(value, ttl))
		c.mu.Unlock()
		c.afterLocalWrite()
		return true, nil
	default:
		return false, ErrCacheNotAvailable
	}
}

func newLocalEntry(value string, ttl time.Duration) localEntry {
	e := localEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	return e
}

// afterLocalWrite purges expired entries now and then. Without it an
// unbounded helper would keep entries nobody reads again.
func (c *CacheHelper) afterLocalWrite() {
	if c.writes.Add(1)%sweepEvery != 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.local.Keys() {
		if e, ok := c.local.Peek(k); ok && e.expired(now) {
			c.local.Remove(k)
		}
	}
}

// localGet returns a live local entry, dropping it when expired.
func (c *CacheHelper) localGet(cacheKey string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.local.Get(cacheKey)
	if !ok {
		return "", false
	}
	if e.expired(time.Now()) {
		c.local.Remove(cacheKey)
		return "", false
	}
	return e.value, true
}

func (c *CacheHelper) GetString(ctx context.Context, key string) (string, error) {
	cacheKey := c.GetCacheKey(key)
	switch {
	case c.client != nil:
		result, err := c.client.Get(ctx, cacheKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return "", ErrCacheNotFound
			}
			return "", fmt.Errorf("cache get error: %w", err)
		}
		return result, nil
	case c.local != nil:
		if v, ok := c.localGet(cacheKey); ok {
			return v, nil
		}
		return "", ErrCacheNotFound
	default:
		return "", ErrCacheNotAvailable
	}
}

func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = c.GetCacheKey(key)
	}

	switch {
	case c.client != nil:
		return c.client.Del(ctx, cacheKeys...).Err()
	case c.local != nil:
		for _, k := range cacheKeys {
			c.local.Remove(k)
		}
	}
	return nil
}

func (c *CacheHelper) Exists(ctx context.Context, key string) (bool, error) {
	cacheKey := c.GetCacheKey(key)
	switch {
	case c.client != nil:
		count, err := c.client.Exists(ctx, cacheKey).Result()
		if err != nil {
			return false, fmt.Errorf("cache exists error: %w", err)
		}
		return count > 0, nil
	case c.local != nil:
		_, ok := c.localGet(cacheKey)
		return ok, nil
	default:
		return false, ErrCacheNotAvailable
	}
}

// InvalidatePattern removes every key matching a glob pattern. Redis is
// walked with SCAN and deleted in pipelined batches.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	fullPattern := c.GetCacheKey(pattern)

	if c.local != nil {
		for _, k := range c.local.Keys() {
			if ok, _ := path.Match(fullPattern, k); ok {
				c.local.Remove(k)
			}
		}
		return nil
	}
	if c.client == nil {
		return nil
	}

	var cursor uint64
	var keys []string
	for {
		var batch []string
		var err error
		batch, cursor, err = c.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan pattern error: %w", err)
		}
		keys = append(keys, batch...)
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		pipe.Del(ctx, keys[i:end]...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache pipeline delete error: %w", err)
	}
	return nil
}

// CacheOrExecute reads key into dest, or runs fetch, stores its result and
// copies it into dest. Cache failures never fail the call.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "Cache get error, proceeding to fetch", "error", err, "key", key)
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal result error: %w", err)
	}
	if err := c.SetString(ctx, key, string(data), ttl); err != nil {
		slog.WarnContext(ctx, "Cache set error", "error", err, "key", key)
	}
	return json.Unmarshal(data, dest)
}

// CacheManager groups the helpers used across the service.
type CacheManager struct {
	client *redis.Client

	Profile *CacheHelper
	State   *CacheHelper
	Revoked *CacheHelper
	User    *CacheHelper
	Stats   *CacheHelper
}

// NewCacheManager builds Redis-backed helpers, or in-process ones when client is nil.
func NewCacheManager(client *redis.Client) *CacheManager {
	build := func(cfg CacheConfig) *CacheHelper {
		if client == nil {
			return NewLocalCacheHelper(cfg)
		}
		return NewCacheHelper(client, cfg.Prefix)
	}

	return &CacheManager{
		client:  client,
		Profile: build(ProfileCacheConfig),
		State:   build(StateCacheConfig),
		Revoked: build(RevokedCacheConfig),
		User:    build(UserCacheConfig),
		Stats:   build(StatsCacheConfig),
	}
}

// HealthCheck verifies Redis connectivity. The in-process fallback is always healthy.
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return nil
	}
	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}
