package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedProfile struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func newRedisHelper(t *testing.T, prefix string) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheHelper(client, prefix), mr
}

func helpers(t *testing.T) map[string]*CacheHelper {
	redisHelper, _ := newRedisHelper(t, "profile:")
	return map[string]*CacheHelper{
		"redis": redisHelper,
		"local": NewLocalCacheHelper(ProfileCacheConfig),
	}
}

func TestCacheHelper_SetGetDelete(t *testing.T) {
	for name, h := range helpers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var out cachedProfile
			assert.ErrorIs(t, h.Get(ctx, "user:u1", &out), ErrCacheNotFound)

			require.NoError(t, h.Set(ctx, "user:u1", cachedProfile{ID: "p1", Role: "tutor"}, time.Minute))
			require.NoError(t, h.Get(ctx, "user:u1", &out))
			assert.Equal(t, "tutor", out.Role)

			ok, err := h.Exists(ctx, "user:u1")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, h.Delete(ctx, "user:u1"))
			assert.ErrorIs(t, h.Get(ctx, "user:u1", &out), ErrCacheNotFound)
		})
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	for name, h := range helpers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, h.SetString(ctx, "dashboard:tutor:u1", "a", time.Minute))
			require.NoError(t, h.SetString(ctx, "dashboard:student:u2", "b", time.Minute))
			require.NoError(t, h.SetString(ctx, "other", "c", time.Minute))

			require.NoError(t, h.InvalidatePattern(ctx, "dashboard:*"))

			_, err := h.GetString(ctx, "dashboard:tutor:u1")
			assert.ErrorIs(t, err, ErrCacheNotFound)
			_, err = h.GetString(ctx, "dashboard:student:u2")
			assert.ErrorIs(t, err, ErrCacheNotFound)
			v, err := h.GetString(ctx, "other")
			require.NoError(t, err)
			assert.Equal(t, "c", v)
		})
	}
}

func TestCacheHelper_RedisTTL(t *testing.T) {
	h, mr := newRedisHelper(t, "revoked:")
	ctx := context.Background()

	require.NoError(t, h.SetString(ctx, "jti-1", "1", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := h.GetString(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheHelper_LocalEntryTTL(t *testing.T) {
	h := NewLocalCacheHelper(ProfileCacheConfig)
	ctx := context.Background()

	require.NoError(t, h.SetString(ctx, "short", "1", 20*time.Millisecond))
	require.NoError(t, h.SetString(ctx, "long", "1", time.Hour))

	time.Sleep(50 * time.Millisecond)

	_, err := h.GetString(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheNotFound)
	ok, err := h.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := h.GetString(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestCacheHelper_UnboundedLocalKeepsEntries(t *testing.T) {
	h := NewLocalCacheHelper(RevokedCacheConfig)
	ctx := context.Background()

	require.NoError(t, h.SetString(ctx, "first", "1", time.Hour))
	for i := 0; i < 60000; i++ {
		require.NoError(t, h.SetString(ctx, fmt.Sprintf("id-%d", i), "1", time.Hour))
	}

	_, err := h.GetString(ctx, "first")
	assert.NoError(t, err)
}

func TestCacheHelper_SetStringNX(t *testing.T) {
	redisHelper, _ := newRedisHelper(t, "revoked:")
	backends := map[string]*CacheHelper{
		"redis": redisHelper,
		"local": NewLocalCacheHelper(RevokedCacheConfig),
	}

	for name, h := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := h.SetStringNX(ctx, "jti-1", "1", time.Minute)
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())

			v, err := h.GetString(ctx, "jti-1")
			require.NoError(t, err)
			assert.Equal(t, "1", v)
		})
	}

	_, err := NewCacheHelper(nil, "x:").SetStringNX(context.Background(), "k", "1", time.Minute)
	assert.ErrorIs(t, err, ErrCacheNotAvailable)
}

func TestCacheHelper_NoBackend(t *testing.T) {
	h := NewCacheHelper(nil, "x:")
	ctx := context.Background()

	assert.False(t, h.Available())
	assert.NoError(t, h.Set(ctx, "k", 1, time.Minute))
	_, err := h.GetString(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheNotAvailable)
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	h := NewLocalCacheHelper(StatsCacheConfig)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedProfile{ID: "p1", Role: "admin"}, nil
	}

	var first, second cachedProfile
	require.NoError(t, h.CacheOrExecute(ctx, "k", &first, time.Minute, fetch))
	require.NoError(t, h.CacheOrExecute(ctx, "k", &second, time.Minute, fetch))
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	boom := errors.New("db down")
	var out cachedProfile
	err := h.CacheOrExecute(ctx, "missing", &out, time.Minute, func() (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCacheManager_InvalidateProfileCache(t *testing.T) {
	cm := NewCacheManager(nil)
	ctx := context.Background()

	require.NoError(t, cm.Profile.SetString(ctx, "user:u1", "{}", time.Minute))
	require.NoError(t, cm.Stats.SetString(ctx, "dashboard:parent:u1", "{}", time.Minute))
	require.NoError(t, cm.Stats.SetString(ctx, "dashboard:admin", "{}", time.Minute))

	InvalidateProfileCache(ctx, cm, "u1")

	for _, check := range []struct {
		h   *CacheHelper
		key string
	}{
		{cm.Profile, "user:u1"},
		{cm.Stats, "dashboard:parent:u1"},
		{cm.Stats, "dashboard:admin"},
	} {
		_, err := check.h.GetString(ctx, check.key)
		assert.ErrorIs(t, err, ErrCacheNotFound, check.key)
	}
	assert.NoError(t, cm.HealthCheck(ctx))
}
