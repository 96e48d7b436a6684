package cache

import (
	"context"
	"log/slog"
	"time"
)

// SafeInvalidatePattern invalidates a pattern and logs instead of failing.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeSet stores a value and logs instead of failing.
func SafeSet(ctx context.Context, helper *CacheHelper, key string, value interface{}, ttl time.Duration) {
	if err := helper.Set(ctx, key, value, ttl); err != nil {
		slog.WarnContext(ctx, "Failed to set cache key",
			"error", err,
			"key", key)
	}
}

// SafeDelete deletes keys and logs instead of failing.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"count", len(keys))
	}
}

// InvalidateProfileCache drops the cached profile of a user and every
// dashboard aggregate that may embed it.
func InvalidateProfileCache(ctx context.Context, cm *CacheManager, userID string) {
	SafeDelete(ctx, cm.Profile, "user:"+userID)
	SafeInvalidatePattern(ctx, cm.Stats, "dashboard:*:"+userID)
	SafeDelete(ctx, cm.Stats, "dashboard:admin")
}

// InvalidateDashboards drops every cached dashboard aggregate. Record
// writes call it since one lesson touches a tutor, a student and a parent.
func InvalidateDashboards(ctx context.Context, cm *CacheManager) {
	SafeInvalidatePattern(ctx, cm.Stats, "dashboard:*")
}
