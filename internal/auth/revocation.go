package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yolymatics/tutoring-service/internal/cache"
)

// RevocationList remembers revoked token ids until they would have expired anyway.
type RevocationList struct {
	cache *cache.CacheHelper
}

func NewRevocationList(helper *cache.CacheHelper) *RevocationList {
	return &RevocationList{cache: helper}
}

func (r *RevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.cache.SetString(ctx, tokenID, "1", ttl); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// Claim revokes a single-use token and reports whether this call did it.
// Of several concurrent claims on one id exactly one wins; an already
// expired token cannot be claimed.
func (r *RevocationList) Claim(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return false, nil
	}
	won, err := r.cache.SetStringNX(ctx, tokenID, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("claiming token: %w", err)
	}
	return won, nil
}

// IsRevoked fails closed when the backing store errors.
func (r *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := r.cache.GetString(ctx, tokenID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, cache.ErrCacheNotFound), errors.Is(err, cache.ErrCacheNotAvailable):
		return false, nil
	default:
		return true, fmt.Errorf("checking revocation: %w", err)
	}
}
