package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// TokenStore implements domain.TokenStore using plain Redis string keys
// with a TTL. Session tokens survive a gateway restart but expire on their
// own so a stale token never outlives the backend's session window.
type TokenStore struct {
	rdb *redis.Client
}

// NewTokenStore creates a TokenStore backed by the given Client.
func NewTokenStore(c *Client) *TokenStore {
	return &TokenStore{rdb: c.Underlying()}
}

// Get retrieves a stored token. It returns domain.ErrNotFound when the key
// does not exist or has expired.
func (ts *TokenStore) Get(ctx context.Context, key string) (string, error) {
	val, err := ts.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get token %s: %w", key, err)
	}
	return val, nil
}

// Set stores a token with the given TTL.
func (ts *TokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ts.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set token %s: %w", key, err)
	}
	return nil
}

// Delete removes a stored token. Deleting a missing key is not an error.
func (ts *TokenStore) Delete(ctx context.Context, key string) error {
	if err := ts.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete token %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TokenStore = (*TokenStore)(nil)
