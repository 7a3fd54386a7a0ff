package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront:cart:"

// CartStateStore implements repository.CartStateStore using Redis. Each
// session's cart is a single string value that expires after the TTL.
type CartStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStateStore creates a new Redis-backed cart state store.
func NewCartStateStore(client *redis.Client, ttl time.Duration) *CartStateStore {
	return &CartStateStore{
		client: client,
		ttl:    ttl,
	}
}

// Key returns the Redis key holding the session's cart.
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// Get retrieves the serialized cart for a session.
func (s *CartStateStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	value, err := s.client.Get(ctx, Key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get cart state: %w", err)
	}
	return value, true, nil
}

// Set stores the serialized cart and refreshes its TTL.
func (s *CartStateStore) Set(ctx context.Context, sessionID, value string) error {
	if err := s.client.Set(ctx, Key(sessionID), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart state: %w", err)
	}
	return nil
}

// Delete removes the serialized cart for a session.
func (s *CartStateStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del cart state: %w", err)
	}
	return nil
}
