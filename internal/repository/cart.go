package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopkart/storefront/internal/domain/cart"
)

// NewRedisClient creates a Redis client with conservative timeouts and
// verifies connectivity with a ping.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by Redis. Each user's cart lives in
// a single key as a JSON array of lines; every save overwrites the full set.
type CartStore struct {
	client *redis.Client
}

// NewCartStore returns a CartStore that uses the given client.
func NewCartStore(client *redis.Client) *CartStore {
	return &CartStore{client: client}
}

func cartKey(userID string) string { return "cart:" + userID }

// Load returns the stored lines for a user. A missing key yields an empty
// cart and an unparsable payload carries cart.ErrCorruptStorage, which the
// cart service treats as empty. Transport errors are returned untagged so a
// failed read is never mistaken for an empty cart.
func (s *CartStore) Load(ctx context.Context, userID string) ([]cart.Line, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("loading cart for %q: %w", userID, err)
	}

	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decoding cart for %q: %w: %v", userID, cart.ErrCorruptStorage, err)
	}
	return lines, nil
}

// Save overwrites the user's cart with the given lines. An empty line set
// erases the key instead of storing an empty array.
func (s *CartStore) Save(ctx context.Context, userID string, lines []cart.Line) error {
	if len(lines) == 0 {
		return s.Clear(ctx, userID)
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encoding cart for %q: %w", userID, err)
	}
	if err := s.client.Set(ctx, cartKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("saving cart for %q: %w", userID, err)
	}
	return nil
}

// Clear removes the user's cart key.
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("clearing cart for %q: %w", userID, err)
	}
	return nil
}
