package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Store handles the shared keyed state kept in Redis: validation locks,
// rate-limit counters and the last batch record.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
