package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SaveLastBatch stores the record of the most recent batch run.
func (s *Store) SaveLastBatch(ctx context.Context, run domain.BatchRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal batch run: %w", err)
	}
	if err := s.client.Set(ctx, LastBatchKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save batch run: %w", err)
	}
	return nil
}

// GetLastBatch returns the most recent batch run, or nil if none was recorded.
func (s *Store) GetLastBatch(ctx context.Context) (*domain.BatchRun, error) {
	data, err := s.client.Get(ctx, LastBatchKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch run: %w", err)
	}

	var run domain.BatchRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch run: %w", err)
	}
	return &run, nil
}
