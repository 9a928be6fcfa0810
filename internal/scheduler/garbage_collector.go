package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/metrics"
)

// DefaultGCInterval is how often expired tombstones are looked for.
const DefaultGCInterval = 24 * time.Hour

// TombstoneDeleter removes tombstones recorded before cutoff.
type TombstoneDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TombstoneCollector expires tombstones older than a TTL so their URLs are
// checked again by the next batch.
type TombstoneCollector struct {
	store    TombstoneDeleter
	metrics  *metrics.Metrics
	logger   logger.Logger
	interval time.Duration
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewTombstoneCollector creates a collector. ttl must be positive; callers
// skip the collector entirely when tombstones are permanent.
func NewTombstoneCollector(
	store TombstoneDeleter,
	m *metrics.Metrics,
	log logger.Logger,
	interval time.Duration,
	ttl time.Duration,
) *TombstoneCollector {
	if interval <= 0 {
		interval = DefaultGCInterval
	}

	return &TombstoneCollector{
		store:    store,
		metrics:  m,
		logger:   log,
		interval: interval,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start runs a collection immediately and then every interval.
func (tc *TombstoneCollector) Start(ctx context.Context) error {
	if _, err := tc.Collect(ctx); err != nil {
		tc.logger.Warn("initial tombstone collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(tc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := tc.Collect(ctx); err != nil {
					tc.logger.Error("tombstone collection failed",
						logger.Error(err))
				}
			case <-tc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the collector
func (tc *TombstoneCollector) Stop() {
	tc.stopOnce.Do(func() { close(tc.stopCh) })
}

// Collect deletes tombstones older than the TTL and returns how many went.
func (tc *TombstoneCollector) Collect(ctx context.Context) (int64, error) {
	cutoff := tc.now().Add(-tc.ttl)

	deleted, err := tc.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	tc.metrics.RecordTombstonesExpired(deleted)

	if deleted > 0 {
		tc.logger.Info("expired tombstones removed",
			logger.Int64("deleted", deleted),
			logger.Time("cutoff", cutoff))
	} else {
		tc.logger.Debug("no tombstones to expire")
	}

	return deleted, nil
}
