package validation

import (
	"context"
	"time"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
)

// EventStore is the event source the validator reads from and writes to.
type EventStore interface {
	// ListDue returns up to limit events, least recently checked first with
	// never-checked events ahead.
	ListDue(ctx context.Context, limit int) ([]*domain.Event, error)
	// GetByID returns domain.ErrEventNotFound on a miss.
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	UpdateValidation(ctx context.Context, id string, update domain.ValidationUpdate) error
}

// TombstoneStore holds permanently dead (domain, path) pairs.
type TombstoneStore interface {
	Exists(ctx context.Context, domain, path string) (bool, error)
	// Insert is idempotent; created is false when the pair already existed.
	Insert(ctx context.Context, domain, path, reason string) (created bool, err error)
}

// Checker fetches and scores one URL. It must not fail: fetch problems are
// reported through a zero-status result.
type Checker interface {
	Check(ctx context.Context, url string, keywords []string) domain.LinkCheckResult
}

// Locker grants at most one in-flight validation per event.
type Locker interface {
	Acquire(ctx context.Context, eventID string) (release func(context.Context) error, ok bool, err error)
}

// Recorder receives pipeline metrics.
type Recorder interface {
	RecordEvent(outcome string)
	ObserveScore(score int)
	RecordHeal(result string)
	RecordTombstoneCreated()
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
