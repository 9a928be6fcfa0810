package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/metrics"
	redisstore "github.com/oneOoneData/TaxProExchange-sub003/internal/store/redis"
)

// DefaultBatchLockTTL bounds how long a crashed instance can block batches.
const DefaultBatchLockTTL = 30 * time.Minute

// ErrBatchRunning is returned when another instance holds the batch lock.
var ErrBatchRunning = errors.New("batch already running")

// BatchRunner runs one validation batch.
type BatchRunner interface {
	RunBatch(ctx context.Context, limit int) (domain.BatchSummary, error)
}

// BatchOptions configures a BatchScheduler.
type BatchOptions struct {
	// Schedule is a 5-field cron expression. Empty disables scheduled runs;
	// manual triggers still work.
	Schedule  string
	BatchSize int
	LockTTL   time.Duration
}

// BatchScheduler runs validation batches on a cron schedule and on demand.
type BatchScheduler struct {
	runner  BatchRunner
	store   *redisstore.Store
	metrics *metrics.Metrics
	logger  logger.Logger
	opts    BatchOptions

	cron          *cron.Cron
	manualTrigger chan struct{}
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	now           func() time.Time
}

// NewBatchScheduler creates a batch scheduler. store and m may be nil, in
// which case runs are neither locked nor recorded.
func NewBatchScheduler(
	runner BatchRunner,
	store *redisstore.Store,
	m *metrics.Metrics,
	log logger.Logger,
	opts BatchOptions,
) *BatchScheduler {
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultBatchLockTTL
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	return &BatchScheduler{
		runner:        runner,
		store:         store,
		metrics:       m,
		logger:        log,
		opts:          opts,
		cron:          cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		manualTrigger: make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		now:           time.Now,
	}
}

// Schedule returns the configured cron expression.
func (bs *BatchScheduler) Schedule() string {
	return bs.opts.Schedule
}

// Start registers the cron entry and begins listening for manual triggers.
// An invalid schedule is returned as an error.
func (bs *BatchScheduler) Start(ctx context.Context) error {
	if bs.opts.Schedule != "" {
		_, err := bs.cron.AddFunc(bs.opts.Schedule, func() {
			bs.runAndLog(ctx, domain.TriggerSchedule)
		})
		if err != nil {
			return fmt.Errorf("invalid batch schedule %q: %w", bs.opts.Schedule, err)
		}
		bs.logger.Info("batch schedule registered",
			logger.String("schedule", bs.opts.Schedule),
			logger.Int("batch_size", bs.opts.BatchSize))
	} else {
		bs.logger.Info("scheduled batches disabled, manual triggers only")
	}
	bs.cron.Start()

	bs.wg.Add(1)
	go func() {
		defer bs.wg.Done()
		for {
			select {
			case <-bs.manualTrigger:
				bs.logger.Info("manual batch triggered")
				bs.runAndLog(ctx, domain.TriggerManual)
			case <-bs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops scheduling and waits for a running batch to finish.
func (bs *BatchScheduler) Stop() {
	bs.stopOnce.Do(func() {
		close(bs.stopCh)
		<-bs.cron.Stop().Done()
		bs.wg.Wait()
	})
}

// Trigger queues a manual run. It returns false when a run is already pending.
func (bs *BatchScheduler) Trigger() bool {
	select {
	case bs.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (bs *BatchScheduler) runAndLog(ctx context.Context, trigger string) {
	if _, err := bs.Run(ctx, trigger); err != nil && !errors.Is(err, ErrBatchRunning) {
		bs.logger.Error("validation batch failed",
			logger.String("trigger", trigger),
			logger.Error(err))
	}
}

// Run executes one batch under the batch lock and records its outcome.
func (bs *BatchScheduler) Run(ctx context.Context, trigger string) (*domain.BatchRun, error) {
	if bs.store != nil {
		lock, ok, err := bs.store.LockBatch(ctx, bs.opts.LockTTL)
		if err != nil {
			bs.metrics.RecordBatch(trigger, metrics.BatchFailed, 0)
			return nil, err
		}
		if !ok {
			bs.metrics.RecordBatch(trigger, metrics.BatchSkipped, 0)
			bs.logger.Info("batch already running elsewhere, skipping",
				logger.String("trigger", trigger))
			return nil, ErrBatchRunning
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				bs.logger.Warn("failed to release batch lock", logger.Error(err))
			}
		}()
	}

	start := bs.now()
	summary, runErr := bs.runner.RunBatch(ctx, bs.opts.BatchSize)
	finished := bs.now()

	run := &domain.BatchRun{
		Trigger:    trigger,
		StartedAt:  start,
		FinishedAt: finished,
		Duration:   finished.Sub(start),
		Summary:    summary,
	}
	result := metrics.BatchOK
	if runErr != nil {
		run.Error = runErr.Error()
		result = metrics.BatchFailed
	}

	if bs.store != nil {
		if err := bs.store.SaveLastBatch(context.WithoutCancel(ctx), *run); err != nil {
			bs.logger.Warn("failed to save batch summary", logger.Error(err))
		}
	}
	bs.metrics.RecordBatch(trigger, result, run.Duration)

	bs.logger.Info("batch run recorded",
		logger.String("trigger", trigger),
		logger.String("result", result),
		logger.Int("processed", summary.Processed),
		logger.Int("validated", summary.Validated),
		logger.Int("publishable", summary.Publishable),
		logger.Int("errors", summary.Errors),
		logger.Duration("duration", run.Duration))

	return run, runErr
}
