// Package validation runs link-health validation passes over events, either
// as a batch of due events or for a single event on demand.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/metrics"
)

var (
	// ErrNoURL is returned for events with neither a canonical nor a candidate URL.
	ErrNoURL = errors.New("event has no URL to validate")
	// ErrLocked is returned when another validation of the event is in flight.
	ErrLocked = errors.New("validation already in progress")
)

// Messages reported in SingleResult.Error.
const (
	MsgEventNotFound = "Event not found"
	MsgNoURL         = "Event has no URL to validate"
	MsgLocked        = "Validation already in progress"
)

const (
	DefaultRecheckAfter = 24 * time.Hour
	DefaultWorkers      = 1
)

// Options tunes a Validator.
type Options struct {
	// ScoreMin is the publishable threshold. Zero means domain.DefaultPublishableScore.
	ScoreMin int
	// RecheckAfter is the batch staleness gate.
	RecheckAfter time.Duration
	// PolitenessDelay is the pause between consecutive events of a worker.
	PolitenessDelay time.Duration
	// Workers bounds batch concurrency.
	Workers int
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.ScoreMin <= 0 {
		o.ScoreMin = domain.DefaultPublishableScore
	}
	if o.RecheckAfter <= 0 {
		o.RecheckAfter = DefaultRecheckAfter
	}
	if o.PolitenessDelay < 0 {
		o.PolitenessDelay = 0
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	return o
}

// Option configures optional collaborators.
type Option func(*Validator)

// WithLocker enables per-event locking.
func WithLocker(l Locker) Option { return func(v *Validator) { v.locker = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option { return func(v *Validator) { v.metrics = r } }

// WithHealer replaces the default URL healer.
func WithHealer(h *domain.Healer) Option { return func(v *Validator) { v.healer = h } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(v *Validator) { v.now = now } }

// WithSleep replaces the politeness sleep.
func WithSleep(sleep SleepFunc) Option { return func(v *Validator) { v.sleep = sleep } }

// Validator is the validation orchestrator.
type Validator struct {
	events     EventStore
	tombstones TombstoneStore
	checker    Checker
	healer     *domain.Healer
	locker     Locker
	metrics    Recorder
	logger     logger.Logger
	opts       Options
	now        func() time.Time
	sleep      SleepFunc
}

// New creates a validator.
func New(
	events EventStore,
	tombstones TombstoneStore,
	checker Checker,
	log logger.Logger,
	opts Options,
	options ...Option,
) *Validator {
	if log == nil {
		log = logger.NewNop()
	}
	v := &Validator{
		events:     events,
		tombstones: tombstones,
		checker:    checker,
		healer:     domain.NewHealer(),
		logger:     log,
		opts:       opts.WithDefaults(),
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, o := range options {
		o(v)
	}
	return v
}

// SingleResult is the outcome of ValidateEventByID.
type SingleResult struct {
	Success     bool   `json:"success"`
	Score       *int   `json:"score,omitempty"`
	Publishable *bool  `json:"publishable,omitempty"`
	Error       string `json:"error,omitempty"`

	// Err is the underlying error for errors.Is checks.
	Err error `json:"-"`
}

func failure(err error, msg string) SingleResult {
	return SingleResult{Success: false, Error: msg, Err: err}
}

// ValidateEventByID validates one event regardless of when it was last
// checked. Nothing is written when the event is missing or has no URL.
func (v *Validator) ValidateEventByID(ctx context.Context, id string) SingleResult {
	event, err := v.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			return failure(err, MsgEventNotFound)
		}
		v.logger.Error("failed to load event",
			logger.EventID(id),
			logger.Error(err))
		return failure(err, err.Error())
	}

	if event.URLToCheck() == "" {
		return failure(ErrNoURL, MsgNoURL)
	}

	out, err := v.validateLocked(ctx, event)
	switch {
	case errors.Is(err, ErrLocked):
		v.record(metrics.OutcomeLocked)
		return failure(err, MsgLocked)
	case err != nil:
		v.record(metrics.OutcomeError)
		v.logger.Error("event validation failed",
			logger.EventID(id),
			logger.Error(err))
		return failure(err, err.Error())
	}

	v.record(out.metricOutcome())
	return SingleResult{
		Success:     true,
		Score:       &out.score,
		Publishable: &out.publishable,
	}
}

// RunBatch validates up to limit due events. Per-event failures are counted
// in the summary; only a failure to list events is returned.
func (v *Validator) RunBatch(ctx context.Context, limit int) (domain.BatchSummary, error) {
	start := v.now()

	events, err := v.events.ListDue(ctx, limit)
	if err != nil {
		v.logger.Error("failed to list events for validation", logger.Error(err))
		return domain.BatchSummary{}, fmt.Errorf("list due events: %w", err)
	}

	var summary domain.BatchSummary
	due := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		summary.Processed++
		if !e.NeedsValidation(start, v.opts.RecheckAfter) {
			v.record(metrics.OutcomeSkipped)
			continue
		}
		due = append(due, e)
	}

	for r := range v.runPool(ctx, due) {
		switch {
		case errors.Is(r.err, ErrLocked):
			v.record(metrics.OutcomeLocked)
			v.logger.Debug("event already being validated, skipping",
				logger.EventID(r.eventID))
		case r.err != nil:
			summary.Errors++
			v.record(metrics.OutcomeError)
			v.logger.Error("event validation failed",
				logger.EventID(r.eventID),
				logger.Error(r.err))
		default:
			summary.Validated++
			if r.out.publishable {
				summary.Publishable++
			}
			v.record(r.out.metricOutcome())
		}
	}

	v.logger.Info("validation batch completed",
		logger.Int("limit", limit),
		logger.Int("processed", summary.Processed),
		logger.Int("validated", summary.Validated),
		logger.Int("publishable", summary.Publishable),
		logger.Int("errors", summary.Errors),
		logger.Duration("elapsed", v.now().Sub(start)))

	return summary, nil
}

func (v *Validator) record(outcome string) {
	if v.metrics != nil {
		v.metrics.RecordEvent(outcome)
	}
}
