package validation

import (
	"context"
	"fmt"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/metrics"
)

// outcome is what one validation pass persisted.
type outcome struct {
	status      int
	score       int
	publishable bool
	tombstoned  bool
	healed      bool
}

func (o outcome) metricOutcome() string {
	switch {
	case o.tombstoned:
		return metrics.OutcomeTombstoned
	case o.publishable:
		return metrics.OutcomePublishable
	default:
		return metrics.OutcomeUnpublishable
	}
}

// validateLocked runs one pass under the event lock, converting a panic into
// an error so one bad event cannot take the batch down.
func (v *Validator) validateLocked(ctx context.Context, e *domain.Event) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while validating event %s: %v", e.ID, r)
		}
	}()

	if v.locker != nil {
		release, ok, lockErr := v.locker.Acquire(ctx, e.ID)
		if lockErr != nil {
			return outcome{}, fmt.Errorf("acquire event lock: %w", lockErr)
		}
		if !ok {
			return outcome{}, ErrLocked
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				v.logger.Warn("failed to release event lock",
					logger.EventID(e.ID),
					logger.Error(relErr))
			}
		}()
	}

	return v.validate(ctx, e)
}

// validate is one full pass: tombstone check, fetch and score, heal once,
// tombstone write, persist.
func (v *Validator) validate(ctx context.Context, e *domain.Event) (outcome, error) {
	target := e.URLToCheck()
	if target == "" {
		return outcome{}, ErrNoURL
	}

	if v.isTombstoned(ctx, e, target) {
		update := domain.ValidationUpdate{
			URLStatus:     404,
			RedirectChain: []string{},
			Score:         0,
			CheckedAt:     v.now(),
			Publishable:   false,
		}
		if err := v.events.UpdateValidation(ctx, e.ID, update); err != nil {
			return outcome{}, fmt.Errorf("persist tombstoned event: %w", err)
		}
		v.logger.Info("event link is tombstoned",
			logger.EventID(e.ID),
			logger.URL(target),
			logger.String("site", domain.Site(target)))
		return outcome{status: 404, tombstoned: true}, nil
	}

	keywords := domain.BuildKeywords(e.Title, e.Organizer)
	result := v.checker.Check(ctx, target, keywords)
	checked := target

	healed := false
	if result.Status == 404 || result.Status == 410 {
		if alt := v.healer.Heal(target); alt != target {
			healedResult := v.checker.Check(ctx, alt, keywords)
			if healedResult.Score > result.Score {
				result = healedResult
				checked = alt
				healed = true
				v.recordHeal(metrics.HealImproved)
			} else {
				v.recordHeal(metrics.HealNotImproved)
			}
		}
	}

	if domain.ShouldTombstone(result.Status, result.RedirectChain, result.Score) {
		v.writeTombstone(ctx, e, checked, result)
	}

	var canonical *string
	switch {
	case result.Canonical != "":
		canonical = &result.Canonical
	case healed:
		canonical = &result.FinalURL
	}

	publishable := domain.IsPublishable(result.Score, result.Status, v.opts.ScoreMin)
	update := domain.ValidationUpdate{
		CanonicalURL:  canonical,
		URLStatus:     result.Status,
		RedirectChain: result.RedirectChain,
		Score:         result.Score,
		CheckedAt:     v.now(),
		Publishable:   publishable,
	}
	if err := v.events.UpdateValidation(ctx, e.ID, update); err != nil {
		return outcome{}, fmt.Errorf("persist validation: %w", err)
	}

	if v.metrics != nil {
		v.metrics.ObserveScore(result.Score)
	}

	fields := []logger.Field{
		logger.EventID(e.ID),
		logger.URL(checked),
		logger.String("site", domain.Site(checked)),
		logger.Int("status", result.Status),
		logger.Int("score", result.Score),
		logger.Bool("publishable", publishable),
		logger.Bool("healed", healed),
		logger.Bool("needs_js", result.NeedsJS),
		logger.Int("redirects", len(result.RedirectChain)),
	}
	if result.Error != "" {
		fields = append(fields, logger.String("fetch_error", result.Error))
	}
	v.logger.Info("event link validated", fields...)

	return outcome{
		status:      result.Status,
		score:       result.Score,
		publishable: publishable,
		healed:      healed,
	}, nil
}

// isTombstoned looks up the target's (domain, path). A lookup failure is
// logged and treated as a miss; the fetch that follows is harmless.
func (v *Validator) isTombstoned(ctx context.Context, e *domain.Event, target string) bool {
	parts, ok := domain.ExtractURLParts(target)
	if !ok {
		return false
	}
	dead, err := v.tombstones.Exists(ctx, parts.Domain, parts.Path)
	if err != nil {
		v.logger.Warn("tombstone lookup failed, checking link anyway",
			logger.EventID(e.ID),
			logger.URL(target),
			logger.Error(err))
		return false
	}
	return dead
}

// writeTombstone is best effort: a failed insert never fails the event.
func (v *Validator) writeTombstone(ctx context.Context, e *domain.Event, url string, result domain.LinkCheckResult) {
	parts, ok := domain.ExtractURLParts(url)
	if !ok {
		return
	}
	reason := domain.TombstoneReason(result.Status, result.Score)
	created, err := v.tombstones.Insert(ctx, parts.Domain, parts.Path, reason)
	if err != nil {
		v.logger.Warn("failed to record tombstone",
			logger.EventID(e.ID),
			logger.String("domain", parts.Domain),
			logger.String("path", parts.Path),
			logger.Error(err))
		return
	}
	if created {
		if v.metrics != nil {
			v.metrics.RecordTombstoneCreated()
		}
		v.logger.Info("link tombstoned",
			logger.EventID(e.ID),
			logger.String("domain", parts.Domain),
			logger.String("path", parts.Path),
			logger.String("reason", reason))
	}
}

func (v *Validator) recordHeal(result string) {
	if v.metrics != nil {
		v.metrics.RecordHeal(result)
	}
}
