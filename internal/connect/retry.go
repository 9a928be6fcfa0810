// Package connect waits for a backing service to answer pings, retrying with
// exponential backoff until a total deadline.
package connect

import (
	"context"
	"fmt"
	"time"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
)

// PingFunc checks that the backing service answers.
type PingFunc func(ctx context.Context) error

// Options defines connection retry behavior.
type Options struct {
	Service       string        // service name used in log lines (ex: "redis")
	Addr          string        // address logged with every attempt, never a full DSN
	Timeout       time.Duration // total time allowed for connection attempts (ex: 30s)
	RetryInterval time.Duration // initial wait between retries (ex: 2s, grows exponentially)
	MaxWait       time.Duration // max wait between retries (ex: 10s)
	PingTimeout   time.Duration // timeout for each ping attempt (ex: 2s)
	WarnThreshold int           // warn for this many attempts, then log errors
}

// connectionLogger handles all connection logging.
type connectionLogger struct {
	logger  logger.Logger
	service string
	addr    string
}

func (cl *connectionLogger) logStart(timeout time.Duration) {
	cl.logger.Info("connecting to "+cl.service,
		logger.String("addr", cl.addr),
		logger.Duration("timeout", timeout))
}

func (cl *connectionLogger) logSuccess(attempts int, elapsed time.Duration) {
	if attempts > 1 {
		cl.logger.Warn("connected to "+cl.service+" after retry",
			logger.String("addr", cl.addr),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", elapsed))
		return
	}
	cl.logger.Info("connected to "+cl.service,
		logger.String("addr", cl.addr))
}

func (cl *connectionLogger) logTimeout(attempts int, timeout time.Duration, err error) {
	cl.logger.Error(cl.service+" unavailable - failed to connect after timeout",
		logger.String("addr", cl.addr),
		logger.Int("attempts", attempts),
		logger.Duration("timeout", timeout),
		logger.Error(err))
}

func (cl *connectionLogger) logRetry(attempt int, remaining, nextRetry time.Duration, warnThreshold int, err error) {
	switch {
	case remaining < 10*time.Second:
		cl.logger.Error(cl.service+" still down - retrying but timeout approaching",
			logger.String("addr", cl.addr),
			logger.Int("attempt", attempt),
			logger.Duration("remaining", remaining),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	case attempt <= warnThreshold:
		cl.logger.Warn(cl.service+" connection failed, retrying",
			logger.String("addr", cl.addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	default:
		cl.logger.Error(cl.service+" still unavailable - connection attempts failing",
			logger.String("addr", cl.addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	}
}

// Validate ensures all retry settings are usable.
func (o Options) Validate() error {
	if o.Timeout <= 0 {
		return fmt.Errorf("Timeout must be > 0, got %v", o.Timeout)
	}
	if o.RetryInterval <= 0 {
		return fmt.Errorf("RetryInterval must be > 0, got %v", o.RetryInterval)
	}
	if o.MaxWait <= 0 {
		return fmt.Errorf("MaxWait must be > 0, got %v", o.MaxWait)
	}
	if o.PingTimeout <= 0 {
		return fmt.Errorf("PingTimeout must be > 0, got %v", o.PingTimeout)
	}
	if o.WarnThreshold < 0 {
		return fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold)
	}
	return nil
}

// WithRetry pings until success or until opts.Timeout elapses (or ctx ends).
// It returns the last ping error wrapped with the attempt count on failure.
func WithRetry(ctx context.Context, opts Options, ping PingFunc, log logger.Logger) error {
	if err := opts.Validate(); err != nil {
		log.Error("invalid connect options",
			logger.String("service", opts.Service),
			logger.Error(err))
		return err
	}

	cl := &connectionLogger{logger: log, service: opts.Service, addr: opts.Addr}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cl.logStart(opts.Timeout)
	start := time.Now()
	attempt := 0
	wait := opts.RetryInterval

	for {
		attempt++

		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := ping(pingCtx)
		pingCancel()

		if err == nil {
			cl.logSuccess(attempt, time.Since(start))
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			cl.logTimeout(attempt, opts.Timeout, err)
			return fmt.Errorf("%s unavailable at %s after %d attempts (timeout: %v): %w",
				opts.Service, opts.Addr, attempt, opts.Timeout, err)

		case <-timer.C:
			cl.logRetry(attempt, timeLeft(ctx), wait, opts.WarnThreshold, err)
			wait = min(wait*2, opts.MaxWait)
		}
	}
}

// timeLeft returns the remaining time before context deadline.
func timeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
