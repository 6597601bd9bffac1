// Package runner drives one target through the adapter contract with
// bounded retries, per-attempt timeouts and cooperative cancellation.
package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/resilience"
)

// Runner runs targets one at a time. It is not safe for concurrent use.
type Runner struct {
	reg   *adapter.Registry
	env   adapter.Env
	retry resilience.RetryConfig
	flag  *Flag
	log   *zap.Logger
	now   func() time.Time
}

// New creates a Runner. A nil log falls back to env's logger.
func New(reg *adapter.Registry, env adapter.Env, retry resilience.RetryConfig, flag *Flag, log *zap.Logger) *Runner {
	if log == nil {
		log = env.Log()
	}
	return &Runner{
		reg:   reg,
		env:   env,
		retry: retry.Normalize(),
		flag:  flag,
		log:   log.With(zap.String("component", "runner")),
		now:   time.Now,
	}
}

// Run collects target with up to MaxAttempts fresh adapter instances. The
// returned outcome always carries the elapsed time of the whole attempt
// sequence. Exhausted or fatal failures yield a failed placeholder; a
// success with no records yields a succeeded placeholder.
func (r *Runner) Run(ctx context.Context, target model.Target, timeout time.Duration) model.JobOutcome {
	log := r.log.With(zap.String("target", target.Key), zap.String("adapter", target.Adapter))
	start := r.now()

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		if r.flag.IsSet() {
			log.Warn("cancellation requested, not starting attempt", zap.Int("attempt", attempt))
			return r.cancelled(target, start, attempts, lastErr)
		}

		if attempt > 1 {
			wait := r.retry.Backoff(attempt - 2)
			if wait > 0 {
				log.Debug("backing off before retry", zap.Duration("wait", wait), zap.Int("attempt", attempt))
			}
			if err := resilience.Sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
			if r.flag.IsSet() {
				log.Warn("cancellation requested during backoff", zap.Int("attempt", attempt))
				return r.cancelled(target, start, attempts, lastErr)
			}
		}

		attempts++
		log.Info("attempt starting", zap.Int("attempt", attempt))
		records, err := r.attempt(ctx, target, timeout, log.With(zap.Int("attempt", attempt)))
		if err == nil {
			outcome := model.JobOutcome{
				Target:   target,
				Records:  records,
				Success:  true,
				Elapsed:  r.now().Sub(start),
				Attempts: attempts,
			}
			if len(records) == 0 {
				outcome = model.PlaceholderOutcome(target, true)
				outcome.Elapsed = r.now().Sub(start)
				outcome.Attempts = attempts
			}
			log.Info("target complete",
				zap.Int("attempt", attempt),
				zap.Int("records", len(records)),
				zap.Duration("elapsed", outcome.Elapsed),
			)
			return outcome
		}

		lastErr = err
		kind := adapter.KindOf(err)
		if !adapter.Retryable(err) {
			log.Error("fatal failure, abandoning target",
				zap.Int("attempt", attempt),
				zap.Stringer("kind", kind),
				zap.Error(err),
			)
			break
		}
		log.Warn("attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.retry.MaxAttempts),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
	}

	outcome := model.PlaceholderOutcome(target, false)
	outcome.Elapsed = r.now().Sub(start)
	outcome.Attempts = attempts
	if lastErr != nil {
		outcome.Err = lastErr.Error()
	}
	log.Error("target failed", zap.Int("attempts", attempts), zap.String("error", outcome.Err))
	return outcome
}

func (r *Runner) cancelled(target model.Target, start time.Time, attempts int, lastErr error) model.JobOutcome {
	outcome := model.PlaceholderOutcome(target, false)
	outcome.Cancelled = true
	outcome.Elapsed = r.now().Sub(start)
	outcome.Attempts = attempts
	outcome.Err = "cancelled"
	if lastErr != nil {
		outcome.Err = "cancelled after: " + lastErr.Error()
	}
	return outcome
}

// attempt builds one adapter instance, drives it, and closes it on every
// path. A panic inside the adapter becomes a retryable generic failure.
func (r *Runner) attempt(ctx context.Context, target model.Target, timeout time.Duration, log *zap.Logger) (records []model.Record, err error) {
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	env := r.env
	env.Logger = log

	a, err := r.reg.New(target, env)
	if err != nil {
		return nil, adapter.Wrap(adapter.GenericFailure, "construct", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn("adapter close failed", zap.Error(cerr))
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			log.Error("adapter panicked", zap.Any("panic", p))
			records = nil
			err = adapter.Errorf(adapter.GenericFailure, "panic", "%v", p)
		}
	}()

	records, err = adapter.Collect(actx, a, adapter.Params(target.Params), env)
	if err == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return nil, adapter.Wrap(adapter.GenericFailure, "timeout", actx.Err())
	}
	return records, err
}
