// Package batch runs a list of targets end to end: estimate, collect each
// target sequentially, update duration history, aggregate and write the
// bundle to the output cache.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/cache"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/estimate"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/export"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/runner"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/store"
)

var (
	// ErrCancelled is returned when the run stopped on the cancellation flag.
	ErrCancelled = eris.New("batch: cancelled")
	// ErrNoTargets is returned when Run is called with nothing to do.
	ErrNoTargets = eris.New("batch: no targets selected")
)

// TargetRunner runs one target to completion.
type TargetRunner interface {
	Run(ctx context.Context, target model.Target, timeout time.Duration) model.JobOutcome
}

// Options tunes an Engine.
type Options struct {
	// Timeout bounds each attempt. Zero means no timeout.
	Timeout time.Duration
	// Format selects the bundle encoder: "xlsx" (default) or "json".
	Format string
}

// Report describes a finished run.
type Report struct {
	RunID           string
	Outcomes        []model.JobOutcome
	Bundle          *export.Bundle
	OutputPath      string
	EstimateMinutes int
	EstimateSeconds int
}

// Succeeded counts outcomes that finished successfully.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Engine owns one batch. It is not safe for concurrent use.
type Engine struct {
	runner TargetRunner
	flag   *runner.Flag
	stats  *estimate.Store
	cache  *cache.Manager
	store  store.Store
	opts   Options
	log    *zap.Logger
}

// New creates an Engine. st may be nil to skip run history.
func New(r TargetRunner, flag *runner.Flag, stats *estimate.Store, cm *cache.Manager, st store.Store, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.L()
	}
	if opts.Format == "" {
		opts.Format = "xlsx"
	}
	return &Engine{
		runner: r,
		flag:   flag,
		stats:  stats,
		cache:  cm,
		store:  st,
		opts:   opts,
		log:    log.With(zap.String("component", "batch")),
	}
}

// Run executes targets in order. On cancellation it returns ErrCancelled and
// writes no bundle; when no target produced anything it returns
// export.ErrNoRecords. The report is returned in every case.
func (e *Engine) Run(ctx context.Context, targets []model.Target) (*Report, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	report := &Report{}

	stats, err := e.stats.Load()
	if err != nil {
		e.log.Warn("batch: duration history unreadable, starting fresh", zap.String("path", e.stats.Path()), zap.Error(err))
		stats = estimate.NewAverageStats()
	}
	report.EstimateMinutes, report.EstimateSeconds = estimate.Estimate(stats, targets)
	e.log.Info("batch: starting",
		zap.Int("targets", len(targets)),
		zap.Int("estimate_minutes", report.EstimateMinutes),
		zap.Int("estimate_seconds", report.EstimateSeconds),
	)

	if e.store != nil {
		keys := make([]string, len(targets))
		for i, t := range targets {
			keys[i] = t.Key
		}
		run, err := e.store.CreateRun(ctx, keys)
		if err != nil {
			return nil, eris.Wrap(err, "batch: create run")
		}
		report.RunID = run.ID
	}

	var (
		observations []estimate.Observation
		cancelled    bool
	)
	for _, t := range targets {
		if e.flag.IsSet() || ctx.Err() != nil {
			e.log.Warn("batch: cancellation requested, skipping remaining targets", zap.String("next", t.Key))
			cancelled = true
			break
		}

		outcome := e.runner.Run(ctx, t, e.opts.Timeout)
		report.Outcomes = append(report.Outcomes, outcome)
		e.logOutcome(outcome)
		e.recordResult(ctx, report.RunID, outcome)

		if outcome.Cancelled {
			cancelled = true
			break
		}
		observations = append(observations, estimate.Observation{Target: t, Seconds: outcome.ElapsedSeconds()})
	}

	if len(observations) > 0 {
		if _, err := e.stats.Update(stats, observations); err != nil {
			e.log.Error("batch: failed to save duration history", zap.String("path", e.stats.Path()), zap.Error(err))
		}
	}

	if cancelled {
		e.finish(ctx, report.RunID, model.RunStatusCancelled, "", ErrCancelled)
		return report, ErrCancelled
	}

	bundle, err := export.Aggregate(report.Outcomes)
	if err != nil {
		e.finish(ctx, report.RunID, model.RunStatusFailed, "", err)
		return report, err
	}
	report.Bundle = bundle

	path, err := e.cache.Write(EncoderFor(e.opts.Format, bundle))
	if err != nil {
		err = eris.Wrap(err, "batch: write bundle")
		e.finish(ctx, report.RunID, model.RunStatusFailed, "", err)
		return report, err
	}
	report.OutputPath = path

	e.log.Info("batch: complete",
		zap.String("output", path),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("targets", len(report.Outcomes)),
		zap.Int("records", bundle.RecordCount()),
	)
	e.finish(ctx, report.RunID, model.RunStatusComplete, path, nil)
	return report, nil
}

func (e *Engine) logOutcome(o model.JobOutcome) {
	fields := []zap.Field{
		zap.String("target", o.Target.Key),
		zap.Bool("success", o.Success),
		zap.Int("attempts", o.Attempts),
		zap.Int("records", len(o.Records)),
		zap.Float64("elapsed_seconds", o.ElapsedSeconds()),
	}
	if o.Success {
		e.log.Info("batch: target finished", fields...)
		return
	}
	e.log.Warn("batch: target failed", append(fields, zap.String("error", o.Err), zap.Bool("cancelled", o.Cancelled))...)
}

func (e *Engine) recordResult(ctx context.Context, runID string, o model.JobOutcome) {
	if e.store == nil || runID == "" {
		return
	}
	if err := e.store.AddResults(context.WithoutCancel(ctx), runID, []model.TargetResult{model.ResultFromOutcome(o)}); err != nil {
		e.log.Warn("batch: failed to record target result", zap.String("target", o.Target.Key), zap.Error(err))
	}
}

func (e *Engine) finish(ctx context.Context, runID string, status model.RunStatus, path string, runErr error) {
	if e.store == nil || runID == "" {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := e.store.FinishRun(context.WithoutCancel(ctx), runID, status, path, msg); err != nil {
		e.log.Warn("batch: failed to update run status", zap.String("run_id", runID), zap.Error(err))
	}
}

// EncoderFor returns the bundle encoder for an output format; anything but
// "json" is xlsx.
func EncoderFor(format string, b *export.Bundle) cache.Encoder {
	if format == "json" {
		return export.JSONEncoder{Bundle: b}
	}
	return export.XLSXEncoder{Bundle: b}
}

// IsRunLevel reports whether err is one of the run-level stop conditions
// rather than an infrastructure failure.
func IsRunLevel(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, export.ErrNoRecords)
}
