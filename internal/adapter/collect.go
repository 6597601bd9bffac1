package adapter

import (
	"context"

	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// Collect drives a single adapter instance to completion and returns its
// filtered records. Adapters implementing Collector run their own loop;
// all others go through Drive. An unclassified Collector error is treated
// like an extraction failure in Drive and is fatal; a Collector that wants
// a retry returns an error built with Wrap.
func Collect(ctx context.Context, a Adapter, params Params, env Env) ([]model.Record, error) {
	if c, ok := a.(Collector); ok {
		records, err := c.Collect(ctx, params, env)
		if err != nil {
			return nil, classify(DataExtractionFailure, "collect", err)
		}
		return records, nil
	}
	return Drive(ctx, a, params, env)
}

// Drive runs the default loop: search, then extract and paginate until
// NextPage returns nil, the same page is served twice in a row, or
// env.MaxPages pages have been extracted. Records from a failed run are
// discarded. Unclassified errors take the kind of the phase they came from.
func Drive(ctx context.Context, a Adapter, params Params, env Env) ([]model.Record, error) {
	log := env.Log().With(zap.String("component", "adapter.drive"))
	m := newMachine(log)

	fail := func(err error) ([]model.Record, error) {
		m.to(StateFailed)
		return nil, err
	}

	page, err := a.Search(ctx, params)
	if err != nil {
		return fail(classify(SearchFailure, "search", err))
	}
	m.to(StateSearched)

	var (
		records []model.Record
		lastFP  string
		pages   int
	)
	for page != nil {
		if err := ctx.Err(); err != nil {
			return fail(classify(GenericFailure, "collect", err))
		}

		fp := page.Fingerprint()
		if fp != "" && fp == lastFP {
			log.Warn("page repeated, stopping pagination", zap.Int("pages", pages))
			break
		}
		lastFP = fp

		m.to(StateExtracting)
		recs, err := a.ExtractData(ctx, page)
		if err != nil {
			return fail(classify(DataExtractionFailure, "extract", err))
		}
		records = append(records, recs...)
		pages++

		if env.MaxPages > 0 && pages >= env.MaxPages {
			log.Warn("max pages reached, stopping pagination", zap.Int("max_pages", env.MaxPages))
			break
		}

		m.to(StatePaginating)
		page, err = a.NextPage(ctx)
		if err != nil {
			return fail(classify(PaginationFailure, "next_page", err))
		}
	}
	m.to(StateDone)

	log.Debug("collection complete", zap.Int("pages", pages), zap.Int("records", len(records)))
	return env.Filter.Apply(records), nil
}
