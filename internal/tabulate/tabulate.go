// Package tabulate counts PubMed articles across a cross product of query
// items and date ranges.
package tabulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/cache"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/eutils"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/observability"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/query"
)

// Searcher runs search expressions. *eutils.Client satisfies it.
type Searcher interface {
	Count(ctx context.Context, expression string) (int, error)
	SearchAll(ctx context.Context, expression string, pageSize int) (*eutils.SearchResult, error)
}

// FirstAuthorFilter keeps the ids whose first author is author.
// *firstauthor.Filter satisfies it.
type FirstAuthorFilter interface {
	Filter(ctx context.Context, author string, ids []string) ([]string, error)
}

// ErrNoRanges is returned when an Input carries no date ranges.
var ErrNoRanges = errors.New("no date ranges to tabulate")

// Input lists what to tabulate. Journals and Authors are mutually exclusive;
// with neither, the run counts the keywords alone.
type Input struct {
	Journals  []string          `json:"journals,omitempty"`
	Authors   []string          `json:"authors,omitempty"`
	TextTerms []string          `json:"text_terms,omitempty"`
	MeSHTerms []string          `json:"mesh_terms,omitempty"`
	Ranges    []daterange.Range `json:"ranges"`
}

// Mode derives the tabulation mode.
func (in Input) Mode() (Mode, error) {
	switch {
	case len(in.Journals) > 0 && len(in.Authors) > 0:
		return "", errors.New("journals and authors cannot be tabulated together")
	case len(in.Authors) > 0:
		return ModeAuthors, nil
	case len(in.Journals) > 0:
		return ModeJournals, nil
	default:
		return ModeKeywords, nil
	}
}

func (in Input) hasKeywords() bool {
	return len(in.TextTerms) > 0 || len(in.MeSHTerms) > 0
}

// Driver evaluates tabulations. Each query is issued sequentially; a failed
// query is recorded on its cell and the run continues.
type Driver struct {
	searcher Searcher
	filter   FirstAuthorFilter
	store    cache.Store
	logger   zerolog.Logger
	metrics  *observability.Metrics
	pageSize int
	now      func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithFirstAuthorFilter sets the filter used for first-named counts in
// author mode.
func WithFirstAuthorFilter(f FirstAuthorFilter) Option {
	return func(d *Driver) { d.filter = f }
}

// WithCache sets the result cache. The default caches nothing.
func WithCache(s cache.Store) Option {
	return func(d *Driver) {
		if s != nil {
			d.store = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithPageSize sets the ESearch page size used when article ids are needed.
func WithPageSize(n int) Option {
	return func(d *Driver) { d.pageSize = n }
}

// New creates a Driver.
func New(searcher Searcher, opts ...Option) *Driver {
	d := &Driver{
		searcher: searcher,
		store:    cache.Nop{},
		logger:   zerolog.Nop(),
		pageSize: eutils.DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run tabulates in. It returns an error only for invalid input or when ctx
// is done; in that case the partial report is returned alongside.
func (d *Driver) Run(ctx context.Context, in Input) (*Report, error) {
	mode, err := in.Mode()
	if err != nil {
		return nil, err
	}
	if len(in.Ranges) == 0 {
		return nil, ErrNoRanges
	}
	if mode == ModeAuthors && d.filter == nil {
		return nil, errors.New("author tabulation requires a first-author filter")
	}

	runID := uuid.NewString()
	r := &Report{RunID: runID, Mode: mode, StartedAt: d.now()}
	logger := observability.WithRunContext(d.logger, runID)
	logger.Info().
		Str("mode", string(mode)).
		Int("items", len(in.Journals)+len(in.Authors)).
		Int("ranges", len(in.Ranges)).
		Msg("tabulation started")

	run := &run{Driver: d, report: r, logger: logger}
	if mode == ModeKeywords {
		err = run.keywords(ctx, in)
	} else {
		err = run.entities(ctx, in, mode)
	}

	r.FinishedAt = d.now()
	d.metrics.RecordRun(r.FinishedAt.Sub(r.StartedAt))
	logger.Info().Int("queries", len(r.Log)).Int("failures", r.Failures).Msg("tabulation finished")
	return r, err
}

// run carries the state of one Run call.
type run struct {
	*Driver
	report *Report
	logger zerolog.Logger
}

func (r *run) keywords(ctx context.Context, in Input) error {
	table := newTable("search_counts", []string{KeywordColumn}, in.Ranges)
	r.report.Counts = table

	for i, rng := range in.Ranges {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("tabulation interrupted: %w", err)
		}
		c := query.Criteria{TextTerms: in.TextTerms, MeSHTerms: in.MeSHTerms, From: rng.From, To: rng.To}
		res, err := r.evaluate(ctx, c.Expression(), false)
		table.Rows[i].Cells[0] = cell(res, err)
	}
	return nil
}

func (r *run) entities(ctx context.Context, in Input, mode Mode) error {
	items := in.Journals
	if mode == ModeAuthors {
		items = in.Authors
	}
	counts := newTable("search_counts", items, in.Ranges)
	r.report.Counts = counts
	var keywordCounts *Table
	if in.hasKeywords() {
		keywordCounts = newTable("keyword_search_counts", items, in.Ranges)
		r.report.KeywordCounts = keywordCounts
	}

	articles := make(map[string][]string, len(items))
	incomplete := make(map[string]bool)

	for i, rng := range in.Ranges {
		for j, item := range items {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("tabulation interrupted: %w", err)
			}

			c := query.Criteria{From: rng.From, To: rng.To}
			if mode == ModeAuthors {
				c.Author = item
			} else {
				c.Journal = item
			}

			res, err := r.evaluate(ctx, c.Expression(), mode == ModeAuthors)
			counts.Rows[i].Cells[j] = cell(res, err)
			if mode == ModeAuthors {
				if err != nil {
					incomplete[item] = true
				} else {
					articles[item] = append(articles[item], res.IDs...)
				}
			}

			if keywordCounts != nil {
				c.TextTerms, c.MeSHTerms = in.TextTerms, in.MeSHTerms
				res, err := r.evaluate(ctx, c.Expression(), false)
				keywordCounts.Rows[i].Cells[j] = cell(res, err)
			}
		}
	}

	if mode == ModeAuthors {
		return r.firstNamed(ctx, items, articles, incomplete)
	}
	return nil
}

func (r *run) firstNamed(ctx context.Context, authors []string, articles map[string][]string, incomplete map[string]bool) error {
	for _, author := range authors {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("tabulation interrupted: %w", err)
		}
		fn := FirstNamed{Author: author, Incomplete: incomplete[author]}
		ids, err := r.filter.Filter(ctx, author, articles[author])
		if err != nil {
			fn.Err = err.Error()
			r.report.Failures++
			r.logger.Warn().Err(err).Str("author", author).Msg("first-author filter failed")
		} else {
			fn.Count = len(ids)
			r.metrics.RecordFirstNamed(len(ids))
			r.logger.Debug().Str("author", author).Int("count", fn.Count).Msg("first-named articles")
		}
		r.report.FirstNamed = append(r.report.FirstNamed, fn)
	}
	return nil
}

// evaluate resolves one expression through the cache, falling back to the
// searcher. needIDs forces a full fetch unless the cached entry is complete.
func (r *run) evaluate(ctx context.Context, expr string, needIDs bool) (cache.Result, error) {
	logger := observability.WithQueryContext(r.logger, expr)

	cached, ok, err := r.store.Lookup(ctx, expr)
	if err != nil {
		logger.Warn().Err(err).Msg("cache lookup failed")
	}
	if ok && (!needIDs || cached.Complete) {
		r.record(logger, expr, cached, true, nil)
		return cached, nil
	}

	var res cache.Result
	if needIDs {
		sr, serr := r.searcher.SearchAll(ctx, expr, r.pageSize)
		if serr == nil {
			res = cache.Result{Count: sr.Count, IDs: sr.IDs, Complete: true}
		}
		err = serr
	} else {
		res.Count, err = r.searcher.Count(ctx, expr)
	}
	if err != nil {
		r.record(logger, expr, cache.Result{}, false, err)
		return cache.Result{}, err
	}

	if serr := r.store.Store(ctx, expr, res); serr != nil {
		logger.Warn().Err(serr).Msg("cache store failed")
	}
	r.record(logger, expr, res, false, nil)
	return res, nil
}

func (r *run) record(logger zerolog.Logger, expr string, res cache.Result, cached bool, err error) {
	entry := LogEntry{Expression: expr, Count: res.Count, Cached: cached}
	switch {
	case err != nil:
		entry.Err = err.Error()
		r.report.Failures++
		r.metrics.RecordQuery(observability.OutcomeFailed)
		logger.Warn().Err(err).Msg("query failed")
	case cached:
		r.metrics.RecordQuery(observability.OutcomeCached)
		logger.Debug().Int("count", res.Count).Bool("cached", true).Msg("query evaluated")
	default:
		r.metrics.RecordQuery(observability.OutcomeFetched)
		r.metrics.RecordArticles(len(res.IDs))
		logger.Debug().Int("count", res.Count).Bool("cached", false).Msg("query evaluated")
	}
	r.report.Log = append(r.report.Log, entry)
}

func cell(res cache.Result, err error) Cell {
	if err != nil {
		return Cell{Err: err.Error()}
	}
	return Cell{Count: res.Count}
}
