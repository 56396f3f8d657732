package firstauthor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/eutils"
)

// SummaryFetcher returns document summaries keyed by article id.
// *eutils.Client satisfies it.
type SummaryFetcher interface {
	Summary(ctx context.Context, ids []string) (map[string]eutils.DocSummary, error)
}

// Filter selects the articles whose first listed author matches a name.
type Filter struct {
	source    SummaryFetcher
	logger    zerolog.Logger
	batchSize int
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger that receives excluded-record diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Filter) { f.logger = l }
}

// WithBatchSize caps the ids sent per summary request. Values outside
// 1..eutils.MaxSummaryBatch are ignored.
func WithBatchSize(n int) Option {
	return func(f *Filter) {
		if n > 0 && n <= eutils.MaxSummaryBatch {
			f.batchSize = n
		}
	}
}

// NewFilter creates a Filter reading metadata from source.
func NewFilter(source SummaryFetcher, opts ...Option) *Filter {
	f := &Filter{
		source:    source,
		logger:    zerolog.Nop(),
		batchSize: eutils.MaxSummaryBatch,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filter returns the subset of ids whose first author, lowercased, equals
// NormalizeName(author). Input order is preserved. Articles whose record is
// missing, carries a service error or lists no authors are excluded and
// logged at debug level. A failed summary request fails the whole call.
func (f *Filter) Filter(ctx context.Context, author string, ids []string) ([]string, error) {
	target := NormalizeName(author)
	matched := make([]string, 0)
	if target == "" || len(ids) == 0 {
		return matched, nil
	}

	summaries := make(map[string]eutils.DocSummary, len(ids))
	for start := 0; start < len(ids); start += f.batchSize {
		end := min(start+f.batchSize, len(ids))
		batch, err := f.source.Summary(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("fetching summaries for %d articles: %w", end-start, err)
		}
		for id, doc := range batch {
			summaries[id] = doc
		}
	}

	for _, id := range ids {
		first, err := firstAuthor(id, summaries)
		if err != nil {
			var mr *MalformedRecordError
			if errors.As(err, &mr) {
				f.logger.Debug().Str("pmid", mr.ID).Str("reason", mr.Reason).Msg("excluding article")
			}
			continue
		}
		if strings.ToLower(first) == target {
			matched = append(matched, id)
		}
	}
	return matched, nil
}

func firstAuthor(id string, summaries map[string]eutils.DocSummary) (string, error) {
	doc, ok := summaries[id]
	switch {
	case !ok:
		return "", &MalformedRecordError{ID: id, Reason: "no summary returned"}
	case doc.Error != "":
		return "", &MalformedRecordError{ID: id, Reason: doc.Error}
	}
	name := strings.TrimSpace(doc.FirstAuthor())
	if name == "" {
		return "", &MalformedRecordError{ID: id, Reason: "no authors listed"}
	}
	return name, nil
}
