package tabulate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/cache"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/eutils"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/ncbi"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/observability"
)

// fakeSearcher answers from a table keyed by substrings of the expression:
// the first rule whose every fragment appears in the expression wins.
type fakeSearcher struct {
	rules    []rule
	counts   []string
	searches []string
}

type rule struct {
	fragments []string
	ids       []string
	err       error
}

func (f *fakeSearcher) match(expr string) rule {
	for _, r := range f.rules {
		ok := true
		for _, frag := range r.fragments {
			if !strings.Contains(expr, frag) {
				ok = false
				break
			}
		}
		if ok {
			return r
		}
	}
	return rule{}
}

func (f *fakeSearcher) Count(_ context.Context, expr string) (int, error) {
	f.counts = append(f.counts, expr)
	r := f.match(expr)
	if r.err != nil {
		return 0, r.err
	}
	return len(r.ids), nil
}

func (f *fakeSearcher) SearchAll(_ context.Context, expr string, _ int) (*eutils.SearchResult, error) {
	f.searches = append(f.searches, expr)
	r := f.match(expr)
	if r.err != nil {
		return nil, r.err
	}
	return &eutils.SearchResult{Count: len(r.ids), IDs: r.ids}, nil
}

type fakeFilter struct {
	first map[string]bool
	err   error
	calls map[string][]string
}

func (f *fakeFilter) Filter(_ context.Context, author string, ids []string) ([]string, error) {
	if f.calls == nil {
		f.calls = map[string][]string{}
	}
	f.calls[author] = ids
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, id := range ids {
		if f.first[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func twoRanges(t *testing.T) []daterange.Range {
	t.Helper()
	ranges, err := daterange.Partition(day(2000, 1, 1), day(2001, 12, 31), 1)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	return ranges
}

func ids(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('a'+i))
	}
	return out
}

func TestInputMode(t *testing.T) {
	mode, err := Input{Journals: []string{"Nature"}}.Mode()
	require.NoError(t, err)
	assert.Equal(t, ModeJournals, mode)

	mode, err = Input{Authors: []string{"Reshma Jagsi"}}.Mode()
	require.NoError(t, err)
	assert.Equal(t, ModeAuthors, mode)

	mode, err = Input{TextTerms: []string{"income"}}.Mode()
	require.NoError(t, err)
	assert.Equal(t, ModeKeywords, mode)

	_, err = Input{Journals: []string{"Nature"}, Authors: []string{"Reshma Jagsi"}}.Mode()
	assert.Error(t, err)
}

func TestRun_Journals(t *testing.T) {
	s := &fakeSearcher{rules: []rule{
		{fragments: []string{`"Nature"[Journal]`, "income", "2000/01/01"}, ids: ids(2, "n")},
		{fragments: []string{`"Nature"[Journal]`, "2000/01/01"}, ids: ids(5, "n")},
		{fragments: []string{`"Nature"[Journal]`, "income"}, ids: ids(1, "n")},
		{fragments: []string{`"Nature"[Journal]`}, ids: ids(4, "n")},
		{fragments: []string{`"Science"[Journal]`, "income"}, ids: ids(3, "s")},
		{fragments: []string{`"Science"[Journal]`}, ids: ids(6, "s")},
	}}
	ranges := twoRanges(t)

	r, err := New(s).Run(context.Background(), Input{
		Journals:  []string{"Nature", "Science"},
		TextTerms: []string{"income"},
		Ranges:    ranges,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeJournals, r.Mode)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, []string{"Nature", "Science"}, r.Counts.Columns)
	require.Len(t, r.Counts.Rows, 2)
	assert.Equal(t, ranges[0], r.Counts.Rows[0].Range)
	assert.Equal(t, []Cell{{Count: 5}, {Count: 6}}, r.Counts.Rows[0].Cells)
	assert.Equal(t, []Cell{{Count: 4}, {Count: 6}}, r.Counts.Rows[1].Cells)

	require.NotNil(t, r.KeywordCounts)
	assert.Equal(t, []Cell{{Count: 2}, {Count: 3}}, r.KeywordCounts.Rows[0].Cells)
	assert.Equal(t, []Cell{{Count: 1}, {Count: 3}}, r.KeywordCounts.Rows[1].Cells)

	// Ranges outer, items inner, total before keyword query.
	require.Len(t, r.Log, 8)
	assert.Equal(t, `("Nature"[Journal]) AND ("2000/01/01"[Date - Publication] : "2000/12/31"[Date - Publication])`, r.Log[0].Expression)
	assert.Equal(t, `("Nature"[Journal]) AND ("income"[Text Word]) AND ("2000/01/01"[Date - Publication] : "2000/12/31"[Date - Publication])`, r.Log[1].Expression)
	assert.Contains(t, r.Log[2].Expression, `"Science"[Journal]`)
	assert.Contains(t, r.Log[4].Expression, "2001/01/01")

	assert.Empty(t, s.searches, "journal mode needs counts only")
	assert.Zero(t, r.Failures)
	assert.Nil(t, r.FirstNamed)
}

func TestRun_JournalsWithoutKeywords(t *testing.T) {
	s := &fakeSearcher{rules: []rule{{fragments: []string{"Journal"}, ids: ids(3, "x")}}}

	r, err := New(s).Run(context.Background(), Input{Journals: []string{"Cell"}, Ranges: twoRanges(t)})
	require.NoError(t, err)

	assert.Nil(t, r.KeywordCounts)
	assert.Len(t, r.Log, 2)
	assert.Len(t, s.counts, 2)
}

func TestRun_Keywords(t *testing.T) {
	s := &fakeSearcher{rules: []rule{
		{fragments: []string{"2000/01/01"}, ids: ids(7, "k")},
		{fragments: []string{"2001/01/01"}, ids: ids(9, "k")},
	}}

	r, err := New(s).Run(context.Background(), Input{
		TextTerms: []string{"income"},
		MeSHTerms: []string{"social class"},
		Ranges:    twoRanges(t),
	})
	require.NoError(t, err)

	assert.Equal(t, ModeKeywords, r.Mode)
	assert.Equal(t, []string{KeywordColumn}, r.Counts.Columns)
	assert.Equal(t, 7, r.Counts.Rows[0].Cells[0].Count)
	assert.Equal(t, 9, r.Counts.Rows[1].Cells[0].Count)
	assert.Nil(t, r.KeywordCounts)
	assert.Equal(t,
		`("income"[Text Word] OR "social class"[MeSH Terms]) AND ("2000/01/01"[Date - Publication] : "2000/12/31"[Date - Publication])`,
		r.Log[0].Expression)
}

func TestRun_AuthorsCountsFirstNamed(t *testing.T) {
	s := &fakeSearcher{rules: []rule{
		{fragments: []string{"Reshma Jagsi[Author]", "income"}, ids: []string{"1"}},
		{fragments: []string{"Reshma Jagsi[Author]", "2000/01/01"}, ids: []string{"1", "2"}},
		{fragments: []string{"Reshma Jagsi[Author]", "2001/01/01"}, ids: []string{"3"}},
	}}
	f := &fakeFilter{first: map[string]bool{"1": true, "3": true}}

	r, err := New(s, WithFirstAuthorFilter(f)).Run(context.Background(), Input{
		Authors:   []string{"Reshma Jagsi"},
		TextTerms: []string{"income"},
		Ranges:    twoRanges(t),
	})
	require.NoError(t, err)

	assert.Equal(t, ModeAuthors, r.Mode)
	assert.Equal(t, 2, r.Counts.Rows[0].Cells[0].Count)
	assert.Equal(t, 1, r.Counts.Rows[1].Cells[0].Count)
	assert.Equal(t, []string{"1", "2", "3"}, f.calls["Reshma Jagsi"])
	assert.Equal(t, []FirstNamed{{Author: "Reshma Jagsi", Count: 2}}, r.FirstNamed)
	assert.Len(t, s.searches, 2, "author totals need full id sets")
	assert.Len(t, s.counts, 2, "keyword queries need counts only")
}

func TestRun_AuthorsRequireFilter(t *testing.T) {
	_, err := New(&fakeSearcher{}).Run(context.Background(), Input{
		Authors: []string{"Reshma Jagsi"},
		Ranges:  twoRanges(t),
	})
	assert.Error(t, err)
}

func TestRun_RejectsInvalidInput(t *testing.T) {
	d := New(&fakeSearcher{})

	_, err := d.Run(context.Background(), Input{Journals: []string{"Nature"}})
	assert.ErrorIs(t, err, ErrNoRanges)

	_, err = d.Run(context.Background(), Input{
		Journals: []string{"Nature"},
		Authors:  []string{"Reshma Jagsi"},
		Ranges:   twoRanges(t),
	})
	assert.Error(t, err)
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	remote := &ncbi.RemoteServiceError{Endpoint: "esearch.fcgi", StatusCode: 502}
	s := &fakeSearcher{rules: []rule{
		{fragments: []string{`"Nature"[Journal]`, "2000/01/01"}, err: remote},
		{fragments: []string{"Journal"}, ids: ids(2, "x")},
	}}
	metrics := observability.NewMetrics("test")

	r, err := New(s, WithMetrics(metrics)).Run(context.Background(), Input{
		Journals: []string{"Nature", "Science"},
		Ranges:   twoRanges(t),
	})
	require.NoError(t, err)

	first := r.Counts.Rows[0].Cells[0]
	assert.True(t, first.Failed())
	assert.Contains(t, first.Err, "502")
	assert.Equal(t, Cell{Count: 2}, r.Counts.Rows[0].Cells[1])
	assert.Equal(t, Cell{Count: 2}, r.Counts.Rows[1].Cells[0])
	assert.Equal(t, 1, r.Failures)
	assert.NotEmpty(t, r.Log[0].Err)
	assert.Len(t, r.Log, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueriesTotal.WithLabelValues(observability.OutcomeFailed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.QueriesTotal.WithLabelValues(observability.OutcomeFetched)))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.RunDuration))
}

func TestRun_AuthorFailureMarksFirstNamedIncomplete(t *testing.T) {
	s := &fakeSearcher{rules: []rule{
		{fragments: []string{"2000/01/01"}, err: errors.New("boom")},
		{fragments: []string{"Author"}, ids: []string{"5"}},
	}}
	f := &fakeFilter{first: map[string]bool{"5": true}}

	r, err := New(s, WithFirstAuthorFilter(f)).Run(context.Background(), Input{
		Authors: []string{"Emma Holliday"},
		Ranges:  twoRanges(t),
	})
	require.NoError(t, err)
	assert.Equal(t, []FirstNamed{{Author: "Emma Holliday", Count: 1, Incomplete: true}}, r.FirstNamed)
}

func TestRun_FirstAuthorFilterFailure(t *testing.T) {
	s := &fakeSearcher{rules: []rule{{fragments: []string{"Author"}, ids: []string{"5"}}}}
	f := &fakeFilter{err: errors.New("esummary down")}

	r, err := New(s, WithFirstAuthorFilter(f)).Run(context.Background(), Input{
		Authors: []string{"Emma Holliday"},
		Ranges:  twoRanges(t),
	})
	require.NoError(t, err)
	require.Len(t, r.FirstNamed, 1)
	assert.Equal(t, "esummary down", r.FirstNamed[0].Err)
	assert.Equal(t, 1, r.Failures)
}

func TestRun_UsesCache(t *testing.T) {
	s := &fakeSearcher{rules: []rule{{fragments: []string{"Journal"}, ids: ids(4, "c")}}}
	store := cache.NewMemory()
	in := Input{Journals: []string{"Lancet"}, Ranges: twoRanges(t)}

	_, err := New(s, WithCache(store)).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, s.counts, 2)

	r, err := New(s, WithCache(store)).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, s.counts, 2, "second run served from cache")
	assert.True(t, r.Log[0].Cached)
	assert.Equal(t, 4, r.Counts.Rows[0].Cells[0].Count)
}

func TestRun_CountOnlyCacheEntryRefetchedForIDs(t *testing.T) {
	s := &fakeSearcher{rules: []rule{{fragments: []string{"Author"}, ids: []string{"1", "2"}}}}
	store := cache.NewMemory()
	in := Input{Authors: []string{"Emma Holliday"}, Ranges: twoRanges(t)[:1]}

	c := `(Emma Holliday[Author]) AND ("2000/01/01"[Date - Publication] : "2000/12/31"[Date - Publication])`
	require.NoError(t, store.Store(context.Background(), c, cache.Result{Count: 2}))

	r, err := New(s, WithCache(store), WithFirstAuthorFilter(&fakeFilter{})).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, s.searches, 1)
	assert.False(t, r.Log[0].Cached)

	got, ok, err := store.Lookup(context.Background(), c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Complete)
	assert.Equal(t, []string{"1", "2"}, got.IDs)
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	s := &fakeSearcher{rules: []rule{{fragments: []string{"Journal"}, ids: ids(1, "z")}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := New(s).Run(ctx, Input{Journals: []string{"Nature"}, Ranges: twoRanges(t)})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, r)
	assert.Empty(t, s.counts)
	assert.False(t, r.FinishedAt.IsZero())
}
