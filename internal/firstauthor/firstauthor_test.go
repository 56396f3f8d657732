package firstauthor

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/eutils"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/ncbi"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Reshma Jagsi", "jagsi r"},
		{"Curtiland A Deville", "deville c a"},
		{"  Emma Holliday ", "holliday e"},
		{"Mary Ann Van Dyke", "dyke m"},
		{"Cher", "cher c"},
		{"Madonna", "madonna m"},
		{"", ""},
		{"Élodie Martin", "martin é"},
		{"Reshma  Jagsi", "jagsi r"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeFetcher struct {
	docs    map[string]eutils.DocSummary
	err     error
	batches [][]string
}

func (f *fakeFetcher) Summary(_ context.Context, ids []string) (map[string]eutils.DocSummary, error) {
	f.batches = append(f.batches, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]eutils.DocSummary)
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func doc(id string, authors ...string) eutils.DocSummary {
	d := eutils.DocSummary{UID: id}
	for _, a := range authors {
		d.Authors = append(d.Authors, eutils.SummaryAuthor{Name: a})
	}
	return d
}

func TestFilter_KeepsMatchingFirstAuthors(t *testing.T) {
	src := &fakeFetcher{docs: map[string]eutils.DocSummary{
		"1": doc("1", "Jagsi R", "Griffith KA"),
		"2": doc("2", "Smith J", "Jagsi R"),
		"3": doc("3", "Jagsi R"),
	}}

	got, err := NewFilter(src).Filter(context.Background(), "Reshma Jagsi", []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("expected [1 3], got %v", got)
	}
	if len(src.batches) != 1 {
		t.Errorf("expected one batched request, got %d", len(src.batches))
	}
}

func TestFilter_PreservesInputOrder(t *testing.T) {
	src := &fakeFetcher{docs: map[string]eutils.DocSummary{
		"9": doc("9", "Jagsi R"),
		"5": doc("5", "Jagsi R"),
		"7": doc("7", "Jagsi R"),
	}}
	got, err := NewFilter(src).Filter(context.Background(), "Reshma Jagsi", []string{"9", "5", "7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"9", "5", "7"}) {
		t.Errorf("unexpected order %v", got)
	}
}

func TestFilter_EmptyInputsSkipRequests(t *testing.T) {
	src := &fakeFetcher{}
	f := NewFilter(src)

	got, err := f.Filter(context.Background(), "Reshma Jagsi", nil)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result, got %v, %v", got, err)
	}
	got, err = f.Filter(context.Background(), "   ", []string{"1"})
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result, got %v, %v", got, err)
	}
	if len(src.batches) != 0 {
		t.Errorf("expected no requests, got %d", len(src.batches))
	}
}

func TestFilter_ExcludesMalformedRecords(t *testing.T) {
	src := &fakeFetcher{docs: map[string]eutils.DocSummary{
		"1": doc("1", "Jagsi R"),
		"2": doc("2"),
		"4": {UID: "4", Error: "cannot get document summary"},
	}}
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	got, err := NewFilter(src, WithLogger(logger)).Filter(context.Background(), "Reshma Jagsi", []string{"1", "2", "3", "4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("expected [1], got %v", got)
	}

	out := buf.String()
	for _, want := range []string{"no authors listed", "no summary returned", "cannot get document summary"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to mention %q, got %s", want, out)
		}
	}
}

func TestFilter_ChunksLargeInputs(t *testing.T) {
	ids := make([]string, 0, 7)
	docs := map[string]eutils.DocSummary{}
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		ids = append(ids, id)
		docs[id] = doc(id, "Jagsi R")
	}
	src := &fakeFetcher{docs: docs}

	got, err := NewFilter(src, WithBatchSize(3)).Filter(context.Background(), "Reshma Jagsi", ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, ids) {
		t.Errorf("expected all ids, got %v", got)
	}
	want := [][]string{{"1", "2", "3"}, {"4", "5", "6"}, {"7"}}
	if !reflect.DeepEqual(src.batches, want) {
		t.Errorf("expected batches %v, got %v", want, src.batches)
	}
}

func TestFilter_InvalidBatchSizeIgnored(t *testing.T) {
	f := NewFilter(&fakeFetcher{}, WithBatchSize(0), WithBatchSize(eutils.MaxSummaryBatch+1))
	if f.batchSize != eutils.MaxSummaryBatch {
		t.Errorf("expected default batch size, got %d", f.batchSize)
	}
}

func TestFilter_RemoteFailurePropagates(t *testing.T) {
	src := &fakeFetcher{err: &ncbi.RemoteServiceError{Endpoint: "esummary.fcgi", StatusCode: 503}}

	got, err := NewFilter(src).Filter(context.Background(), "Reshma Jagsi", []string{"1"})
	if got != nil {
		t.Errorf("expected nil result, got %v", got)
	}
	if !errors.Is(err, ncbi.ErrRemoteService) {
		t.Errorf("expected remote service error, got %v", err)
	}
}

func TestMalformedRecordError(t *testing.T) {
	err := error(&MalformedRecordError{ID: "7", Reason: "no authors listed"})
	if !errors.Is(err, ErrMalformedRecord) {
		t.Error("expected errors.Is to match ErrMalformedRecord")
	}
	if err.Error() != "article 7: no authors listed" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestFilter_AgainstESummary(t *testing.T) {
	fixture, err := os.ReadFile(filepath.Join("..", "eutils", "testdata", "esummary_authors.json"))
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("id") != "1,2,3,4" {
			t.Errorf("unexpected id parameter %q", r.URL.Query().Get("id"))
		}
		w.Write(fixture)
	}))
	defer srv.Close()

	client := eutils.NewClient(eutils.WithBaseURL(srv.URL), eutils.WithAPIKey("test"), ncbi.WithRateLimit(1000))
	got, err := NewFilter(client).Filter(context.Background(), "Reshma Jagsi", []string{"1", "2", "3", "4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("expected [1 3], got %v", got)
	}
	if requests != 1 {
		t.Errorf("expected 1 request, got %d", requests)
	}
}
