package eutils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/ncbi"
)

func TestSummary_Success(t *testing.T) {
	fixture := loadTestdata(t, "esummary_authors.json")

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if !strings.HasSuffix(r.URL.Path, "/esummary.fcgi") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("id"); got != "1,2,3,4" {
			t.Errorf("expected id=1,2,3,4, got %q", got)
		}
		if got := q.Get("retmode"); got != "json" {
			t.Errorf("expected retmode=json, got %q", got)
		}
		w.Write(fixture)
	}))
	defer srv.Close()

	docs, err := newTestClient(srv.URL).Summary(context.Background(), []string{"1", "2", "3", "4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 1 {
		t.Errorf("expected one batched request, got %d", requests)
	}
	if len(docs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(docs))
	}
	if got := docs["1"].FirstAuthor(); got != "Jagsi R" {
		t.Errorf("expected first author 'Jagsi R', got %q", got)
	}
	if got := docs["2"].FirstAuthor(); got != "Smith J" {
		t.Errorf("expected first author 'Smith J', got %q", got)
	}
	if docs["4"].Error == "" {
		t.Error("expected record 4 to carry a service error")
	}
	if got := docs["4"].FirstAuthor(); got != "" {
		t.Errorf("expected no first author for record 4, got %q", got)
	}
}

func TestSummary_EmptyInput(t *testing.T) {
	docs, err := NewClient(WithAPIKey("test")).Summary(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no records, got %d", len(docs))
	}
}

func TestSummary_BatchTooLarge(t *testing.T) {
	ids := make([]string, MaxSummaryBatch+1)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	if _, err := NewClient(WithAPIKey("test")).Summary(context.Background(), ids); err == nil {
		t.Error("expected error for oversized batch")
	}
}

func TestSummary_UndecodableRecordSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"uids": ["1", "2"],
			"1": {"uid": "1", "authors": [{"name": "Deville C"}]},
			"2": {"uid": "2", "authors": "not-a-list"}}}`))
	}))
	defer srv.Close()

	docs, err := newTestClient(srv.URL).Summary(context.Background(), []string{"1", "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := docs["2"]; ok {
		t.Error("expected undecodable record to be left out")
	}
	if docs["1"].FirstAuthor() != "Deville C" {
		t.Errorf("unexpected record 1: %+v", docs["1"])
	}
}

func TestSummary_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"malformed body", http.StatusOK, "<html>"},
		{"service error", http.StatusOK, `{"error": "Invalid uid"}`},
		{"missing result", http.StatusOK, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Summary(context.Background(), []string{"1"})
			if !errors.Is(err, ncbi.ErrRemoteService) {
				t.Errorf("expected remote service error, got %v", err)
			}
		})
	}
}
