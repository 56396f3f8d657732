package query

import (
	"errors"
	"testing"
	"time"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuild_JournalTermsAndDates(t *testing.T) {
	c, err := New(
		WithJournal("Nature"),
		WithTextTerms("income", "poverty"),
		WithMeSHTerms("social class"),
		WithDates(date(1990, 1, 1), date(2015, 12, 31)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := Build(c)
	want := `("Nature"[Journal]) AND ("income"[Text Word] OR "poverty"[Text Word] OR "social class"[MeSH Terms]) AND ("1990/01/01"[Date - Publication] : "2015/12/31"[Date - Publication])`
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestBuild_ClauseOrder(t *testing.T) {
	c := Criteria{
		Journal:   "Science",
		Author:    "Reshma Jagsi",
		Custom:    `"review"[pt]`,
		MeSHTerms: []string{"socioeconomic factors"},
		From:      date(2000, 6, 1),
	}
	got := Build(c)
	want := `("Science"[Journal]) AND (Reshma Jagsi[Author]) AND ("review"[pt]) AND ("socioeconomic factors"[MeSH Terms]) AND ("2000/06/01"[Date - Publication] : "3000"[Date - Publication])`
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestBuild_SingleDimensionHasNoParentheses(t *testing.T) {
	tests := []struct {
		name string
		c    Criteria
		want string
	}{
		{"journal", Criteria{Journal: "Nature"}, `"Nature"[Journal]`},
		{"author", Criteria{Author: "Curtiland Deville"}, `Curtiland Deville[Author]`},
		{"custom", Criteria{Custom: `cancer[tiab]`}, `cancer[tiab]`},
		{"text terms", Criteria{TextTerms: []string{"income", "poverty"}}, `"income"[Text Word] OR "poverty"[Text Word]`},
		{"mesh terms", Criteria{MeSHTerms: []string{"social class"}}, `"social class"[MeSH Terms]`},
		{"dates", Criteria{From: date(1990, 1, 1), To: date(1990, 12, 31)}, `"1990/01/01"[Date - Publication] : "1990/12/31"[Date - Publication]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Build(tt.c); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	if got := Build(Criteria{}); got != "" {
		t.Errorf("expected empty expression, got %q", got)
	}
	if !(Criteria{}).IsEmpty() {
		t.Error("expected zero criteria to be empty")
	}
	if (Criteria{Journal: "Nature"}).IsEmpty() {
		t.Error("expected journal criteria to be non-empty")
	}
}

func TestBuild_ToWithoutFromIsIgnored(t *testing.T) {
	got := Build(Criteria{Journal: "Cell", To: date(2000, 1, 1)})
	if got != `"Cell"[Journal]` {
		t.Errorf("unexpected expression %q", got)
	}
}

func TestBuild_PreservesTermOrder(t *testing.T) {
	got := Build(Criteria{
		TextTerms: []string{"zeta", "alpha"},
		MeSHTerms: []string{"Poverty", "Income"},
	})
	want := `"zeta"[Text Word] OR "alpha"[Text Word] OR "Poverty"[MeSH Terms] OR "Income"[MeSH Terms]`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuild_SkipsEmptyTerms(t *testing.T) {
	got := Build(Criteria{TextTerms: []string{"", "income"}, MeSHTerms: []string{""}})
	if got != `"income"[Text Word]` {
		t.Errorf("unexpected expression %q", got)
	}
}

func TestBuild_CollapsesWhitespace(t *testing.T) {
	got := Build(Criteria{
		Journal: "  New   England\tJournal of Medicine ",
		Custom:  "  cancer[tiab]\n",
	})
	want := `(" New England Journal of Medicine "[Journal]) AND ( cancer[tiab] )`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	c := Criteria{Journal: "Nature", TextTerms: []string{"income"}, From: date(1990, 1, 1), To: date(1991, 1, 1)}
	if Build(c) != Build(c) || c.Expression() != Build(c) {
		t.Error("expected identical output for identical input")
	}
}

func TestNew_RejectsInvertedDates(t *testing.T) {
	_, err := New(WithJournal("Nature"), WithDates(date(2015, 1, 1), date(2014, 1, 1)))
	if !errors.Is(err, daterange.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestWithRange(t *testing.T) {
	r := daterange.Range{From: date(2001, 1, 1), To: date(2001, 12, 31)}
	c, err := New(WithAuthor("Emma Holliday"), WithRange(r))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `(Emma Holliday[Author]) AND ("2001/01/01"[Date - Publication] : "2001/12/31"[Date - Publication])`
	if got := c.Expression(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
