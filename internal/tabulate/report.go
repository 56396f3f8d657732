package tabulate

import (
	"time"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
)

// Mode selects what the columns of a tabulation are.
type Mode string

const (
	// ModeJournals has one column per journal.
	ModeJournals Mode = "journals"
	// ModeAuthors has one column per author and adds first-named counts.
	ModeAuthors Mode = "authors"
	// ModeKeywords has a single count column.
	ModeKeywords Mode = "keywords"
)

// KeywordColumn names the only column of a keyword-mode table.
const KeywordColumn = "count"

// Cell is one count. Err is set when the query behind it failed.
type Cell struct {
	Count int    `json:"count"`
	Err   string `json:"error,omitempty"`
}

// Failed reports whether the count is missing.
func (c Cell) Failed() bool { return c.Err != "" }

// Row holds the cells of one date range, aligned with Table.Columns.
type Row struct {
	Range daterange.Range `json:"range"`
	Cells []Cell          `json:"cells"`
}

// Table is a grid of counts: one row per date range, one column per item.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

func newTable(name string, columns []string, ranges []daterange.Range) *Table {
	t := &Table{Name: name, Columns: columns, Rows: make([]Row, len(ranges))}
	for i, r := range ranges {
		t.Rows[i] = Row{Range: r, Cells: make([]Cell, len(columns))}
	}
	return t
}

// FirstNamed is the number of articles an author is listed first on.
type FirstNamed struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
	// Incomplete is set when some of the author's date ranges failed, so
	// the count covers only part of the span.
	Incomplete bool   `json:"incomplete,omitempty"`
	Err        string `json:"error,omitempty"`
}

// LogEntry records one evaluated expression.
type LogEntry struct {
	Expression string `json:"expression"`
	Count      int    `json:"count"`
	Cached     bool   `json:"cached,omitempty"`
	Err        string `json:"error,omitempty"`
}

// Report is the outcome of one tabulation run.
type Report struct {
	RunID      string    `json:"run_id"`
	Mode       Mode      `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Counts holds the totals per item (or the keyword counts in keyword mode).
	Counts *Table `json:"search_counts"`
	// KeywordCounts holds the per-item counts restricted to the keywords.
	// It is nil in keyword mode and when no keywords were given.
	KeywordCounts *Table `json:"keyword_search_counts,omitempty"`
	// FirstNamed is populated in author mode, in author order.
	FirstNamed []FirstNamed `json:"first_named_articles,omitempty"`

	Log      []LogEntry `json:"log"`
	Failures int        `json:"failures"`
}
