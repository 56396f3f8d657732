package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/tabulate"
)

// Report file names written by WriteReportFiles.
const (
	SearchCountsFile        = "search_counts.csv"
	KeywordSearchCountsFile = "keyword_search_counts.csv"
	FirstNamedArticlesFile  = "first_named_articles.csv"
	LogFile                 = "log.txt"
)

// WriteReportFiles writes the tables and query log of r into dir, creating
// it if needed, and returns the paths written. Failed cells are left empty.
func WriteReportFiles(dir string, r *tabulate.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var paths []string
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", name, err)
		}
		paths = append(paths, path)
		return nil
	}

	if r.Counts != nil {
		if err := write(SearchCountsFile, func(w io.Writer) error { return writeTableCSV(w, r.Counts) }); err != nil {
			return nil, err
		}
	}
	if r.KeywordCounts != nil {
		if err := write(KeywordSearchCountsFile, func(w io.Writer) error { return writeTableCSV(w, r.KeywordCounts) }); err != nil {
			return nil, err
		}
	}
	if r.Mode == tabulate.ModeAuthors {
		if err := write(FirstNamedArticlesFile, func(w io.Writer) error { return writeFirstNamedCSV(w, r.FirstNamed) }); err != nil {
			return nil, err
		}
	}
	if err := write(LogFile, func(w io.Writer) error { return writeLog(w, r.Log) }); err != nil {
		return nil, err
	}
	return paths, nil
}

// writeTableCSV writes one row per range, keyed by the range start date.
func writeTableCSV(w io.Writer, t *tabulate.Table) error {
	cw := csv.NewWriter(w)
	cw.Write(append([]string{"dates"}, t.Columns...))
	for _, row := range t.Rows {
		record := append([]string{row.Range.From.Format(daterange.DateLayout)}, cellStrings(row.Cells, "")...)
		cw.Write(record)
	}
	cw.Flush()
	return cw.Error()
}

func writeFirstNamedCSV(w io.Writer, rows []tabulate.FirstNamed) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"Author", "No. first name articles"})
	for _, fn := range rows {
		count := strconv.Itoa(fn.Count)
		if fn.Err != "" {
			count = ""
		}
		cw.Write([]string{fn.Author, count})
	}
	cw.Flush()
	return cw.Error()
}

// writeLog writes each expression followed by its count (or error),
// separated by blank lines.
func writeLog(w io.Writer, entries []tabulate.LogEntry) error {
	blocks := make([]string, len(entries))
	for i, e := range entries {
		result := strconv.Itoa(e.Count)
		if e.Err != "" {
			result = "error: " + e.Err
		}
		blocks[i] = e.Expression + "\n" + result
	}
	_, err := io.WriteString(w, strings.Join(blocks, "\n\n"))
	return err
}
