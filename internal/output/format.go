// Package output renders pubmed-tabulate results as plain text, JSON, CSV
// or rich terminal tables, and writes tabulation reports to disk.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/eutils"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/mesh"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/tabulate"
)

// Output formats accepted by ConfigFor.
const (
	FormatPlain = "plain"
	FormatJSON  = "json"
	FormatHuman = "human"
	FormatCSV   = "csv"
)

// OutputConfig controls which output mode is active.
type OutputConfig struct {
	JSON  bool // Structured JSON
	Human bool // Rich terminal output with color
	CSV   bool // Comma-separated values
	// Dir, when set, receives the report files of a tabulation
	// (works alongside any mode).
	Dir string
}

// ConfigFor maps a format name to an OutputConfig.
func ConfigFor(format, dir string) (OutputConfig, error) {
	cfg := OutputConfig{Dir: dir}
	switch strings.ToLower(format) {
	case "", FormatPlain:
	case FormatJSON:
		cfg.JSON = true
	case FormatHuman:
		cfg.Human = true
	case FormatCSV:
		cfg.CSV = true
	default:
		return OutputConfig{}, fmt.Errorf("unknown output format %q", format)
	}
	return cfg, nil
}

// CountResult is the outcome of the count command.
type CountResult struct {
	Expression       string   `json:"expression"`
	Count            int      `json:"count"`
	IDs              []string `json:"ids,omitempty"`
	QueryTranslation string   `json:"query_translation,omitempty"`
}

// FromSearch builds a CountResult from an ESearch result.
func FromSearch(expression string, r *eutils.SearchResult) CountResult {
	return CountResult{
		Expression:       expression,
		Count:            r.Count,
		IDs:              r.IDs,
		QueryTranslation: r.QueryTranslation,
	}
}

// FirstAuthorResult is the outcome of the first-author command.
type FirstAuthorResult struct {
	Author     string   `json:"author"`
	Normalized string   `json:"normalized"`
	Checked    int      `json:"checked"`
	IDs        []string `json:"ids"`
}

// FormatExpression writes a search expression.
func FormatExpression(w io.Writer, expression string, cfg OutputConfig) error {
	if cfg.JSON {
		return writeJSON(w, map[string]string{"expression": expression})
	}
	if cfg.Human {
		return formatExpressionHuman(w, expression)
	}
	_, err := fmt.Fprintln(w, expression)
	return err
}

// FormatRanges writes a date range partition.
func FormatRanges(w io.Writer, ranges []daterange.Range, cfg OutputConfig) error {
	if cfg.JSON {
		return writeJSON(w, ranges)
	}
	if cfg.Human {
		return formatRangesHuman(w, ranges)
	}
	if cfg.CSV {
		cw := csv.NewWriter(w)
		cw.Write([]string{"from", "to"})
		for _, r := range ranges {
			cw.Write([]string{r.From.Format(daterange.DateLayout), r.To.Format(daterange.DateLayout)})
		}
		cw.Flush()
		return cw.Error()
	}
	for _, r := range ranges {
		fmt.Fprintln(w, r.String())
	}
	return nil
}

// FormatCount writes a count result.
func FormatCount(w io.Writer, result CountResult, cfg OutputConfig) error {
	if cfg.JSON {
		return writeJSON(w, result)
	}
	if cfg.Human {
		return formatCountHuman(w, result)
	}
	if cfg.CSV {
		cw := csv.NewWriter(w)
		cw.Write([]string{"expression", "count"})
		cw.Write([]string{result.Expression, strconv.Itoa(result.Count)})
		cw.Flush()
		return cw.Error()
	}
	return formatCountPlain(w, result)
}

// FormatFirstAuthor writes the articles kept by the first-author filter.
func FormatFirstAuthor(w io.Writer, result FirstAuthorResult, cfg OutputConfig) error {
	if cfg.JSON {
		return writeJSON(w, result)
	}
	if cfg.Human {
		return formatFirstAuthorHuman(w, result)
	}
	fmt.Fprintf(w, "%s (%s): first author on %d of %d articles\n",
		result.Author, result.Normalized, len(result.IDs), result.Checked)
	for i, id := range result.IDs {
		fmt.Fprintf(w, "  %d. PMID: %s\n", i+1, id)
	}
	return nil
}

// FormatReport writes a tabulation report, and its files when cfg.Dir is set.
func FormatReport(w io.Writer, r *tabulate.Report, cfg OutputConfig) error {
	var paths []string
	if cfg.Dir != "" {
		var err error
		if paths, err = WriteReportFiles(cfg.Dir, r); err != nil {
			return fmt.Errorf("report export failed: %w", err)
		}
	}
	if cfg.JSON {
		return writeJSON(w, r)
	}
	if cfg.CSV {
		return writeTableCSV(w, r.Counts)
	}

	var err error
	if cfg.Human {
		err = formatReportHuman(w, r)
	} else {
		err = formatReportPlain(w, r)
	}
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(w, "wrote %s\n", p)
	}
	return nil
}

// FormatMeSHRecord writes a MeSH descriptor.
func FormatMeSHRecord(w io.Writer, record *mesh.Descriptor, cfg OutputConfig) error {
	if cfg.JSON {
		return writeJSON(w, record)
	}
	if cfg.Human {
		return formatMeSHHuman(w, record)
	}
	return formatMeSHPlain(w, record)
}

// --- Plain text formatters (default) ---

func formatCountPlain(w io.Writer, result CountResult) error {
	fmt.Fprintf(w, "Query: %s\n", result.Expression)
	if result.QueryTranslation != "" && result.QueryTranslation != result.Expression {
		fmt.Fprintf(w, "Translated: %s\n", result.QueryTranslation)
	}
	if result.Count == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	fmt.Fprintf(w, "Found %d results\n", result.Count)

	if len(result.IDs) > 0 {
		fmt.Fprintln(w)
		for i, id := range result.IDs {
			fmt.Fprintf(w, "  %d. PMID: %s\n", i+1, id)
		}
	}
	return nil
}

func formatReportPlain(w io.Writer, r *tabulate.Report) error {
	fmt.Fprintf(w, "Run %s (%s mode)\n", r.RunID, r.Mode)

	for _, t := range []*tabulate.Table{r.Counts, r.KeywordCounts} {
		if t == nil {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", t.Name)
		fmt.Fprintf(w, "  %s\t%s\n", "dates", strings.Join(t.Columns, "\t"))
		for _, row := range t.Rows {
			fmt.Fprintf(w, "  %s\t%s\n", row.Range.String(), strings.Join(cellStrings(row.Cells, "ERR"), "\t"))
		}
	}

	if len(r.FirstNamed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "first_named_articles:")
		for _, fn := range r.FirstNamed {
			fmt.Fprintf(w, "  %s\t%s\n", fn.Author, firstNamedString(fn))
		}
	}

	if r.Failures > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%d of %d queries failed; see the log for details.\n", r.Failures, len(r.Log))
	}
	return nil
}

func formatMeSHPlain(w io.Writer, record *mesh.Descriptor) error {
	fmt.Fprintf(w, "MeSH Term: %s\n", record.Name)
	fmt.Fprintf(w, "UI: %s\n", record.UI)

	if len(record.TreeNumbers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tree Numbers:")
		for _, tn := range record.TreeNumbers {
			fmt.Fprintf(w, "  %s\n", tn)
		}
	}
	if record.ScopeNote != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Scope Note:")
		fmt.Fprintf(w, "  %s\n", record.ScopeNote)
	}
	if len(record.EntryTerms) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Entry Terms (synonyms):")
		for _, et := range record.EntryTerms {
			fmt.Fprintf(w, "  - %s\n", et)
		}
	}
	return nil
}

func cellStrings(cells []tabulate.Cell, failed string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if c.Failed() {
			out[i] = failed
		} else {
			out[i] = strconv.Itoa(c.Count)
		}
	}
	return out
}

func firstNamedString(fn tabulate.FirstNamed) string {
	switch {
	case fn.Err != "":
		return "ERR"
	case fn.Incomplete:
		return strconv.Itoa(fn.Count) + " (incomplete)"
	default:
		return strconv.Itoa(fn.Count)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
