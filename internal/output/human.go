package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/mesh"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/tabulate"
)

// --- Styles ---

var (
	cyan       = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	bold       = lipgloss.NewStyle().Bold(true)
	dim        = lipgloss.NewStyle().Faint(true)
	yellow     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	red        = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	magenta    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Headers(headers...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
			}
			return lipgloss.NewStyle()
		})
}

// --- Expression / ranges / counts ---

func formatExpressionHuman(w io.Writer, expression string) error {
	if expression == "" {
		fmt.Fprintln(w, dim.Render("(empty expression)"))
		return nil
	}
	fmt.Fprintln(w, boxStyle.Render(cyan.Render(expression)))
	return nil
}

func formatRangesHuman(w io.Writer, ranges []daterange.Range) error {
	var rows [][]string
	for i, r := range ranges {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.From.Format(daterange.DateLayout),
			r.To.Format(daterange.DateLayout),
		})
	}
	fmt.Fprintf(w, "📅 %s\n\n", bold.Render(fmt.Sprintf("%d date ranges", len(ranges))))
	fmt.Fprintln(w, newTable("#", "From", "To").Rows(rows...).Render())
	return nil
}

func formatCountHuman(w io.Writer, result CountResult) error {
	fmt.Fprintf(w, "   Query: %s\n", dim.Render(result.Expression))
	if result.Count == 0 {
		fmt.Fprintln(w, "🔬 No results found.")
		return nil
	}
	fmt.Fprintln(w, bold.Render(fmt.Sprintf("🔬 Found %d results", result.Count)))

	if len(result.IDs) > 0 {
		var rows [][]string
		for i, id := range result.IDs {
			rows = append(rows, []string{strconv.Itoa(i + 1), cyan.Render(id)})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, newTable("#", "PMID").Rows(rows...).Render())
	}
	return nil
}

func formatFirstAuthorHuman(w io.Writer, result FirstAuthorResult) error {
	header := fmt.Sprintf("👤 %s %s", bold.Render(result.Author), dim.Render("("+result.Normalized+")"))
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "   First author on %s of %d articles\n\n",
		cyan.Render(strconv.Itoa(len(result.IDs))), result.Checked)

	if len(result.IDs) == 0 {
		return nil
	}
	var rows [][]string
	for i, id := range result.IDs {
		rows = append(rows, []string{strconv.Itoa(i + 1), cyan.Render(id)})
	}
	fmt.Fprintln(w, newTable("#", "PMID").Rows(rows...).Render())
	return nil
}

// --- Tabulation report ---

func formatReportHuman(w io.Writer, r *tabulate.Report) error {
	card := bold.Render("📊 Tabulation "+string(r.Mode)) + "\n" +
		dim.Render("run "+r.RunID) + "\n" +
		fmt.Sprintf("%d queries", len(r.Log))
	if r.Failures > 0 {
		card += " · " + red.Render(fmt.Sprintf("%d failed", r.Failures))
	}
	fmt.Fprintln(w, boxStyle.Render(card))

	for _, t := range []*tabulate.Table{r.Counts, r.KeywordCounts} {
		if t == nil {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", labelStyle.Render(title(t.Name)))

		var rows [][]string
		for _, row := range t.Rows {
			rows = append(rows, append([]string{row.Range.String()}, cellStrings(row.Cells, yellow.Render("ERR"))...))
		}
		fmt.Fprintln(w, newTable(append([]string{"Dates"}, t.Columns...)...).Rows(rows...).Render())
	}

	if len(r.FirstNamed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("First-named articles"))
		var rows [][]string
		for _, fn := range r.FirstNamed {
			value := firstNamedString(fn)
			if fn.Err != "" {
				value = yellow.Render(value)
			}
			rows = append(rows, []string{fn.Author, value})
		}
		fmt.Fprintln(w, newTable("Author", "Articles").Rows(rows...).Render())
	}
	return nil
}

func title(name string) string {
	words := strings.Split(name, "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// --- MeSH ---

func formatMeSHHuman(w io.Writer, record *mesh.Descriptor) error {
	fmt.Fprintf(w, "🏷️  %s  %s\n\n", bold.Render(record.Name), dim.Render(record.UI))

	if len(record.TreeNumbers) > 0 {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("Tree Numbers:"))
		for _, tn := range record.TreeNumbers {
			fmt.Fprintf(w, "    %s %s\n", magenta.Render("├"), tn)
		}
		fmt.Fprintln(w)
	}

	if record.ScopeNote != "" {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("Scope Note:"))
		for _, line := range strings.Split(wordWrap(record.ScopeNote, 76), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
		fmt.Fprintln(w)
	}

	if len(record.EntryTerms) > 0 {
		colored := make([]string, len(record.EntryTerms))
		for i, et := range record.EntryTerms {
			colored[i] = yellow.Render(et)
		}
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Synonyms:"), strings.Join(colored, ", "))
	}
	return nil
}

// wordWrap wraps text at the given width, breaking at spaces.
func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return strings.Join(lines, "\n")
}
