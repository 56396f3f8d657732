package query

import (
	"fmt"
	"strings"
)

const (
	dateLayout = "2006/01/02"
	// openEnd stands in for a missing end date.
	openEnd = "3000"
)

// Build renders c in PubMed's boolean query grammar:
//
//	("Nature"[Journal]) AND ("income"[Text Word] OR "social class"[MeSH Terms])
//	  AND ("1990/01/01"[Date - Publication] : "2015/12/31"[Date - Publication])
//
// Clauses appear in the order journal, author, custom, text/MeSH, date.
// A single clause is returned without parentheses. Whitespace runs are
// collapsed to single spaces.
func Build(c Criteria) string {
	var clauses []string

	if c.Journal != "" {
		clauses = append(clauses, fmt.Sprintf(`"%s"[Journal]`, c.Journal))
	}
	if c.Author != "" {
		clauses = append(clauses, c.Author+"[Author]")
	}
	if c.Custom != "" {
		clauses = append(clauses, c.Custom)
	}
	if terms := termClause(c.TextTerms, c.MeSHTerms); terms != "" {
		clauses = append(clauses, terms)
	}
	if !c.From.IsZero() {
		to := openEnd
		if !c.To.IsZero() {
			to = c.To.Format(dateLayout)
		}
		clauses = append(clauses, fmt.Sprintf(`"%s"[Date - Publication] : "%s"[Date - Publication]`,
			c.From.Format(dateLayout), to))
	}

	var expr string
	if len(clauses) <= 1 {
		expr = strings.Join(clauses, "")
	} else {
		expr = "(" + strings.Join(clauses, ") AND (") + ")"
	}
	return strings.Join(strings.Fields(expr), " ")
}

func termClause(text, mesh []string) string {
	terms := make([]string, 0, len(text)+len(mesh))
	for _, t := range text {
		if t != "" {
			terms = append(terms, fmt.Sprintf(`"%s"[Text Word]`, t))
		}
	}
	for _, m := range mesh {
		if m != "" {
			terms = append(terms, fmt.Sprintf(`"%s"[MeSH Terms]`, m))
		}
	}
	return strings.Join(terms, " OR ")
}
