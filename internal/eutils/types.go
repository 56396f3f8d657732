// Package eutils provides a client for the NCBI E-utilities API: paged
// ESearch queries and batched ESummary lookups against PubMed.
package eutils

// SearchResult represents the result of an ESearch query. After SearchAll,
// IDs holds every identifier of the result set in service order.
type SearchResult struct {
	Count            int      `json:"count"`
	IDs              []string `json:"ids"`
	QueryTranslation string   `json:"query_translation,omitempty"`
}

// SearchOptions configures a single ESearch page.
type SearchOptions struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// DocSummary is the per-article record returned by ESummary.
type DocSummary struct {
	UID     string          `json:"uid"`
	Title   string          `json:"title,omitempty"`
	Source  string          `json:"source,omitempty"`
	PubDate string          `json:"pubdate,omitempty"`
	Authors []SummaryAuthor `json:"authors,omitempty"`
	// Error is set by the service for ids it could not summarise.
	Error string `json:"error,omitempty"`
}

// SummaryAuthor is one byline entry, e.g. "Jagsi R".
type SummaryAuthor struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype,omitempty"`
}

// FirstAuthor returns the first byline name, or "" when there is none.
func (d DocSummary) FirstAuthor() string {
	if len(d.Authors) == 0 {
		return ""
	}
	return d.Authors[0].Name
}
