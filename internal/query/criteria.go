// Package query composes PubMed boolean search expressions from filter
// criteria.
package query

import (
	"time"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
)

// Criteria holds the optional filter dimensions of a search. The zero value
// is valid and builds an empty expression.
type Criteria struct {
	Journal   string    `json:"journal,omitempty" yaml:"journal,omitempty"`
	Author    string    `json:"author,omitempty" yaml:"author,omitempty"`
	Custom    string    `json:"custom,omitempty" yaml:"custom,omitempty"`
	TextTerms []string  `json:"text_terms,omitempty" yaml:"text_terms,omitempty"`
	MeSHTerms []string  `json:"mesh_terms,omitempty" yaml:"mesh_terms,omitempty"`
	From      time.Time `json:"from,omitempty" yaml:"from,omitempty"`
	// To is ignored when From is zero; a zero To leaves the range open-ended.
	To time.Time `json:"to,omitempty" yaml:"to,omitempty"`
}

// Option sets one dimension of a Criteria.
type Option func(*Criteria)

// WithJournal filters on a journal title.
func WithJournal(name string) Option {
	return func(c *Criteria) { c.Journal = name }
}

// WithAuthor filters on an author name.
func WithAuthor(name string) Option {
	return func(c *Criteria) { c.Author = name }
}

// WithCustom adds a raw expression clause.
func WithCustom(expr string) Option {
	return func(c *Criteria) { c.Custom = expr }
}

// WithTextTerms appends free-text terms, OR-ed with the MeSH terms.
func WithTextTerms(terms ...string) Option {
	return func(c *Criteria) { c.TextTerms = append(c.TextTerms, terms...) }
}

// WithMeSHTerms appends MeSH terms, OR-ed with the text terms.
func WithMeSHTerms(terms ...string) Option {
	return func(c *Criteria) { c.MeSHTerms = append(c.MeSHTerms, terms...) }
}

// WithDates restricts the publication date. A zero to is open-ended.
func WithDates(from, to time.Time) Option {
	return func(c *Criteria) {
		c.From = daterange.Day(from)
		c.To = daterange.Day(to)
	}
}

// WithRange restricts the publication date to r.
func WithRange(r daterange.Range) Option {
	return WithDates(r.From, r.To)
}

// New builds a Criteria and validates it once: a date range whose end
// precedes its start is rejected with a *daterange.InvalidRangeError.
func New(opts ...Option) (Criteria, error) {
	var c Criteria
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// Validate checks the date range ordering.
func (c Criteria) Validate() error {
	if !c.From.IsZero() && !c.To.IsZero() && c.To.Before(c.From) {
		return &daterange.InvalidRangeError{From: c.From, To: c.To}
	}
	return nil
}

// IsEmpty reports whether no dimension is populated.
func (c Criteria) IsEmpty() bool {
	return Build(c) == ""
}

// Expression is shorthand for Build(c).
func (c Criteria) Expression() string {
	return Build(c)
}
