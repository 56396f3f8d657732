package eutils

import (
	"github.com/henrybloomingdale/pubmed-tabulate/internal/ncbi"
)

const (
	// DefaultBaseURL is the NCBI E-utilities base URL.
	DefaultBaseURL = ncbi.DefaultBaseURL

	// DefaultPageSize is the ESearch page size used when draining a result set.
	DefaultPageSize = 1000
	// MaxPageSize is the largest retmax ESearch accepts for PubMed.
	MaxPageSize = 10000
	// DefaultMaxPages bounds pagination against a service that keeps
	// reporting more results than it returns.
	DefaultMaxPages = 1000
	// MaxSummaryBatch is the largest number of ids sent in one ESummary request.
	MaxSummaryBatch = 500

	esearchEndpoint  = "esearch.fcgi"
	esummaryEndpoint = "esummary.fcgi"
)

// Client is an HTTP client for NCBI E-utilities.
// It embeds ncbi.BaseClient for shared rate limiting, common parameters,
// and response size guards.
type Client struct {
	*ncbi.BaseClient

	// MaxPages caps the number of ESearch pages SearchAll will request.
	// Zero means DefaultMaxPages.
	MaxPages int
}

// Option configures a Client (alias for ncbi.Option).
type Option = ncbi.Option

// Re-export ncbi options so callers need only one import.
var (
	WithBaseURL = ncbi.WithBaseURL
	WithAPIKey  = ncbi.WithAPIKey
)

// NewClient creates a new E-utilities client with the given options.
// Options configure the underlying NCBI base client.
func NewClient(opts ...Option) *Client {
	return &Client{BaseClient: ncbi.NewBaseClient(opts...)}
}

// NewClientWithBase creates a new E-utilities client using an existing base client.
func NewClientWithBase(base *ncbi.BaseClient) *Client {
	return &Client{BaseClient: base}
}

func (c *Client) maxPages() int {
	if c.MaxPages > 0 {
		return c.MaxPages
	}
	return DefaultMaxPages
}
