// Package mesh resolves MeSH terms against the NCBI MeSH database so a
// tabulation can flag terms PubMed would not recognise as headings.
package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/ncbi"
)

// ErrNotFound is returned by Lookup when the term matches no descriptor.
var ErrNotFound = errors.New("MeSH term not found")

// Descriptor is a MeSH descriptor record.
type Descriptor struct {
	UI          string   `json:"ui"`
	Name        string   `json:"name"`
	ScopeNote   string   `json:"scope_note,omitempty"`
	TreeNumbers []string `json:"tree_numbers,omitempty"`
	EntryTerms  []string `json:"entry_terms,omitempty"`
}

// Client looks up MeSH descriptors.
// It embeds ncbi.BaseClient for shared rate limiting and common parameters.
type Client struct {
	*ncbi.BaseClient
}

// NewClient creates a MeSH client using an existing NCBI base client.
func NewClient(base *ncbi.BaseClient) *Client {
	return &Client{BaseClient: base}
}

type searchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Lookup returns the best descriptor for term.
func (c *Client) Lookup(ctx context.Context, term string) (*Descriptor, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("MeSH term cannot be empty")
	}

	ids, err := c.search(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, term)
	}

	params := url.Values{}
	params.Set("db", "mesh")
	params.Set("id", ids[0])
	params.Set("rettype", "full")
	params.Set("retmode", "text")
	body, err := c.DoGet(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("MeSH fetch for %q: %w", term, err)
	}

	d := parseDescriptor(string(body))
	if d.Name == "" {
		return nil, ncbi.Remote("efetch.fcgi", fmt.Errorf("MeSH record %s has no heading", ids[0]))
	}
	return &d, nil
}

// Unresolved returns the terms, in input order, that match no descriptor.
// A failed request aborts the check.
func (c *Client) Unresolved(ctx context.Context, terms []string) ([]string, error) {
	var missing []string
	for _, term := range terms {
		ids, err := c.search(ctx, term)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			missing = append(missing, term)
		}
	}
	return missing, nil
}

func (c *Client) search(ctx context.Context, term string) ([]string, error) {
	params := url.Values{}
	params.Set("db", "mesh")
	params.Set("term", term)
	params.Set("retmode", "json")

	body, err := c.DoGet(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("MeSH search for %q: %w", term, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ncbi.Remote("esearch.fcgi", fmt.Errorf("parsing MeSH search response: %w", err))
	}
	return resp.Result.IDList, nil
}

// parseDescriptor reads the "KEY = value" MeSH text format.
func parseDescriptor(text string) Descriptor {
	var d Descriptor
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), " = ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "MH":
			d.Name = value
		case "UI":
			d.UI = value
		case "MS":
			d.ScopeNote = value
		case "MN":
			d.TreeNumbers = append(d.TreeNumbers, value)
		case "ENTRY", "PRINT ENTRY":
			// Entry terms carry "|"-separated qualifiers after the term.
			term, _, _ := strings.Cut(value, "|")
			d.EntryTerms = append(d.EntryTerms, strings.TrimSpace(term))
		}
	}
	return d
}
