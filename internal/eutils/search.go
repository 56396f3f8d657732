package eutils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/ncbi"
)

// esearchResponse represents the raw JSON response from ESearch.
type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	Count            string   `json:"count"`
	RetMax           string   `json:"retmax"`
	RetStart         string   `json:"retstart"`
	IDList           []string `json:"idlist"`
	QueryTranslation string   `json:"querytranslation"`
	Error            string   `json:"ERROR"`
}

// Search performs a single ESearch page query against PubMed.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmode", "json")

	limit := 20
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Offset > 0 {
			params.Set("retstart", strconv.Itoa(opts.Offset))
		}
	}
	params.Set("retmax", strconv.Itoa(limit))

	return c.esearch(ctx, params)
}

// Count returns the declared number of articles matching query without
// retrieving any identifiers.
func (c *Client) Count(ctx context.Context, query string) (int, error) {
	if query == "" {
		return 0, fmt.Errorf("search query cannot be empty")
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmode", "json")
	params.Set("retmax", "0")

	res, err := c.esearch(ctx, params)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// SearchAll drains the full result set of expression, pageSize identifiers
// per request, and returns the declared count with every identifier in
// service order. A failure on any page discards the pages already read.
//
// Pagination stops once the declared count (from the first page) has been
// covered or a page comes back empty. More than MaxPages pages is treated as
// a misbehaving service.
func (c *Client) SearchAll(ctx context.Context, expression string, pageSize int) (*SearchResult, error) {
	if expression == "" {
		return nil, fmt.Errorf("search expression cannot be empty")
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var (
		total  int
		all    *SearchResult
		offset int
	)
	for page := 0; ; page++ {
		if page >= c.maxPages() {
			return nil, &ncbi.RemoteServiceError{
				Endpoint: esearchEndpoint,
				Err:      fmt.Errorf("pagination exceeded %d pages for declared count %d", c.maxPages(), total),
			}
		}

		res, err := c.Search(ctx, expression, &SearchOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("search page at offset %d: %w", offset, err)
		}

		if all == nil {
			total = res.Count
			all = &SearchResult{
				Count:            res.Count,
				IDs:              make([]string, 0, len(res.IDs)),
				QueryTranslation: res.QueryTranslation,
			}
		}
		all.IDs = append(all.IDs, res.IDs...)

		if len(res.IDs) == 0 || total <= offset+pageSize {
			break
		}
		offset += pageSize
	}

	return all, nil
}

func (c *Client) esearch(ctx context.Context, params url.Values) (*SearchResult, error) {
	body, err := c.DoGet(ctx, esearchEndpoint, params)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ncbi.Remote(esearchEndpoint, fmt.Errorf("parsing search response: %w", err))
	}
	if resp.Result.Error != "" {
		return nil, ncbi.Remote(esearchEndpoint, errors.New(resp.Result.Error))
	}

	count, err := strconv.Atoi(resp.Result.Count)
	if err != nil {
		return nil, ncbi.Remote(esearchEndpoint, fmt.Errorf("invalid result count %q", resp.Result.Count))
	}

	ids := resp.Result.IDList
	if ids == nil {
		ids = []string{}
	}

	return &SearchResult{
		Count:            count,
		IDs:              ids,
		QueryTranslation: resp.Result.QueryTranslation,
	}, nil
}
