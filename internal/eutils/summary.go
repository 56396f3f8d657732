package eutils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/ncbi"
)

// esummaryResponse holds the JSON ESummary envelope. Result maps each uid to
// its record, plus a "uids" key listing the uids in request order.
type esummaryResponse struct {
	Error  string                     `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// Summary retrieves document summaries for pmids in a single request and
// returns them keyed by uid. Records the service could not decode are left
// out; records the service flagged carry DocSummary.Error.
func (c *Client) Summary(ctx context.Context, pmids []string) (map[string]DocSummary, error) {
	if len(pmids) == 0 {
		return map[string]DocSummary{}, nil
	}
	if len(pmids) > MaxSummaryBatch {
		return nil, fmt.Errorf("summary batch of %d exceeds maximum of %d ids", len(pmids), MaxSummaryBatch)
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "json")

	body, err := c.DoGet(ctx, esummaryEndpoint, params)
	if err != nil {
		return nil, fmt.Errorf("summary request failed: %w", err)
	}

	return parseSummaries(body)
}

func parseSummaries(body []byte) (map[string]DocSummary, error) {
	var resp esummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ncbi.Remote(esummaryEndpoint, fmt.Errorf("parsing summary response: %w", err))
	}
	if resp.Error != "" {
		return nil, ncbi.Remote(esummaryEndpoint, errors.New(resp.Error))
	}
	if resp.Result == nil {
		return nil, ncbi.Remote(esummaryEndpoint, errors.New("summary response has no result"))
	}

	summaries := make(map[string]DocSummary, len(resp.Result))
	for uid, raw := range resp.Result {
		if uid == "uids" {
			continue
		}
		var doc DocSummary
		if err := json.Unmarshal(raw, &doc); err != nil {
			// One undecodable record must not void the batch.
			continue
		}
		if doc.UID == "" {
			doc.UID = uid
		}
		summaries[uid] = doc
	}

	return summaries, nil
}
