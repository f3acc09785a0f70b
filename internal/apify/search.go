package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	// Date filter values accepted by the actor.
	DateFilterPast24h  = "past-24h"
	DateFilterPastWeek = "past-week"
	DateFilterPastMonth = "past-month"

	// Sort type values accepted by the actor.
	SortByDatePosted = "date_posted"
	SortByRelevance  = "relevance"
)

// SearchParams is the actor input for a single keyword search.
// Field names follow the actor's snake_case input schema.
type SearchParams struct {
	Keyword        string `json:"keyword"`
	SortType       string `json:"sort_type,omitempty"`
	DateFilter     string `json:"date_filter,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	PageNumber     int    `json:"page_number,omitempty"`
	AuthorJobTitle string `json:"author_job_title,omitempty"`
}

// Search runs the actor synchronously and returns the dataset items produced
// by the run, deduplicated by post key.
func (c *Client) Search(ctx context.Context, params *SearchParams) (*Posts, error) {
	if params == nil || params.Keyword == "" {
		return nil, fmt.Errorf("search keyword is required")
	}

	if params.PageNumber == 0 {
		params.PageNumber = 1
	}

	items, err := c.runSync(ctx, params)
	if err != nil {
		return nil, err
	}

	var posts []*Post
	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &posts,
		TagName:  "json",
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode dataset items: %w", err)
	}

	result := &Posts{Items: posts}
	if dup := result.Dedupe(); len(dup) > 0 {
		c.logger.Debug("dropped duplicate posts from actor response",
			zap.String("keyword", params.Keyword),
			zap.Strings("duplicate_keys", dup),
		)
	}

	return result, nil
}

// runSync calls the run-sync-get-dataset-items endpoint, which starts the
// actor and blocks until its dataset is ready.
func (c *Client) runSync(ctx context.Context, params *SearchParams) ([]map[string]any, error) {
	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items", c.APIURL, c.Actor)

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("clean", "1")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bad status: %s: %s", resp.Status, detail)
	}

	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return items, nil
}
