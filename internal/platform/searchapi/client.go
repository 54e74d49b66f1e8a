// Package searchapi provides the HTTP client for the full-text search
// backend that suggestion queries are dispatched to.
package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/suggester"
)

// Client implements suggester.SearchBackend against the search service's
// HTTP API. Every call is bounded by the configured timeout.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a search client. If logger is nil, a default logger
// will be used.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("component", "search_client")),
	}
}

// Ensure Client implements the backend interface
var _ suggester.SearchBackend = (*Client)(nil)

// searchResponse is the JSON document the search service returns.
type searchResponse struct {
	Hits []struct {
		Title string  `json:"title"`
		Score float64 `json:"score"`
	} `json:"hits"`
	TotalHits int `json:"totalHits"`
}

// Search implements suggester.SearchBackend.
func (c *Client) Search(
	ctx context.Context,
	query string,
	limit, offset int,
	randomSort bool,
) (*suggester.SearchResult, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if randomSort {
		params.Set("sort", "random")
	}

	reqURL := c.baseURL + "/v1/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn("search backend returned non-200 status",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)))
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &suggester.SearchResult{
		Hits:      make([]suggester.SearchHit, len(decoded.Hits)),
		TotalHits: decoded.TotalHits,
	}
	for i, hit := range decoded.Hits {
		result.Hits[i] = suggester.SearchHit{Title: hit.Title, Score: hit.Score}
	}

	log.Debug("search query executed",
		slog.Int("hit_count", len(result.Hits)),
		slog.Int("total_hits", result.TotalHits),
		slog.Duration("elapsed", time.Since(start)))

	return result, nil
}
