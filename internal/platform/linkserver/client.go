// Package linkserver provides the HTTP client for the external service
// that generates link recommendations for a page revision.
package linkserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
)

// ErrNoRecommendation is returned when the service has no suggestions for
// the requested revision. Callers treat this as "nothing to store", not as
// a failure.
var ErrNoRecommendation = errors.New("no recommendation available for revision")

// RecommendationFetcher fetches machine-generated link recommendations for
// one page revision.
type RecommendationFetcher interface {
	Fetch(ctx context.Context, pageID, revID int64, title string, opts FetchOptions) (*domain.LinkRecommendation, error)
}

// FetchOptions tune one recommendation request. Zero values fall back to
// the service's defaults.
type FetchOptions struct {
	// MinimumScore drops suggestions below this confidence.
	MinimumScore float64

	// MaxRecommendations caps the number of suggested links.
	MaxRecommendations int

	// ExcludedTargetIDs are target pages the service must not suggest,
	// typically because users rejected them repeatedly.
	ExcludedTargetIDs []int64
}

// Client talks to the recommendation service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a recommendation service client. If logger is nil, a
// default logger will be used.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("component", "link_recommendation_client")),
	}
}

// Ensure Client implements the fetcher interface
var _ RecommendationFetcher = (*Client)(nil)

// recommendationResponse is the JSON document the service returns.
type recommendationResponse struct {
	Links []struct {
		LinkTarget     string  `json:"link_target"`
		TargetPageID   int64   `json:"target_page_id"`
		Score          float64 `json:"score"`
		LinkText       string  `json:"link_text"`
		WikitextOffset int     `json:"wikitext_offset"`
		LinkIndex      int     `json:"link_index"`
	} `json:"links"`
	Meta struct {
		DatasetID     string    `json:"dataset_id"`
		FormatVersion int       `json:"format_version"`
		AppVersion    string    `json:"application_version"`
		TaskTimestamp time.Time `json:"task_timestamp"`
	} `json:"meta"`
}

// Fetch implements RecommendationFetcher.
func (c *Client) Fetch(
	ctx context.Context,
	pageID, revID int64,
	title string,
	opts FetchOptions,
) (*domain.LinkRecommendation, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	params := url.Values{}
	params.Set("revision", strconv.FormatInt(revID, 10))
	if opts.MinimumScore > 0 {
		params.Set("threshold", strconv.FormatFloat(opts.MinimumScore, 'f', -1, 64))
	}
	if opts.MaxRecommendations > 0 {
		params.Set("max_recommendations", strconv.Itoa(opts.MaxRecommendations))
	}
	if len(opts.ExcludedTargetIDs) > 0 {
		excluded := make([]string, len(opts.ExcludedTargetIDs))
		for i, id := range opts.ExcludedTargetIDs {
			excluded[i] = strconv.FormatInt(id, 10)
		}
		params.Set("excluded_targets", strings.Join(excluded, "|"))
	}

	reqURL := c.baseURL + "/v1/linkrecommendations/" + url.PathEscape(title) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build recommendation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommendation request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s@%d", ErrNoRecommendation, title, revID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn("recommendation service returned non-200 status",
			slog.Int("status", resp.StatusCode),
			slog.String("title", title),
			slog.String("body", string(body)))
		return nil, fmt.Errorf("recommendation service returned status %d", resp.StatusCode)
	}

	var decoded recommendationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation response: %w", err)
	}

	if len(decoded.Links) == 0 {
		return nil, fmt.Errorf("%w: %s@%d", ErrNoRecommendation, title, revID)
	}

	links := make([]domain.LinkRecommendationLink, len(decoded.Links))
	for i, link := range decoded.Links {
		links[i] = domain.LinkRecommendationLink{
			LinkTarget:     link.LinkTarget,
			TargetPageID:   link.TargetPageID,
			Score:          link.Score,
			Text:           link.LinkText,
			WikitextOffset: link.WikitextOffset,
			Index:          link.LinkIndex,
		}
	}

	rec, err := domain.NewLinkRecommendation(pageID, revID, links, domain.LinkRecommendationMeta{
		DatasetID:    decoded.Meta.DatasetID,
		FormatVer:    decoded.Meta.FormatVersion,
		AppVersion:   decoded.Meta.AppVersion,
		TaskTimestap: decoded.Meta.TaskTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("recommendation service returned invalid data: %w", err)
	}

	log.Debug("recommendation fetched",
		slog.String("title", title),
		slog.Int64("revision_id", revID),
		slog.Int("link_count", len(links)))

	return rec, nil
}
