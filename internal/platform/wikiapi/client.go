// Package wikiapi provides the HTTP client for the wiki platform API. It
// implements the page lookup, title resolution, config page loading and
// search-index interfaces the suggestion pipeline consumes.
package wikiapi

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
	"github.com/quillwiki/growthtasks/internal/service"
	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// Client talks to the wiki's action API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a wiki API client. baseURL points at the wiki's script
// path, e.g. "https://wiki.example.org/w". If logger is nil, a default
// logger will be used.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("component", "wiki_client")),
	}
}

// Interface conformance
var (
	_ wiki.PageStore            = (*Client)(nil)
	_ wiki.TitleResolver        = (*Client)(nil)
	_ wiki.ConfigPageLoader     = (*Client)(nil)
	_ wiki.PageMetadataProvider = (*Client)(nil)
	_ wiki.SearchIndexUpdater   = (*Client)(nil)
	_ service.UserBlockChecker  = (*Client)(nil)
)

// pageNode is one page entry in an action API query response.
type pageNode struct {
	PageID    int64  `json:"pageid"`
	Title     string `json:"title"`
	LastRevID int64  `json:"lastrevid"`
	Missing   bool   `json:"missing"`
	Revisions []struct {
		Slots struct {
			Main struct {
				Content string `json:"content"`
			} `json:"main"`
		} `json:"slots"`
	} `json:"revisions"`
	Templates []struct {
		Title string `json:"title"`
	} `json:"templates"`
}

// queryResponse is the envelope of an action=query response.
type queryResponse struct {
	Query struct {
		Pages []pageNode `json:"pages"`
		Users []struct {
			UserID    int64  `json:"userid"`
			Name      string `json:"name"`
			BlockID   int64  `json:"blockid"`
			BlockedBy string `json:"blockedby"`
		} `json:"users"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// query performs one action=query round-trip.
func (c *Client) query(ctx context.Context, params url.Values) (*queryResponse, error) {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")

	reqURL := c.baseURL + "/api.php?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build wiki API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wiki API request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wiki API returned status %d", resp.StatusCode)
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode wiki API response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("wiki API error %s: %s", decoded.Error.Code, decoded.Error.Info)
	}

	return &decoded, nil
}

// GetPageByTitle implements wiki.PageStore.
func (c *Client) GetPageByTitle(ctx context.Context, title string) (*wiki.PageInfo, error) {
	params := url.Values{}
	params.Set("titles", title)
	params.Set("prop", "info")
	params.Set("redirects", "1")

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	for _, page := range resp.Query.Pages {
		if page.Missing {
			continue
		}
		return &wiki.PageInfo{ID: page.PageID, Title: page.Title, LatestRevID: page.LastRevID}, nil
	}
	return nil, fmt.Errorf("%w: %q", store.ErrPageNotFound, title)
}

// GetPageByID implements wiki.PageStore.
func (c *Client) GetPageByID(ctx context.Context, id int64) (*wiki.PageInfo, error) {
	params := url.Values{}
	params.Set("pageids", strconv.FormatInt(id, 10))
	params.Set("prop", "info")

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	for _, page := range resp.Query.Pages {
		if page.Missing {
			continue
		}
		return &wiki.PageInfo{ID: page.PageID, Title: page.Title, LatestRevID: page.LastRevID}, nil
	}
	return nil, fmt.Errorf("%w: page %d", store.ErrPageNotFound, id)
}

// GetLatestRevisions implements wiki.PageStore.
func (c *Client) GetLatestRevisions(ctx context.Context, pageIDs []int64) (map[int64]int64, error) {
	if len(pageIDs) == 0 {
		return map[int64]int64{}, nil
	}

	params := url.Values{}
	params.Set("pageids", joinIDs(pageIDs))
	params.Set("prop", "info")

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]int64, len(pageIDs))
	for _, page := range resp.Query.Pages {
		if page.Missing {
			continue
		}
		out[page.PageID] = page.LastRevID
	}
	return out, nil
}

// ResolveTitles implements wiki.TitleResolver.
func (c *Client) ResolveTitles(ctx context.Context, titles []string) (map[string]wiki.PageInfo, error) {
	if len(titles) == 0 {
		return map[string]wiki.PageInfo{}, nil
	}

	params := url.Values{}
	params.Set("titles", strings.Join(titles, "|"))
	params.Set("prop", "info")
	params.Set("redirects", "1")

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make(map[string]wiki.PageInfo, len(titles))
	for _, page := range resp.Query.Pages {
		if page.Missing {
			continue
		}
		out[page.Title] = wiki.PageInfo{ID: page.PageID, Title: page.Title, LatestRevID: page.LastRevID}
	}
	return out, nil
}

// ResolvePageIDs implements wiki.TitleResolver.
func (c *Client) ResolvePageIDs(ctx context.Context, pageIDs []int64) (map[int64]string, error) {
	if len(pageIDs) == 0 {
		return map[int64]string{}, nil
	}

	params := url.Values{}
	params.Set("pageids", joinIDs(pageIDs))
	params.Set("prop", "info")

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(pageIDs))
	for _, page := range resp.Query.Pages {
		if page.Missing {
			continue
		}
		out[page.PageID] = page.Title
	}
	return out, nil
}

// Load implements wiki.ConfigPageLoader. It fetches the raw content of the
// page's current revision and returns it as a JSON document.
func (c *Client) Load(ctx context.Context, title string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("titles", title)
	params.Set("prop", "revisions")
	params.Set("rvprop", "content")
	params.Set("rvslots", "main")

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	for _, page := range resp.Query.Pages {
		if page.Missing || len(page.Revisions) == 0 {
			continue
		}
		content := page.Revisions[0].Slots.Main.Content
		if !json.Valid([]byte(content)) {
			return nil, fmt.Errorf("config page %q does not contain valid JSON", title)
		}
		return json.RawMessage(content), nil
	}
	return nil, fmt.Errorf("%w: %q", store.ErrPageNotFound, title)
}

// GetTemplates implements wiki.PageMetadataProvider.
func (c *Client) GetTemplates(ctx context.Context, titles []string) (map[string][]string, error) {
	if len(titles) == 0 {
		return map[string][]string{}, nil
	}

	params := url.Values{}
	params.Set("titles", strings.Join(titles, "|"))
	params.Set("prop", "templates")
	params.Set("tllimit", "max")

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(titles))
	for _, page := range resp.Query.Pages {
		if page.Missing {
			continue
		}
		templates := make([]string, 0, len(page.Templates))
		for _, tpl := range page.Templates {
			templates = append(templates, tpl.Title)
		}
		out[page.Title] = templates
	}
	return out, nil
}

// ResetWeightedTags implements wiki.SearchIndexUpdater.
func (c *Client) ResetWeightedTags(ctx context.Context, pageID int64, tagPrefix string) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	form := url.Values{}
	form.Set("action", "resetweightedtags")
	form.Set("format", "json")
	form.Set("pageid", strconv.FormatInt(pageID, 10))
	form.Set("tagprefix", tagPrefix)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api.php", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build weighted-tag reset request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("weighted-tag reset failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weighted-tag reset returned status %d", resp.StatusCode)
	}

	log.Debug("weighted tags reset",
		slog.Int64("page_id", pageID),
		slog.String("tag_prefix", tagPrefix))
	return nil
}

// IsBlocked implements service.UserBlockChecker.
func (c *Client) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	params := url.Values{}
	params.Set("list", "users")
	params.Set("ususerids", strconv.FormatInt(userID, 10))
	params.Set("usprop", "blockinfo")

	resp, err := c.query(ctx, params)
	if err != nil {
		return false, err
	}

	for _, user := range resp.Query.Users {
		if user.UserID == userID {
			return user.BlockID != 0, nil
		}
	}
	return false, fmt.Errorf("user %d not found", userID)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "|")
}
