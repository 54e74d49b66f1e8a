// Package wiki defines the narrow interfaces through which the suggestion
// pipeline consumes the wiki platform: page/revision lookup, batch title
// resolution, raw page content loading and search-index updates. The wiki
// itself is an external collaborator; this package contains no storage logic.
package wiki

import (
	"context"
	"encoding/json"
)

// PageInfo describes a wiki page as far as this system cares: its stable
// numeric ID, canonical title and the ID of its current revision.
type PageInfo struct {
	ID          int64
	Title       string
	LatestRevID int64
}

// PageStore resolves page identifiers to current page state.
type PageStore interface {
	// GetPageByTitle resolves a (possibly non-canonical) title.
	// Returns store.ErrPageNotFound semantics via the implementation's
	// own typed error when the page does not exist.
	GetPageByTitle(ctx context.Context, title string) (*PageInfo, error)

	// GetPageByID resolves a page by its numeric ID.
	GetPageByID(ctx context.Context, id int64) (*PageInfo, error)

	// GetLatestRevisions returns the current revision ID for each of the
	// given pages in one round-trip. Pages that do not exist are simply
	// absent from the result.
	GetLatestRevisions(ctx context.Context, pageIDs []int64) (map[int64]int64, error)
}

// TitleResolver normalizes batches of titles or page IDs into their
// canonical counterparts in a single round-trip.
type TitleResolver interface {
	// ResolveTitles maps each input title to its canonical form and page
	// ID. Titles that do not resolve are absent from the result.
	ResolveTitles(ctx context.Context, titles []string) (map[string]PageInfo, error)

	// ResolvePageIDs maps each page ID to its canonical title. IDs that
	// do not resolve are absent from the result.
	ResolvePageIDs(ctx context.Context, pageIDs []int64) (map[int64]string, error)
}

// ConfigPageLoader loads a JSON document stored on a wiki page. It is the
// configuration source for the task-type and topic registries.
type ConfigPageLoader interface {
	Load(ctx context.Context, title string) (json.RawMessage, error)
}

// PageMetadataProvider fills auxiliary per-page metadata in batch.
type PageMetadataProvider interface {
	// GetTemplates returns, for each given title, the templates present
	// on the page. Titles that do not resolve are absent from the result.
	GetTemplates(ctx context.Context, titles []string) (map[string][]string, error)
}

// SearchIndexUpdater pushes side effects into the search index.
type SearchIndexUpdater interface {
	// ResetWeightedTags clears the weighted tags under the given prefix
	// for a page, returning it to the candidate pool for recommendation
	// regeneration.
	ResetWeightedTags(ctx context.Context, pageID int64, tagPrefix string) error
}

// WeightedTagPrefix is the search-index tag namespace owned by the
// link-recommendation pipeline.
const WeightedTagPrefix = "recommendation.link"
