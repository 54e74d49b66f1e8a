package domain

import (
	"errors"
	"time"
)

// Common validation errors for LinkRecommendation
var (
	ErrInvalidPageID     = errors.New("page ID must be positive")
	ErrInvalidRevisionID = errors.New("revision ID must be positive")
	ErrNoRecommendedLink = errors.New("recommendation must contain at least one link")
)

// LinkRecommendationLink is a single machine-suggested wikilink: a phrase of
// the source page's wikitext that should link to a target page.
type LinkRecommendationLink struct {
	// LinkTarget is the title of the page the phrase should link to.
	LinkTarget string `json:"link_target"`

	// TargetPageID is the page ID of the link target at generation time.
	TargetPageID int64 `json:"target_page_id"`

	// Score is the model's confidence in this suggestion, in [0, 1].
	Score float64 `json:"score"`

	// Text is the exact phrase in the wikitext to be linked.
	Text string `json:"link_text"`

	// WikitextOffset is the character offset of the phrase.
	WikitextOffset int `json:"wikitext_offset"`

	// Index is which occurrence of the phrase is meant (0-based) when the
	// same phrase appears multiple times on the page.
	Index int `json:"link_index"`
}

// LinkRecommendationMeta is opaque provenance data stored alongside the
// suggested links. The core persists it verbatim and never interprets it.
type LinkRecommendationMeta struct {
	DatasetID    string    `json:"dataset_id,omitempty"`
	FormatVer    int       `json:"format_version,omitempty"`
	AppVersion   string    `json:"application_version,omitempty"`
	TaskTimestap time.Time `json:"task_timestamp,omitempty"`
}

// LinkRecommendation is the set of machine-suggested links generated for one
// revision of one page. It is identified by (PageID, RevisionID); only the
// row matching the page's current revision is valid for display, stale rows
// are superseded but linger until explicitly deleted.
type LinkRecommendation struct {
	PageID     int64                    `json:"page_id"`
	RevisionID int64                    `json:"revision_id"`
	Links      []LinkRecommendationLink `json:"links"`
	Meta       LinkRecommendationMeta   `json:"meta"`
}

// NewLinkRecommendation creates a LinkRecommendation.
// Returns an error if validation fails.
func NewLinkRecommendation(
	pageID, revisionID int64,
	links []LinkRecommendationLink,
	meta LinkRecommendationMeta,
) (*LinkRecommendation, error) {
	rec := &LinkRecommendation{
		PageID:     pageID,
		RevisionID: revisionID,
		Links:      links,
		Meta:       meta,
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return rec, nil
}

// Validate checks if the LinkRecommendation has valid data.
func (r *LinkRecommendation) Validate() error {
	if r.PageID <= 0 {
		return ErrInvalidPageID
	}

	if r.RevisionID <= 0 {
		return ErrInvalidRevisionID
	}

	if len(r.Links) == 0 {
		return ErrNoRecommendedLink
	}

	return nil
}

// LinkByTarget returns the suggested link whose target matches the given
// title, or nil when the recommendation contains no such link.
func (r *LinkRecommendation) LinkByTarget(target string) *LinkRecommendationLink {
	for i := range r.Links {
		if r.Links[i].LinkTarget == target {
			return &r.Links[i]
		}
	}
	return nil
}

// TargetTitles returns the set of link target titles in this recommendation.
func (r *LinkRecommendation) TargetTitles() map[string]struct{} {
	targets := make(map[string]struct{}, len(r.Links))
	for i := range r.Links {
		targets[r.Links[i].LinkTarget] = struct{}{}
	}
	return targets
}
