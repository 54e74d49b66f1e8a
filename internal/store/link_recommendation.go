package store

import (
	"context"
	"time"

	"github.com/quillwiki/growthtasks/internal/domain"
)

// ListExhausted is the sentinel ListAll writes to the cursor once every
// recommendation has been returned.
const ListExhausted int64 = -1

// RejectionExclusionLimit is how many times a target must be rejected for a
// source page before it is permanently suppressed from new recommendations.
const RejectionExclusionLimit = 2

// LinkRecommendationStore defines the interface for persisting per-revision
// link recommendations and the user submissions recorded against them.
// Version: 1.0
type LinkRecommendationStore interface {
	// GetByRevID retrieves the recommendation generated for the given
	// revision. Returns ErrRecommendationNotFound if none is stored.
	GetByRevID(ctx context.Context, flags ReadFlags, revID int64) (*domain.LinkRecommendation, error)

	// GetByPageID retrieves the recommendation stored for the given page.
	// When several revisions of the page carry recommendations the one
	// with the highest revision ID wins.
	GetByPageID(ctx context.Context, flags ReadFlags, pageID int64) (*domain.LinkRecommendation, error)

	// GetByLinkTarget resolves the page named by title and returns its
	// stored recommendation. Unless allowOldRevision is set, only a
	// recommendation matching the page's current revision qualifies.
	GetByLinkTarget(ctx context.Context, flags ReadFlags, title string, allowOldRevision bool) (*domain.LinkRecommendation, error)

	// ListAll pages through every stored recommendation ordered by page
	// ID, starting after *fromPageID. It advances the cursor in place and
	// sets it to ListExhausted once the last page has been returned.
	// Used by batch maintenance jobs.
	ListAll(ctx context.Context, limit int, fromPageID *int64) ([]*domain.LinkRecommendation, error)

	// FilterPageIDs returns the subset of pageIDs whose stored
	// recommendation is still fresh, i.e. its revision ID is >= the
	// page's current latest revision. The >= comparison deliberately
	// tolerates replication lag; exact equality would cause spurious
	// recomputation when the page store lags the primary.
	FilterPageIDs(ctx context.Context, pageIDs []int64) ([]int64, error)

	// Insert stores a recommendation. Idempotent per (page, revision):
	// inserting the same revision again replaces the existing row.
	Insert(ctx context.Context, rec *domain.LinkRecommendation) error

	// DeleteByPageIDs hard-deletes all recommendation rows for the given
	// pages and returns the number of rows removed.
	DeleteByPageIDs(ctx context.Context, pageIDs []int64) (int64, error)

	// DeleteByLinkTarget resolves the page named by title and deletes its
	// recommendation rows, returning the number of rows removed.
	DeleteByLinkTarget(ctx context.Context, title string) (int64, error)

	// GetExcludedLinkIDs returns target page IDs that have been rejected
	// at least limit times for the given source page. The provider layer
	// uses this to suppress repeatedly-rejected suggestions.
	GetExcludedLinkIDs(ctx context.Context, pageID int64, limit int) ([]int64, error)

	// RecordSubmission appends one submission row per decided target.
	// Target IDs that can no longer be resolved to a link of rec (the
	// target moved or was deleted since the client loaded the page) are
	// logged and dropped; the rest of the batch is still written.
	RecordSubmission(
		ctx context.Context,
		userID int64,
		rec *domain.LinkRecommendation,
		accepted, rejected, skipped []int64,
		editRevID *int64,
	) error

	// HasSubmission reports whether any submission has been recorded for
	// rec's revision. Used to enforce at most one submission per
	// recommendation revision.
	HasSubmission(ctx context.Context, rec *domain.LinkRecommendation, flags ReadFlags) (bool, error)

	// CountSubmissionsSince returns the number of distinct submission
	// batches the user recorded since the given time. Consumed by the
	// daily quality gate.
	CountSubmissionsSince(ctx context.Context, userID int64, since time.Time) (int, error)
}
