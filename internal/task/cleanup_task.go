package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// RecommendationCleanupTask deletes the consumed recommendation rows for a
// page after a submission and, for null-edit submissions, resets the
// page's search-index weighted tags so the page re-enters the candidate
// pool.
type RecommendationCleanupTask struct {
	id         uuid.UUID
	pageID     int64
	resetIndex bool

	recStore store.LinkRecommendationStore
	index    wiki.SearchIndexUpdater
	logger   *slog.Logger
}

// NewRecommendationCleanupTask creates a cleanup task for the given page.
// resetIndex should be true only when the submission produced no edit; an
// actual edit already triggers reindexing through the normal edit flow.
func NewRecommendationCleanupTask(
	pageID int64,
	resetIndex bool,
	recStore store.LinkRecommendationStore,
	index wiki.SearchIndexUpdater,
	log *slog.Logger,
) *RecommendationCleanupTask {
	if log == nil {
		log = slog.Default()
	}

	return &RecommendationCleanupTask{
		id:         uuid.New(),
		pageID:     pageID,
		resetIndex: resetIndex,
		recStore:   recStore,
		index:      index,
		logger:     log,
	}
}

// Ensure RecommendationCleanupTask implements the Task interface
var _ Task = (*RecommendationCleanupTask)(nil)

// ID implements Task.
func (t *RecommendationCleanupTask) ID() uuid.UUID {
	return t.id
}

// Type implements Task.
func (t *RecommendationCleanupTask) Type() string {
	return TaskTypeRecommendationCleanup
}

// Execute implements Task.
func (t *RecommendationCleanupTask) Execute(ctx context.Context) error {
	deleted, err := t.recStore.DeleteByPageIDs(ctx, []int64{t.pageID})
	if err != nil {
		return fmt.Errorf("failed to delete recommendation for page %d: %w", t.pageID, err)
	}

	t.logger.Debug("recommendation rows deleted",
		slog.Int64("page_id", t.pageID),
		slog.Int64("deleted_count", deleted))

	if t.resetIndex {
		if err := t.index.ResetWeightedTags(ctx, t.pageID, wiki.WeightedTagPrefix); err != nil {
			return fmt.Errorf("failed to reset weighted tags for page %d: %w", t.pageID, err)
		}
	}

	return nil
}
