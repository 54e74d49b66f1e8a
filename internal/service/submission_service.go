package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/suggester"
	"github.com/quillwiki/growthtasks/internal/task"
	"github.com/quillwiki/growthtasks/internal/taskconfig"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// WarningDailyLimitApproaching is attached to a successful submission when
// the user's next submission would hit the daily cap.
const WarningDailyLimitApproaching = "daily-limit-approaching"

// UserBlockChecker answers whether a user is currently blocked. Satisfied
// by the wiki platform client.
type UserBlockChecker interface {
	IsBlocked(ctx context.Context, userID int64) (bool, error)
}

// SubmissionData is the user's decision on one recommendation: each
// suggested target sorted into exactly one of the three sets, identified
// by target page ID.
type SubmissionData struct {
	AcceptedTargetIDs []int64
	RejectedTargetIDs []int64
	SkippedTargetIDs  []int64
}

// SubmissionResult reports a recorded submission. Warnings are non-fatal
// advisories the UI should surface.
type SubmissionResult struct {
	Warnings []string
}

// SubmissionService validates and records user decisions on link
// recommendations, including their deferred cleanup side effects.
type SubmissionService struct {
	config   suggester.ConfigProvider
	recStore store.LinkRecommendationStore
	resolver wiki.TitleResolver
	index    wiki.SearchIndexUpdater
	blocks   UserBlockChecker
	deferrer task.Deferrer
	logger   *slog.Logger
	now      func() time.Time
}

// NewSubmissionService creates a SubmissionService. If logger is nil, a
// default logger will be used.
func NewSubmissionService(
	config suggester.ConfigProvider,
	recStore store.LinkRecommendationStore,
	resolver wiki.TitleResolver,
	index wiki.SearchIndexUpdater,
	blocks UserBlockChecker,
	deferrer task.Deferrer,
	log *slog.Logger,
) *SubmissionService {
	if log == nil {
		log = slog.Default()
	}

	return &SubmissionService{
		config:   config,
		recStore: recStore,
		resolver: resolver,
		index:    index,
		blocks:   blocks,
		deferrer: deferrer,
		logger:   log.With(slog.String("component", "submission_service")),
		now:      time.Now,
	}
}

// Validate performs the pre-submission checks: a recommendation must still
// be stored for the page (it may have been deleted between the UI load and
// the submit) and the acting user must not be blocked.
func (s *SubmissionService) Validate(ctx context.Context, page *wiki.PageInfo, userID int64) error {
	if blocked, err := s.blocks.IsBlocked(ctx, userID); err != nil {
		return fmt.Errorf("failed to check user block status: %w", err)
	} else if blocked {
		return ErrUserBlocked
	}

	if _, err := s.recStore.GetByPageID(ctx, store.ReadLatest, page.ID); err != nil {
		return err
	}
	return nil
}

// Handle validates and records a user's decision on the recommendation
// generated for baseRevID. editRevID is the revision the user's edit
// created, or nil for a null-edit submission (everything rejected or
// skipped). Validation failures surface as typed errors; a read-only
// database surfaces as store.ErrReadOnly.
func (s *SubmissionService) Handle(
	ctx context.Context,
	page *wiki.PageInfo,
	userID int64,
	baseRevID int64,
	editRevID *int64,
	data SubmissionData,
) (*SubmissionResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// Fetch by the revision the client saw, not by page: if the page
	// moved on since, the lookup fails and the client must reload.
	rec, err := s.recStore.GetByRevID(ctx, store.ReadLatest, baseRevID)
	if err != nil {
		return nil, err
	}
	// The revision must belong to the submitted page; a revision lifted
	// from another page's recommendation would otherwise record rows for
	// that page and clean up this one.
	if rec.PageID != page.ID {
		return nil, fmt.Errorf("%w: revision %d does not belong to page %d",
			store.ErrRecommendationNotFound, baseRevID, page.ID)
	}

	if submitted, err := s.recStore.HasSubmission(ctx, rec, store.ReadLatest); err != nil {
		return nil, err
	} else if submitted {
		return nil, fmt.Errorf("%w: revision %d", ErrAlreadySubmitted, baseRevID)
	}

	if err := s.verifyTargets(ctx, rec, data); err != nil {
		return nil, err
	}

	result := &SubmissionResult{}
	if warning := s.checkDailyLimit(ctx, userID); warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	// Cleanup runs off the critical path. The index reset only applies
	// to null edits; a real edit reindexes the page on its own.
	cleanup := task.NewRecommendationCleanupTask(
		page.ID, editRevID == nil, s.recStore, s.index, s.logger)
	if err := s.deferrer.Submit(cleanup); err != nil {
		log.Warn("failed to defer recommendation cleanup",
			slog.Int64("page_id", page.ID),
			slog.String("error", err.Error()))
	}

	if err := s.recStore.RecordSubmission(
		ctx, userID, rec,
		data.AcceptedTargetIDs, data.RejectedTargetIDs, data.SkippedTargetIDs,
		editRevID,
	); err != nil {
		return nil, err
	}

	log.Info("submission handled",
		slog.Int64("page_id", page.ID),
		slog.Int64("revision_id", baseRevID),
		slog.Int64("user_id", userID),
		slog.Int("accepted", len(data.AcceptedTargetIDs)),
		slog.Int("rejected", len(data.RejectedTargetIDs)),
		slog.Int("skipped", len(data.SkippedTargetIDs)))

	return result, nil
}

// verifyTargets checks that the union of the three decided sets is exactly
// the stored recommendation's target set. Anything else means a tampered
// or stale client payload.
func (s *SubmissionService) verifyTargets(
	ctx context.Context,
	rec *domain.LinkRecommendation,
	data SubmissionData,
) error {
	allIDs := make([]int64, 0,
		len(data.AcceptedTargetIDs)+len(data.RejectedTargetIDs)+len(data.SkippedTargetIDs))
	allIDs = append(allIDs, data.AcceptedTargetIDs...)
	allIDs = append(allIDs, data.RejectedTargetIDs...)
	allIDs = append(allIDs, data.SkippedTargetIDs...)

	seen := make(map[int64]struct{}, len(allIDs))
	for _, id := range allIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: target %d appears in more than one set", ErrInvalidSubmission, id)
		}
		seen[id] = struct{}{}
	}

	titlesByID, err := s.resolver.ResolvePageIDs(ctx, allIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve submission targets: %w", err)
	}

	stored := rec.TargetTitles()
	decided := make(map[string]struct{}, len(allIDs))
	for _, id := range allIDs {
		title, ok := titlesByID[id]
		if !ok {
			return fmt.Errorf("%w: target %d does not resolve", ErrInvalidSubmission, id)
		}
		if _, ok := stored[title]; !ok {
			return fmt.Errorf("%w: target %q is not part of the recommendation", ErrInvalidSubmission, title)
		}
		decided[title] = struct{}{}
	}

	if len(decided) != len(stored) {
		return fmt.Errorf("%w: %d of %d targets decided", ErrInvalidSubmission, len(decided), len(stored))
	}

	return nil
}

// checkDailyLimit returns a warning string when the user's next submission
// would reach the add-link task type's daily cap, or "" otherwise. Errors
// here never fail the submission.
func (s *SubmissionService) checkDailyLimit(ctx context.Context, userID int64) string {
	log := logger.FromContextOrDefault(ctx, s.logger)

	taskTypes := s.config.GetTaskTypes(ctx)
	ids := make([]string, 0, len(taskTypes))
	for id, tt := range taskTypes {
		if tt.HandlerID == domain.HandlerLinkRecommendation {
			ids = append(ids, id)
		}
	}

	// Same deterministic pick as the recommendation service when the
	// config defines several add-link types.
	var linkType *domain.TaskType
	if len(ids) > 0 {
		sort.Strings(ids)
		linkType = taskTypes[ids[0]]
	}

	maxPerDay := taskconfig.MaxTasksPerDay(linkType)
	count, err := s.recStore.CountSubmissionsSince(ctx, userID, s.now().Add(-24*time.Hour))
	if err != nil {
		log.Warn("failed to count daily submissions",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
		return ""
	}

	if count >= maxPerDay-1 {
		return WarningDailyLimitApproaching
	}
	return ""
}
