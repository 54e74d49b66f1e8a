package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/linkserver"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/suggester"
	"github.com/quillwiki/growthtasks/internal/taskconfig"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// LinkRecommendationService serves stored link recommendations and
// refreshes them from the external recommendation service.
type LinkRecommendationService struct {
	config   suggester.ConfigProvider
	recStore store.LinkRecommendationStore
	pages    wiki.PageStore
	fetcher  linkserver.RecommendationFetcher
	logger   *slog.Logger
}

// NewLinkRecommendationService creates a LinkRecommendationService. If
// logger is nil, a default logger will be used.
func NewLinkRecommendationService(
	config suggester.ConfigProvider,
	recStore store.LinkRecommendationStore,
	pages wiki.PageStore,
	fetcher linkserver.RecommendationFetcher,
	log *slog.Logger,
) *LinkRecommendationService {
	if log == nil {
		log = slog.Default()
	}

	return &LinkRecommendationService{
		config:   config,
		recStore: recStore,
		pages:    pages,
		fetcher:  fetcher,
		logger:   log.With(slog.String("component", "link_recommendation_service")),
	}
}

// taskType returns the configured add-link task type, or
// ErrTaskTypeNotConfigured when the wiki config does not define one.
func (s *LinkRecommendationService) taskType(ctx context.Context) (*domain.TaskType, error) {
	taskTypes := s.config.GetTaskTypes(ctx)

	ids := make([]string, 0, len(taskTypes))
	for id, tt := range taskTypes {
		if tt.HandlerID == domain.HandlerLinkRecommendation {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, ErrTaskTypeNotConfigured
	}

	// Deterministic pick if the config defines several add-link types.
	sort.Strings(ids)
	return taskTypes[ids[0]], nil
}

// GetForTitle returns the stored recommendation for the page named by
// title, or nil when the page has none valid for its current revision.
// Returns ErrTaskTypeNotConfigured when the add-link task type is absent
// from the configuration.
func (s *LinkRecommendationService) GetForTitle(
	ctx context.Context,
	title string,
) (*domain.LinkRecommendation, error) {
	if _, err := s.taskType(ctx); err != nil {
		return nil, err
	}

	rec, err := s.recStore.GetByLinkTarget(ctx, store.ReadNormal, title, false)
	if store.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Refresh fetches a new recommendation for the page named by title from
// the external service and stores it. Targets the page's users have
// repeatedly rejected are excluded from the request. Returns the stored
// recommendation, or nil when the service has no suggestions for the page.
func (s *LinkRecommendationService) Refresh(
	ctx context.Context,
	title string,
) (*domain.LinkRecommendation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	taskType, err := s.taskType(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.pages.GetPageByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", store.ErrPageNotFound, title)
	}

	excluded, err := s.recStore.GetExcludedLinkIDs(ctx, page.ID, store.RejectionExclusionLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load excluded targets for page %d: %w", page.ID, err)
	}

	rec, err := s.fetcher.Fetch(ctx, page.ID, page.LatestRevID, page.Title, linkserver.FetchOptions{
		MinimumScore:       taskconfig.MinimumLinkScore(taskType),
		MaxRecommendations: taskconfig.MaxLinksPerTask(taskType),
		ExcludedTargetIDs:  excluded,
	})
	if errors.Is(err, linkserver.ErrNoRecommendation) {
		log.Debug("no recommendation available",
			slog.String("title", page.Title),
			slog.Int64("revision_id", page.LatestRevID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.recStore.Insert(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}
