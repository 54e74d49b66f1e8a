package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/task"
	"github.com/quillwiki/growthtasks/internal/taskconfig"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// fakeConfig implements suggester.ConfigProvider.
type fakeConfig struct {
	taskTypes map[string]*domain.TaskType
}

func (f *fakeConfig) GetTaskTypes(ctx context.Context) map[string]*domain.TaskType {
	return f.taskTypes
}

func (f *fakeConfig) GetTopics(ctx context.Context) map[string]*domain.Topic {
	return nil
}

// fakeRecStore implements the slices of store.LinkRecommendationStore the
// services touch.
type fakeRecStore struct {
	store.LinkRecommendationStore

	recsByRevID  map[int64]*domain.LinkRecommendation
	hasSub       bool
	hasSubErr    error
	dailyCount   int
	countErr     error
	recordErr    error
	excludedIDs  []int64
	insertedRecs []*domain.LinkRecommendation

	recordedUserID   int64
	recordedAccepted []int64
	recordedRejected []int64
	recordedSkipped  []int64
	recordedEditRev  *int64
	recordCalls      int

	deletedPageIDs []int64
}

func (f *fakeRecStore) GetByRevID(ctx context.Context, flags store.ReadFlags, revID int64) (*domain.LinkRecommendation, error) {
	rec, ok := f.recsByRevID[revID]
	if !ok {
		return nil, store.ErrRecommendationNotFound
	}
	return rec, nil
}

func (f *fakeRecStore) GetByPageID(ctx context.Context, flags store.ReadFlags, pageID int64) (*domain.LinkRecommendation, error) {
	for _, rec := range f.recsByRevID {
		if rec.PageID == pageID {
			return rec, nil
		}
	}
	return nil, store.ErrRecommendationNotFound
}

func (f *fakeRecStore) GetByLinkTarget(ctx context.Context, flags store.ReadFlags, title string, allowOldRevision bool) (*domain.LinkRecommendation, error) {
	for _, rec := range f.recsByRevID {
		return rec, nil
	}
	return nil, store.ErrRecommendationNotFound
}

func (f *fakeRecStore) HasSubmission(ctx context.Context, rec *domain.LinkRecommendation, flags store.ReadFlags) (bool, error) {
	return f.hasSub, f.hasSubErr
}

func (f *fakeRecStore) CountSubmissionsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	return f.dailyCount, f.countErr
}

func (f *fakeRecStore) GetExcludedLinkIDs(ctx context.Context, pageID int64, limit int) ([]int64, error) {
	return f.excludedIDs, nil
}

func (f *fakeRecStore) Insert(ctx context.Context, rec *domain.LinkRecommendation) error {
	f.insertedRecs = append(f.insertedRecs, rec)
	return nil
}

func (f *fakeRecStore) DeleteByPageIDs(ctx context.Context, pageIDs []int64) (int64, error) {
	f.deletedPageIDs = append(f.deletedPageIDs, pageIDs...)
	return int64(len(pageIDs)), nil
}

func (f *fakeRecStore) RecordSubmission(
	ctx context.Context,
	userID int64,
	rec *domain.LinkRecommendation,
	accepted, rejected, skipped []int64,
	editRevID *int64,
) error {
	f.recordCalls++
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recordedUserID = userID
	f.recordedAccepted = accepted
	f.recordedRejected = rejected
	f.recordedSkipped = skipped
	f.recordedEditRev = editRevID
	return nil
}

// fakeResolver implements wiki.TitleResolver.
type fakeResolver struct {
	titlesByID map[int64]string
	err        error
}

func (f *fakeResolver) ResolveTitles(ctx context.Context, titles []string) (map[string]wiki.PageInfo, error) {
	return nil, errors.New("not used")
}

func (f *fakeResolver) ResolvePageIDs(ctx context.Context, pageIDs []int64) (map[int64]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int64]string)
	for _, id := range pageIDs {
		if title, ok := f.titlesByID[id]; ok {
			out[id] = title
		}
	}
	return out, nil
}

// fakeIndex implements wiki.SearchIndexUpdater.
type fakeIndex struct {
	resetPageIDs []int64
}

func (f *fakeIndex) ResetWeightedTags(ctx context.Context, pageID int64, tagPrefix string) error {
	f.resetPageIDs = append(f.resetPageIDs, pageID)
	return nil
}

// fakeBlocks implements UserBlockChecker.
type fakeBlocks struct {
	blocked bool
	err     error
}

func (f *fakeBlocks) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	return f.blocked, f.err
}

// syncDeferrer runs submitted tasks immediately in the caller's goroutine.
type syncDeferrer struct {
	submitted []task.Task
	submitErr error
}

func (d *syncDeferrer) Submit(t task.Task) error {
	if d.submitErr != nil {
		return d.submitErr
	}
	d.submitted = append(d.submitted, t)
	return t.Execute(context.Background())
}

func linkTaskType(t *testing.T, maxPerDay int) *domain.TaskType {
	t.Helper()
	taskType, err := domain.NewTaskType("link-recommendation", domain.DifficultyEasy, domain.HandlerLinkRecommendation)
	require.NoError(t, err)
	taskType.Extra = map[string]any{taskconfig.ExtraMaxTasksPerDay: maxPerDay}
	return taskType
}

func storedRecommendation() *domain.LinkRecommendation {
	return &domain.LinkRecommendation{
		PageID:     101,
		RevisionID: 5001,
		Links: []domain.LinkRecommendationLink{
			{LinkTarget: "Kelp", TargetPageID: 7, Score: 0.81, Text: "kelp forests", WikitextOffset: 120},
			{LinkTarget: "Otter", TargetPageID: 8, Score: 0.64, Text: "sea otters", WikitextOffset: 310},
		},
	}
}

type submissionFixture struct {
	svc      *SubmissionService
	recStore *fakeRecStore
	index    *fakeIndex
	deferrer *syncDeferrer
	page     *wiki.PageInfo
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()

	recStore := &fakeRecStore{
		recsByRevID: map[int64]*domain.LinkRecommendation{5001: storedRecommendation()},
	}
	resolver := &fakeResolver{titlesByID: map[int64]string{7: "Kelp", 8: "Otter"}}
	index := &fakeIndex{}
	deferrer := &syncDeferrer{}
	config := &fakeConfig{taskTypes: map[string]*domain.TaskType{
		"link-recommendation": linkTaskType(t, 25),
	}}

	svc := NewSubmissionService(config, recStore, resolver, index, &fakeBlocks{}, deferrer, nil)

	return &submissionFixture{
		svc:      svc,
		recStore: recStore,
		index:    index,
		deferrer: deferrer,
		page:     &wiki.PageInfo{ID: 101, Title: "Kelp forest", LatestRevID: 5001},
	}
}

func TestSubmissionService_Handle_AcceptAndReject(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)
	editRev := int64(6001)

	result, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, &editRev, SubmissionData{
		AcceptedTargetIDs: []int64{7},
		RejectedTargetIDs: []int64{8},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	assert.Equal(t, int64(42), fx.recStore.recordedUserID)
	assert.Equal(t, []int64{7}, fx.recStore.recordedAccepted)
	assert.Equal(t, []int64{8}, fx.recStore.recordedRejected)
	assert.Empty(t, fx.recStore.recordedSkipped)
	require.NotNil(t, fx.recStore.recordedEditRev)
	assert.Equal(t, editRev, *fx.recStore.recordedEditRev)

	// The edit triggers reindexing by itself, no explicit reset.
	assert.Equal(t, []int64{101}, fx.recStore.deletedPageIDs)
	assert.Empty(t, fx.index.resetPageIDs)
}

func TestSubmissionService_Handle_NullEditResetsIndex(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)

	_, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, nil, SubmissionData{
		RejectedTargetIDs: []int64{7, 8},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{101}, fx.recStore.deletedPageIDs)
	assert.Equal(t, []int64{101}, fx.index.resetPageIDs)
}

func TestSubmissionService_Handle_UnknownTarget(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)

	// Target 9 is not part of the stored recommendation.
	_, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, nil, SubmissionData{
		AcceptedTargetIDs: []int64{7, 9},
		RejectedTargetIDs: []int64{8},
	})
	require.ErrorIs(t, err, ErrInvalidSubmission)
	assert.Zero(t, fx.recStore.recordCalls, "nothing may be recorded on validation failure")
}

func TestSubmissionService_Handle_IncompleteDecision(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)

	// Target 8 is missing from all three sets.
	_, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, nil, SubmissionData{
		AcceptedTargetIDs: []int64{7},
	})
	require.ErrorIs(t, err, ErrInvalidSubmission)
	assert.Zero(t, fx.recStore.recordCalls)
}

func TestSubmissionService_Handle_DuplicateTarget(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)

	_, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, nil, SubmissionData{
		AcceptedTargetIDs: []int64{7},
		RejectedTargetIDs: []int64{7, 8},
	})
	require.ErrorIs(t, err, ErrInvalidSubmission)
}

func TestSubmissionService_Handle_BaseRevisionMismatch(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)

	// The page moved to revision 5002 and the client submitted against
	// the old recommendation; no row exists for 5002.
	_, err := fx.svc.Handle(context.Background(), fx.page, 42, 5002, nil, SubmissionData{
		AcceptedTargetIDs: []int64{7, 8},
	})
	assert.ErrorIs(t, err, store.ErrRecommendationNotFound)
	assert.Zero(t, fx.recStore.recordCalls)
}

func TestSubmissionService_Handle_RevisionFromOtherPage(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)

	// Revision 5001 is stored for page 101; a client submitting it
	// against a different page must not record rows for page 101 or
	// trigger cleanup of the other page's recommendation.
	otherPage := &wiki.PageInfo{ID: 202, Title: "Sea urchin barren", LatestRevID: 7001}

	_, err := fx.svc.Handle(context.Background(), otherPage, 42, 5001, nil, SubmissionData{
		RejectedTargetIDs: []int64{7, 8},
	})
	assert.ErrorIs(t, err, store.ErrRecommendationNotFound)
	assert.Zero(t, fx.recStore.recordCalls)
	assert.Empty(t, fx.deferrer.submitted)
	assert.Empty(t, fx.recStore.deletedPageIDs)
}

func TestSubmissionService_Handle_AlreadySubmitted(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)
	fx.recStore.hasSub = true

	_, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, nil, SubmissionData{
		AcceptedTargetIDs: []int64{7, 8},
	})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmissionService_Handle_DailyLimitWarning(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		dailyCount int
		maxPerDay  int
		wantWarn   bool
	}{
		{name: "well_below_limit", dailyCount: 3, maxPerDay: 25, wantWarn: false},
		{name: "one_below_limit", dailyCount: 24, maxPerDay: 25, wantWarn: true},
		{name: "at_limit", dailyCount: 25, maxPerDay: 25, wantWarn: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newSubmissionFixture(t)
			fx.recStore.dailyCount = tt.dailyCount

			result, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, nil, SubmissionData{
				RejectedTargetIDs: []int64{7, 8},
			})
			require.NoError(t, err)

			if tt.wantWarn {
				assert.Contains(t, result.Warnings, WarningDailyLimitApproaching)
			} else {
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestSubmissionService_Handle_DailyLimitPicksFirstTaskTypeID(t *testing.T) {
	t.Parallel()

	namedLinkType := func(id string, maxPerDay int) *domain.TaskType {
		taskType, err := domain.NewTaskType(id, domain.DifficultyEasy, domain.HandlerLinkRecommendation)
		require.NoError(t, err)
		taskType.Extra = map[string]any{taskconfig.ExtraMaxTasksPerDay: maxPerDay}
		return taskType
	}

	recStore := &fakeRecStore{
		recsByRevID: map[int64]*domain.LinkRecommendation{5001: storedRecommendation()},
		dailyCount:  4,
	}
	config := &fakeConfig{taskTypes: map[string]*domain.TaskType{
		"alpha-links": namedLinkType("alpha-links", 5),
		"zeta-links":  namedLinkType("zeta-links", 100),
	}}
	resolver := &fakeResolver{titlesByID: map[int64]string{7: "Kelp", 8: "Otter"}}
	svc := NewSubmissionService(config, recStore, resolver, &fakeIndex{}, &fakeBlocks{}, &syncDeferrer{}, nil)

	page := &wiki.PageInfo{ID: 101, Title: "Kelp forest", LatestRevID: 5001}
	result, err := svc.Handle(context.Background(), page, 42, 5001, nil, SubmissionData{
		RejectedTargetIDs: []int64{7, 8},
	})
	require.NoError(t, err)

	// 4 of 5 used under alpha-links, far below zeta-links' 100: the
	// warning proves the lexicographically first type's cap applies, the
	// same pick LinkRecommendationService makes.
	assert.Contains(t, result.Warnings, WarningDailyLimitApproaching)
}

func TestSubmissionService_Handle_ReadOnlyDatabase(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)
	fx.recStore.recordErr = store.ErrReadOnly

	_, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, nil, SubmissionData{
		RejectedTargetIDs: []int64{7, 8},
	})
	assert.ErrorIs(t, err, store.ErrReadOnly)
}

func TestSubmissionService_Handle_DeferrerFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	fx := newSubmissionFixture(t)
	fx.deferrer.submitErr = errors.New("queue full")

	_, err := fx.svc.Handle(context.Background(), fx.page, 42, 5001, nil, SubmissionData{
		RejectedTargetIDs: []int64{7, 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fx.recStore.recordCalls)
}

func TestSubmissionService_Validate(t *testing.T) {
	t.Parallel()

	t.Run("blocked_user", func(t *testing.T) {
		t.Parallel()

		fx := newSubmissionFixture(t)
		svc := NewSubmissionService(
			&fakeConfig{}, fx.recStore, &fakeResolver{}, fx.index,
			&fakeBlocks{blocked: true}, fx.deferrer, nil)

		err := svc.Validate(context.Background(), fx.page, 42)
		assert.ErrorIs(t, err, ErrUserBlocked)
	})

	t.Run("recommendation_gone", func(t *testing.T) {
		t.Parallel()

		fx := newSubmissionFixture(t)
		fx.recStore.recsByRevID = map[int64]*domain.LinkRecommendation{}

		err := fx.svc.Validate(context.Background(), fx.page, 42)
		assert.ErrorIs(t, err, store.ErrRecommendationNotFound)
	})

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		fx := newSubmissionFixture(t)
		assert.NoError(t, fx.svc.Validate(context.Background(), fx.page, 42))
	})
}
