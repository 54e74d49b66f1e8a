package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// mockRecStore implements store.LinkRecommendationStore; only the delete
// path matters here.
type mockRecStore struct {
	store.LinkRecommendationStore

	deletedPageIDs []int64
	deleteErr      error
}

func (m *mockRecStore) DeleteByPageIDs(ctx context.Context, pageIDs []int64) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deletedPageIDs = append(m.deletedPageIDs, pageIDs...)
	return int64(len(pageIDs)), nil
}

// mockIndexUpdater implements wiki.SearchIndexUpdater.
type mockIndexUpdater struct {
	resetPageIDs []int64
	resetPrefix  string
	resetErr     error
}

func (m *mockIndexUpdater) ResetWeightedTags(ctx context.Context, pageID int64, tagPrefix string) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resetPageIDs = append(m.resetPageIDs, pageID)
	m.resetPrefix = tagPrefix
	return nil
}

func TestRecommendationCleanupTask_DeleteOnly(t *testing.T) {
	t.Parallel()

	recStore := &mockRecStore{}
	index := &mockIndexUpdater{}

	cleanup := NewRecommendationCleanupTask(101, false, recStore, index, nil)
	require.NoError(t, cleanup.Execute(context.Background()))

	assert.Equal(t, []int64{101}, recStore.deletedPageIDs)
	assert.Empty(t, index.resetPageIDs, "index reset only happens for null edits")
}

func TestRecommendationCleanupTask_NullEditResetsIndex(t *testing.T) {
	t.Parallel()

	recStore := &mockRecStore{}
	index := &mockIndexUpdater{}

	cleanup := NewRecommendationCleanupTask(101, true, recStore, index, nil)
	require.NoError(t, cleanup.Execute(context.Background()))

	assert.Equal(t, []int64{101}, recStore.deletedPageIDs)
	assert.Equal(t, []int64{101}, index.resetPageIDs)
	assert.Equal(t, wiki.WeightedTagPrefix, index.resetPrefix)
}

func TestRecommendationCleanupTask_DeleteFailureSkipsReset(t *testing.T) {
	t.Parallel()

	recStore := &mockRecStore{deleteErr: errors.New("db unavailable")}
	index := &mockIndexUpdater{}

	cleanup := NewRecommendationCleanupTask(101, true, recStore, index, nil)
	err := cleanup.Execute(context.Background())

	require.Error(t, err)
	assert.Empty(t, index.resetPageIDs)
}

func TestRecommendationCleanupTask_Metadata(t *testing.T) {
	t.Parallel()

	cleanup := NewRecommendationCleanupTask(101, false, &mockRecStore{}, &mockIndexUpdater{}, nil)
	assert.Equal(t, TaskTypeRecommendationCleanup, cleanup.Type())
	assert.NotEqual(t, cleanup.ID(), NewRecommendationCleanupTask(101, false, nil, nil, nil).ID())
}

// Compile-time interface checks for the mocks used above.
var (
	_ store.LinkRecommendationStore = (*mockRecStore)(nil)
	_ wiki.SearchIndexUpdater       = (*mockIndexUpdater)(nil)
)
