package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskType(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		tt, err := NewTaskType("copyedit", "", "")
		require.NoError(t, err)
		assert.Equal(t, "copyedit", tt.ID)
		assert.Equal(t, DifficultyEasy, tt.Difficulty)
		assert.Equal(t, HandlerTemplateBased, tt.HandlerID)
	})

	t.Run("empty ID rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewTaskType("", DifficultyEasy, HandlerTemplateBased)
		assert.ErrorIs(t, err, ErrEmptyTaskTypeID)
	})

	t.Run("unknown difficulty rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewTaskType("copyedit", "impossible", HandlerTemplateBased)
		assert.ErrorIs(t, err, ErrInvalidDifficulty)
	})
}

func TestTaskTypeSearchCompatible(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		handlerID  string
		compatible bool
	}{
		{HandlerTemplateBased, true},
		{HandlerLinkRecommendation, true},
		{"image-recommendation-v0", false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.handlerID, func(t *testing.T) {
			t.Parallel()
			tt := &TaskType{ID: "x", Difficulty: DifficultyEasy, HandlerID: tc.handlerID}
			assert.Equal(t, tc.compatible, tt.SearchCompatible())
		})
	}
}

func TestTopicValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid morelike", func(t *testing.T) {
		t.Parallel()
		topic, err := NewMorelikeTopic("science", "Science", []string{"Physics", "Biology"})
		require.NoError(t, err)
		assert.Equal(t, TopicVariantMorelike, topic.Variant)
	})

	t.Run("morelike without titles rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewMorelikeTopic("science", "Science", nil)
		assert.ErrorIs(t, err, ErrEmptyTopicTitles)
	})

	t.Run("valid ores", func(t *testing.T) {
		t.Parallel()
		topic, err := NewOresTopic("science", "stem", []string{"STEM.Physics"})
		require.NoError(t, err)
		assert.Equal(t, TopicVariantOres, topic.Variant)
	})

	t.Run("ores without group rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewOresTopic("science", "", []string{"STEM.Physics"})
		assert.ErrorIs(t, err, ErrEmptyTopicGroup)
	})

	t.Run("ores without labels rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewOresTopic("science", "stem", nil)
		assert.ErrorIs(t, err, ErrEmptyOresLabels)
	})
}

func TestLinkRecommendationValidate(t *testing.T) {
	t.Parallel()

	links := []LinkRecommendationLink{
		{LinkTarget: "Physics", TargetPageID: 11, Score: 0.9, Text: "physics", WikitextOffset: 120},
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		rec, err := NewLinkRecommendation(1, 2, links, LinkRecommendationMeta{})
		require.NoError(t, err)
		assert.NotNil(t, rec.LinkByTarget("Physics"))
		assert.Nil(t, rec.LinkByTarget("Chemistry"))
	})

	t.Run("requires links", func(t *testing.T) {
		t.Parallel()
		_, err := NewLinkRecommendation(1, 2, nil, LinkRecommendationMeta{})
		assert.ErrorIs(t, err, ErrNoRecommendedLink)
	})

	t.Run("requires positive ids", func(t *testing.T) {
		t.Parallel()
		_, err := NewLinkRecommendation(0, 2, links, LinkRecommendationMeta{})
		assert.ErrorIs(t, err, ErrInvalidPageID)
		_, err = NewLinkRecommendation(1, 0, links, LinkRecommendationMeta{})
		assert.ErrorIs(t, err, ErrInvalidRevisionID)
	})
}

func TestSubmissionValidate(t *testing.T) {
	t.Parallel()

	valid := Submission{
		PageID: 1, RevisionID: 2, UserID: 3, TargetID: 4,
		Feedback: FeedbackAccepted,
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		s := valid
		assert.NoError(t, s.Validate())
	})

	t.Run("bad feedback code", func(t *testing.T) {
		t.Parallel()
		s := valid
		s.Feedback = "x"
		assert.ErrorIs(t, s.Validate(), ErrInvalidFeedback)
	})
}
