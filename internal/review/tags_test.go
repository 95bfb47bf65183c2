package review

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/models"
)

func tagsOf(t *testing.T, tags map[int64][]models.ReviewUserTag, uid int64) []models.ReviewUserTag {
	t.Helper()
	return tags[uid]
}

func TestComputeTagsSoleAssignee(t *testing.T) {
	tags := ComputeTags(TagState{
		Files: []FileState{
			{FileChangeID: 1, Reviewed: false, Assignments: []UserFlag{{UserID: 7, Reviewed: false}}},
		},
		ReviewUsers: []int64{7},
	})
	require.ElementsMatch(t,
		[]models.ReviewUserTag{
			models.TagAssigned, models.TagAvailable, models.TagPending,
			models.TagSingle, models.TagUnseen,
		},
		tagsOf(t, tags, 7))
}

func TestComputeTagsPrimaryReviewer(t *testing.T) {
	tags := ComputeTags(TagState{
		Files: []FileState{
			{FileChangeID: 1, Reviewed: true, Assignments: []UserFlag{
				{UserID: 7, Reviewed: true},
				{UserID: 8, Reviewed: false},
			}},
		},
		ReviewUsers: []int64{7, 8},
	})
	require.Contains(t, tagsOf(t, tags, 7), models.TagPrimary)
	require.NotContains(t, tagsOf(t, tags, 7), models.TagUnseen)
	require.NotContains(t, tagsOf(t, tags, 8), models.TagPrimary)
	require.Contains(t, tagsOf(t, tags, 8), models.TagUnseen)
	// The file's aggregate is reviewed, so nobody is pending.
	require.NotContains(t, tagsOf(t, tags, 7), models.TagPending)
	require.NotContains(t, tagsOf(t, tags, 8), models.TagPending)
}

func TestComputeTagsWatching(t *testing.T) {
	tags := ComputeTags(TagState{
		Files: []FileState{
			{FileChangeID: 1, Assignments: []UserFlag{{UserID: 7}}},
		},
		ReviewUsers: []int64{7, 9},
	})
	require.Contains(t, tagsOf(t, tags, 9), models.TagWatching)
	require.NotContains(t, tagsOf(t, tags, 7), models.TagWatching)
}

func TestComputeTagsUnpublished(t *testing.T) {
	tags := ComputeTags(TagState{
		ReviewUsers:  []int64{5},
		DraftAuthors: []int64{5},
	})
	require.Contains(t, tagsOf(t, tags, 5), models.TagUnpublished)
	require.Contains(t, tagsOf(t, tags, 5), models.TagWatching)
}

func TestComputeTagsAvailableOnlyWithoutActiveReviewer(t *testing.T) {
	tags := ComputeTags(TagState{
		Files: []FileState{
			{FileChangeID: 1, Assignments: []UserFlag{
				{UserID: 1, Reviewed: true},
				{UserID: 2, Reviewed: false},
			}},
			{FileChangeID: 2, Assignments: []UserFlag{
				{UserID: 2, Reviewed: false},
				{UserID: 3, Reviewed: false},
			}},
		},
	})
	// File 1 has an active reviewer; file 2 does not.
	require.NotContains(t, tagsOf(t, tags, 1), models.TagAvailable)
	require.Contains(t, tagsOf(t, tags, 2), models.TagAvailable)
	require.Contains(t, tagsOf(t, tags, 3), models.TagAvailable)
}

func TestComputeTagsDeterministicOrder(t *testing.T) {
	state := TagState{
		Files: []FileState{
			{FileChangeID: 1, Assignments: []UserFlag{{UserID: 4, Reviewed: true}}},
		},
		ReviewUsers:  []int64{4},
		DraftAuthors: []int64{4},
	}
	first := ComputeTags(state)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, ComputeTags(state))
	}
}

func TestTransitionEventMapping(t *testing.T) {
	cases := []struct {
		from, to models.ReviewState
		want     models.ReviewEventType
	}{
		{models.ReviewDraft, models.ReviewOpen, models.EventPublished},
		{models.ReviewClosed, models.ReviewOpen, models.EventReopened},
		{models.ReviewDropped, models.ReviewOpen, models.EventReopened},
		{models.ReviewOpen, models.ReviewClosed, models.EventClosed},
		{models.ReviewOpen, models.ReviewDropped, models.EventDropped},
	}
	for _, c := range cases {
		require.Equal(t, c.want, transitionEvent(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}
