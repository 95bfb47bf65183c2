package review

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/models"
)

func TestBuildPartitionsSingleSegment(t *testing.T) {
	graph := NewCommitGraph()
	graph.Add(1)
	graph.Add(2, 1)
	graph.Add(3, 2)

	partition, err := BuildPartitions(graph, 3, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, partition.Commits)
	require.Nil(t, partition.Rebase)
	require.Nil(t, partition.Preceding)
	require.Nil(t, partition.Following)
}

func TestBuildPartitionsRebaseSplitsHistory(t *testing.T) {
	// Old history 1<-2, rewritten by a rebase into 10<-11<-12.
	graph := NewCommitGraph()
	graph.Add(1)
	graph.Add(2, 1)
	graph.Add(10)
	graph.Add(11, 10)
	graph.Add(12, 11)

	rebase := models.Rebase{ID: 77, ReviewID: 5}
	newest, err := BuildPartitions(graph, 12, []Cut{{Rebase: rebase, Head: 2}})
	require.NoError(t, err)

	require.Equal(t, []int64{10, 11, 12}, newest.Commits)
	require.NotNil(t, newest.Rebase)
	require.Equal(t, int64(77), newest.Rebase.ID)

	older := newest.Preceding
	require.NotNil(t, older)
	require.Equal(t, []int64{1, 2}, older.Commits)
	require.Same(t, newest, older.Following)
	require.Nil(t, older.Preceding)
}

func TestBuildPartitionsEmptyPrecedingSegment(t *testing.T) {
	graph := NewCommitGraph()
	graph.Add(10)
	graph.Add(11, 10)

	newest, err := BuildPartitions(graph, 11, []Cut{{Rebase: models.Rebase{ID: 1}}})
	require.NoError(t, err)
	require.Equal(t, []int64{10, 11}, newest.Commits)
	require.NotNil(t, newest.Preceding)
	require.Empty(t, newest.Preceding.Commits)
}

func TestBuildPartitionsMergeHistory(t *testing.T) {
	// Merge commit 4 joins branches 2 and 3 above root 1.
	graph := NewCommitGraph()
	graph.Add(1)
	graph.Add(2, 1)
	graph.Add(3, 1)
	graph.Add(4, 2, 3)

	partition, err := BuildPartitions(graph, 4, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, partition.Commits)
}

func TestBuildPartitionsRejectsStrayCommits(t *testing.T) {
	graph := NewCommitGraph()
	graph.Add(1)
	graph.Add(2, 1)
	graph.Add(9) // unreachable second head

	_, err := BuildPartitions(graph, 2, nil)
	require.Error(t, err)
	domainErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, "PARTITION_MULTIPLE_HEADS", domainErr.Code)
}
