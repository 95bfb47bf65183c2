package review

import (
	"sort"

	"github.com/critic-scm/critic/internal/models"
)

// CommitGraph is a review branch's commit set with parent edges. Edges
// to commits outside the set are ignored when walking.
type CommitGraph struct {
	parents map[int64][]int64
}

func NewCommitGraph() *CommitGraph {
	return &CommitGraph{parents: make(map[int64][]int64)}
}

func (g *CommitGraph) Add(commit int64, parents ...int64) {
	g.parents[commit] = append(g.parents[commit], parents...)
}

func (g *CommitGraph) Contains(commit int64) bool {
	_, ok := g.parents[commit]
	return ok
}

func (g *CommitGraph) Size() int { return len(g.parents) }

// Partition is one segment of a review branch's history, delimited by
// rebases. Following points toward newer history, Preceding toward
// older; Rebase is the rebase separating this partition from the
// preceding one.
type Partition struct {
	Commits   []int64
	Rebase    *models.Rebase
	Following *Partition
	Preceding *Partition
}

// Cut pairs a rebase with the head commit the branch had before it, or
// zero when the preceding partition is empty.
type Cut struct {
	Rebase models.Rebase
	Head   int64
}

// BuildPartitions divides the commit graph into a doubly-linked list of
// partitions, newest first. Each partition's commits are those
// reachable from its head that no newer partition claimed; every
// partition has exactly one head or is empty, and every commit must
// land in some partition.
func BuildPartitions(graph *CommitGraph, head int64, cuts []Cut) (*Partition, error) {
	remaining := make(map[int64]bool, len(graph.parents))
	for commit := range graph.parents {
		remaining[commit] = true
	}

	newest := &Partition{Commits: claim(graph, remaining, head)}
	current := newest
	for i := range cuts {
		cut := cuts[i]
		preceding := &Partition{
			Commits:   claim(graph, remaining, cut.Head),
			Following: current,
		}
		current.Rebase = &cut.Rebase
		current.Preceding = preceding
		current = preceding
	}

	if len(remaining) > 0 {
		var stray []int64
		for commit := range remaining {
			stray = append(stray, commit)
		}
		sort.Slice(stray, func(i, j int) bool { return stray[i] < stray[j] })
		return nil, errorf("PARTITION_MULTIPLE_HEADS",
			"commits %v are not reachable from any partition head", stray)
	}
	return newest, nil
}

// claim walks parent edges from head, collecting commits still
// unclaimed, and removes them from remaining. Commits are returned in
// ascending id order.
func claim(graph *CommitGraph, remaining map[int64]bool, head int64) []int64 {
	if head == 0 || !remaining[head] {
		return nil
	}
	var commits []int64
	stack := []int64{head}
	for len(stack) > 0 {
		commit := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !remaining[commit] {
			continue
		}
		delete(remaining, commit)
		commits = append(commits, commit)
		stack = append(stack, graph.parents[commit]...)
	}
	sort.Slice(commits, func(i, j int) bool { return commits[i] < commits[j] })
	return commits
}
