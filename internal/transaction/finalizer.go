package transaction

import (
	"context"
	"sort"

	"github.com/critic-scm/critic/internal/database"
)

// Finalizer runs once per transaction after the item queue drains, to
// recompute derived state (review tags, per-file summaries, acceptance)
// from whatever the queued items changed. Finalizers are deduplicated
// by Key, so many mutations can request the same recomputation cheaply.
type Finalizer interface {
	// Key identifies the finalizer; registering a second finalizer with
	// the same key is a no-op.
	Key() string

	// ShouldRunAfter reports whether this finalizer depends on the
	// other one's output and must run later.
	ShouldRunAfter(other Finalizer) bool

	// Run performs the recomputation. It may append further items to
	// the transaction; they drain before the next finalizer runs.
	Run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error
}

// orderFinalizers sorts finalizers so that every ShouldRunAfter edge is
// respected, using Kahn's algorithm. Keys break ties so the order is
// deterministic. A dependency cycle fails the transaction.
func orderFinalizers(finalizers []Finalizer) ([]Finalizer, error) {
	n := len(finalizers)
	if n <= 1 {
		return finalizers, nil
	}

	indegree := make([]int, n)
	edges := make([][]int, n)
	for i, before := range finalizers {
		for j, after := range finalizers {
			if i == j {
				continue
			}
			if after.ShouldRunAfter(before) {
				edges[i] = append(edges[i], j)
				indegree[j]++
			}
		}
	}

	ready := make([]int, 0, n)
	for i, degree := range indegree {
		if degree == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Finalizer, 0, n)
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool {
			return finalizers[ready[a]].Key() < finalizers[ready[b]].Key()
		})
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, finalizers[next])
		for _, succ := range edges[next] {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if len(ordered) != n {
		var stuck []string
		for i, degree := range indegree {
			if degree > 0 {
				stuck = append(stuck, finalizers[i].Key())
			}
		}
		sort.Strings(stuck)
		return nil, Errorf("FINALIZER_CYCLE",
			"finalizer dependency cycle involving %v", stuck)
	}
	return ordered, nil
}
