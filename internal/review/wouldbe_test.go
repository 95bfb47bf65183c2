package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/database"
)

func TestWouldBeAcceptedTagFromSavepointCounterfactual(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FOR UPDATE")
	// Baseline: an unreviewed file keeps the review unaccepted. After
	// the counterfactual publication, nothing blocks acceptance.
	pool.OnOnce("AND NOT reviewed)", []any{true, false})
	pool.OnOnce("AND NOT reviewed)", []any{false, false})
	pool.On("SELECT EXISTS", []any{true})
	pool.On("AS drafts", []any{int64(7)})
	pool.On("INSERT INTO reviewevents", []any{int64(501)})
	pool.On("INSERT INTO batches", []any{int64(601)})

	cursor := fakeCursor(t, pool)
	err := UpdateWouldBeAcceptedTag(context.Background(), cursor, 9)
	require.NoError(t, err)

	// The publication ran inside a savepoint and was rolled back.
	require.True(t, pool.ExecutedBefore("SAVEPOINT", "ROLLBACK TO SAVEPOINT"))
	require.True(t, pool.ExecutedBefore("INSERT INTO batches", "ROLLBACK TO SAVEPOINT"))

	var tagged bool
	for _, stmt := range pool.Recorded() {
		if len(stmt.Args) == 3 && stmt.Args[2] == "would_be_accepted" {
			tagged = true
		}
	}
	require.True(t, tagged, "user 7 should carry would_be_accepted")
}

func TestWouldBeAcceptedTagSkipsStaleDrafts(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FOR UPDATE")
	pool.On("AND NOT reviewed)", []any{true, false})
	// The draft author's publication finds nothing left to submit.
	pool.On("SELECT EXISTS", []any{false})
	pool.On("AS drafts", []any{int64(7)})

	cursor := fakeCursor(t, pool)
	err := UpdateWouldBeAcceptedTag(context.Background(), cursor, 9)
	require.NoError(t, err)

	require.True(t, pool.Executed("ROLLBACK TO SAVEPOINT"))
	for _, stmt := range pool.Recorded() {
		if len(stmt.Args) == 3 {
			require.NotEqual(t, "would_be_accepted", stmt.Args[2])
			require.NotEqual(t, "would_be_unaccepted", stmt.Args[2])
		}
	}
}
