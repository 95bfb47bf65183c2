package comments

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/database"
)

func TestApplyBranchUpdateMarksKilledIssueAddressed(t *testing.T) {
	pool := database.NewFakePool()
	// One changeset in the update rewrites the anchored file, deleting
	// the commented range (lines 5-15 replaced).
	pool.On("FROM reviewchangesets",
		[]any{int64(300), int64(5), "sha_v1", "sha_v2",
			[]byte(`[{"old_offset":5,"delete_count":11,"new_offset":5,"insert_count":3}]`)})
	pool.On("SELECT id, uid, type, file, batch IS NULL FROM commentchains",
		[]any{int64(11), int64(7), "issue", int64(5), false})
	pool.On("SELECT sha1, first_line, last_line", []any{"sha_v1", 10, 12})
	pool.OnExec("UPDATE commentchains", 1)

	cursor := fakeCursor(t, pool)
	result, err := ApplyBranchUpdate(context.Background(), cursor, 9, 77)
	require.NoError(t, err)
	require.Equal(t, 1, result.Addressed)
	require.Equal(t, 0, result.Advanced)

	var marked bool
	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "UPDATE commentchains") {
			// state, addressing commit, branch update, chain
			require.Equal(t, []any{"addressed", int64(300), int64(77), int64(11)}, stmt.Args)
			marked = true
		}
	}
	require.True(t, marked, "the killed issue must record its addressing update")
}

func TestApplyBranchUpdateAdvancesSurvivingRange(t *testing.T) {
	pool := database.NewFakePool()
	// The update deletes two lines well above the commented range; the
	// range survives into the new head, shifted up.
	pool.On("FROM reviewchangesets",
		[]any{int64(300), int64(5), "sha_v1", "sha_v2",
			[]byte(`[{"old_offset":2,"delete_count":2,"new_offset":2,"insert_count":0}]`)})
	pool.On("SELECT id, uid, type, file, batch IS NULL FROM commentchains",
		[]any{int64(11), int64(7), "issue", int64(5), false})
	pool.On("SELECT sha1, first_line, last_line", []any{"sha_v1", 10, 12})

	cursor := fakeCursor(t, pool)
	result, err := ApplyBranchUpdate(context.Background(), cursor, 9, 77)
	require.NoError(t, err)
	require.Equal(t, 0, result.Addressed)
	require.Equal(t, 1, result.Advanced)

	require.False(t, pool.Executed("UPDATE commentchains"))
	var line []any
	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "INSERT INTO commentchainlines") {
			line = stmt.Args
		}
	}
	// chain, sha1, first, last, state, uid
	require.Equal(t, []any{int64(11), "sha_v2", 8, 10, "current", int64(7)}, line)
}

func TestApplyBranchUpdateDraftChainKeepsDraftLines(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FROM reviewchangesets",
		[]any{int64(300), int64(5), "sha_v1", "sha_v2",
			[]byte(`[{"old_offset":2,"delete_count":2,"new_offset":2,"insert_count":0}]`)})
	pool.On("SELECT id, uid, type, file, batch IS NULL FROM commentchains",
		[]any{int64(11), int64(7), "issue", int64(5), true})
	pool.On("SELECT sha1, first_line, last_line", []any{"sha_v1", 10, 12})

	cursor := fakeCursor(t, pool)
	result, err := ApplyBranchUpdate(context.Background(), cursor, 9, 77)
	require.NoError(t, err)
	require.Equal(t, 1, result.Advanced)

	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "INSERT INTO commentchainlines") {
			require.Contains(t, stmt.Args, "draft")
		}
	}
}

func TestApplyBranchUpdateNoTrackedFiles(t *testing.T) {
	pool := database.NewFakePool()
	cursor := fakeCursor(t, pool)

	result, err := ApplyBranchUpdate(context.Background(), cursor, 9, 77)
	require.NoError(t, err)
	require.Equal(t, 0, result.Advanced)
	require.Equal(t, 0, result.Addressed)
	require.False(t, pool.Executed("SELECT id, uid"))
}
