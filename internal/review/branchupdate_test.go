package review

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/database"
)

func TestMatchScopesMostSpecificFilterDecides(t *testing.T) {
	scopeFilters := []ScopeFilter{
		{ScopeID: 1, Path: "src/**", Included: true},
		{ScopeID: 1, Path: "src/vendor/**", Included: false},
		{ScopeID: 2, Path: "docs/**", Included: true},
	}

	cases := []struct {
		path string
		want []int64
	}{
		{"src/engine.c", []int64{1}},
		{"src/vendor/lib.c", nil},
		{"docs/manual.md", []int64{2}},
		{"README", nil},
	}
	for _, c := range cases {
		got, err := MatchScopes(scopeFilters, c.path)
		require.NoError(t, err)
		require.Equal(t, c.want, got, "path %s", c.path)
	}
}

func TestMatchScopesExcludeOnlyNeverIncludes(t *testing.T) {
	scopeFilters := []ScopeFilter{
		{ScopeID: 1, Path: "src/**", Included: false},
	}
	got, err := MatchScopes(scopeFilters, "src/engine.c")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRecordBranchUpdateMovesHeadAndCommits(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("INSERT INTO branchupdates", []any{int64(77)})

	from := int64(10)
	cursor := fakeCursor(t, pool)
	id, err := RecordBranchUpdate(context.Background(), cursor, BranchUpdate{
		BranchID:      4,
		FromHead:      &from,
		ToHead:        20,
		Associated:    []int64{101, 102},
		Disassociated: []int64{99},
	})
	require.NoError(t, err)
	require.Equal(t, int64(77), id)

	var updateCommits int
	for _, stmt := range pool.Recorded() {
		if stmtContains(stmt, "INSERT INTO branchupdatecommits") {
			updateCommits++
		}
	}
	require.Equal(t, 3, updateCommits, "two associated plus one disassociated")

	require.True(t, pool.Executed("INSERT INTO branchcommits"))
	require.True(t, pool.Executed("DELETE FROM branchcommits"))

	for _, stmt := range pool.Recorded() {
		if stmtContains(stmt, "UPDATE branches") {
			// head, size delta, branch id
			require.Equal(t, []any{int64(20), 1, int64(4)}, stmt.Args)
		}
	}
}

func TestDeriveReviewFilesScopedRows(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT reviewscopefilters.scope", []any{int64(1), "src/**", true})
	pool.On("SELECT changesetfiles.file",
		[]any{int64(5), "src/engine.c",
			[]byte(`[{"old_offset":3,"delete_count":2,"new_offset":3,"insert_count":4}]`)},
		[]any{int64(6), "README.md", nil})

	cursor := fakeCursor(t, pool)
	err := DeriveReviewFiles(context.Background(), cursor, 9, 200, nil)
	require.NoError(t, err)

	require.True(t, pool.Executed("INSERT INTO reviewchangesets"))

	var rows [][]any
	for _, stmt := range pool.Recorded() {
		if stmtContains(stmt, "INSERT INTO reviewfiles") {
			rows = append(rows, stmt.Args)
		}
	}
	// engine.c gets an unscoped row plus the scope-1 row; the readme
	// matches no scope and gets the unscoped row only.
	require.Len(t, rows, 3)
	for _, args := range rows {
		require.Equal(t, int64(9), args[0])
		require.Equal(t, int64(200), args[1])
		if args[2] == int64(5) {
			require.Equal(t, 4, args[4], "inserted lines summed from blocks")
			require.Equal(t, 2, args[5], "deleted lines summed from blocks")
		}
	}
}

func TestIntegrateBranchUpdateRecordsEvent(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT updater FROM branchupdates", []any{int64(7)})
	pool.On("INSERT INTO reviewevents", []any{int64(900)})

	cursor := fakeCursor(t, pool)
	err := IntegrateBranchUpdate(context.Background(), cursor, 9, 77, 200)
	require.NoError(t, err)

	var eventType any
	for _, stmt := range pool.Recorded() {
		if stmtContains(stmt, "INSERT INTO reviewevents") {
			eventType = stmt.Args[len(stmt.Args)-1]
		}
	}
	require.EqualValues(t, "branchupdate", eventType)
}

func stmtContains(stmt database.Statement, substr string) bool {
	return strings.Contains(stmt.SQL, substr)
}
