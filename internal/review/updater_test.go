package review

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/database"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunUpdaterFinalizesPendingRebase(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("JOIN LATERAL", []any{int64(3), int64(9), int64(77)})
	pool.OnExec("UPDATE rebases", 1)
	pool.On("AND NOT reviewed)", []any{false, false})

	gw := database.NewGateway(pool)
	err := RunUpdater(context.Background(), gw, discardLogger())
	require.NoError(t, err)

	require.True(t, pool.Executed("UPDATE rebases"))
	require.True(t, pool.ExecutedBefore("UPDATE rebases", "COMMIT"))

	// The finalized rebase carries the finalizing branch update.
	var bound bool
	for _, stmt := range pool.Recorded() {
		if stmtContains(stmt, "UPDATE rebases") {
			require.Contains(t, stmt.Args, int64(77))
			bound = true
		}
	}
	require.True(t, bound)
}

func TestRunUpdaterEmptyPassWritesNothing(t *testing.T) {
	pool := database.NewFakePool()

	gw := database.NewGateway(pool)
	err := RunUpdater(context.Background(), gw, discardLogger())
	require.NoError(t, err)

	require.False(t, pool.Executed("COMMIT"))
	require.True(t, pool.Executed("ROLLBACK"))
}
