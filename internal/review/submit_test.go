package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/database"
)

func fakeCursor(t *testing.T, pool *database.FakePool) *database.TransactionCursor {
	t.Helper()
	cursor, err := database.NewGateway(pool).Begin(context.Background())
	require.NoError(t, err)
	return cursor
}

func TestSubmitPublishesEveryDraftCategory(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FOR UPDATE")
	pool.On("SELECT EXISTS", []any{true})
	pool.On("INSERT INTO reviewevents", []any{int64(501)})
	pool.On("INSERT INTO batches", []any{int64(601)})
	pool.OnExec("UPDATE comments SET batch", 1)
	pool.On("SELECT id FROM commentchains", []any{int64(11)}, []any{int64(12)})
	pool.On("SELECT commentchainchanges.id",
		[]any{int64(21), int64(11), "open", "resolved", nil, nil, "open", "issue"})
	pool.On("SELECT reviewfilechanges.id",
		[]any{int64(31), int64(41), false, true, false})

	cursor := fakeCursor(t, pool)
	result, err := Submit(context.Background(), cursor, 9, 7)
	require.NoError(t, err)

	require.Equal(t, int64(601), result.BatchID)
	require.Equal(t, int64(501), result.EventID)
	require.Equal(t, 2, result.Comments)
	require.Equal(t, 1, result.Replies)
	require.Equal(t, 1, result.Changes)
	require.Equal(t, 1, result.FileChanges)

	// The event row anchors the batch row.
	require.True(t, pool.ExecutedBefore("INSERT INTO reviewevents", "INSERT INTO batches"))
	// Empty drafts are deleted, not published.
	require.True(t, pool.Executed("DELETE FROM commentchains"))
	// Published chains get their batch set and their lines promoted.
	require.True(t, pool.Executed("UPDATE commentchains SET batch"))
	require.True(t, pool.Executed("UPDATE commentchainlines SET state"))
	// The verified state change lands on the chain.
	require.True(t, pool.Executed("UPDATE commentchains SET state"))
	// The reviewed flag reaches the assignment row.
	require.True(t, pool.Executed("UPDATE reviewuserfiles SET reviewed"))
	// Derived state is refreshed in the same transaction.
	require.True(t, pool.ExecutedBefore("UPDATE reviewfilechanges SET batch", "DELETE FROM reviewusertags"))
}

func TestSubmitWithoutDraftsFails(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FOR UPDATE")
	pool.On("SELECT EXISTS", []any{false})

	cursor := fakeCursor(t, pool)
	_, err := Submit(context.Background(), cursor, 9, 7)

	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "NOTHING_TO_SUBMIT", domainErr.Code)
	require.False(t, pool.Executed("INSERT INTO batches"))
}

func TestSubmitRejectsStaleCommentChange(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FOR UPDATE")
	pool.On("SELECT EXISTS", []any{true})
	pool.On("INSERT INTO reviewevents", []any{int64(501)})
	pool.On("INSERT INTO batches", []any{int64(601)})
	// The chain was resolved by someone else; the draft still expects
	// it open.
	pool.On("SELECT commentchainchanges.id",
		[]any{int64(21), int64(11), "open", "resolved", nil, nil, "resolved", "issue"})

	cursor := fakeCursor(t, pool)
	_, err := Submit(context.Background(), cursor, 9, 7)

	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "COMMENT_STATE_MISMATCH", domainErr.Code)
}

func TestDiscardRemovesSelectedDrafts(t *testing.T) {
	pool := database.NewFakePool()
	cursor := fakeCursor(t, pool)

	err := Discard(context.Background(), cursor, 9, 7, All())
	require.NoError(t, err)

	require.True(t, pool.Executed("DELETE FROM commentchains"))
	require.True(t, pool.Executed("DELETE FROM comments"))
	require.True(t, pool.Executed("DELETE FROM commentchainchanges"))
	require.True(t, pool.Executed("DELETE FROM reviewfilechanges"))
	// Tagging is recomputed after the drafts are gone.
	require.True(t, pool.ExecutedBefore("DELETE FROM reviewfilechanges", "DELETE FROM reviewusertags"))
}

func TestDiscardLeavesUnselectedCategories(t *testing.T) {
	pool := database.NewFakePool()
	cursor := fakeCursor(t, pool)

	err := Discard(context.Background(), cursor, 9, 7, Categories{Replies: true})
	require.NoError(t, err)

	require.True(t, pool.Executed("DELETE FROM comments"))
	require.False(t, pool.Executed("DELETE FROM commentchains"))
	require.False(t, pool.Executed("DELETE FROM reviewfilechanges"))
}
