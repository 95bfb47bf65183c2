package comments

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/propagation"
	"github.com/critic-scm/critic/internal/pubsub"
	"github.com/critic-scm/critic/internal/session"
	"github.com/critic-scm/critic/internal/transaction"
)

func fakeTransaction(t *testing.T, sess *session.Session, pool *database.FakePool) *transaction.Transaction {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tx, err := transaction.Begin(sess, database.NewGateway(pool), pubsub.NewOutbox(pubsub.NewBroker()), nil, logger)
	require.NoError(t, err)
	return tx
}

func TestCreateRejectsOtherUsersDraft(t *testing.T) {
	pool := database.NewFakePool()
	sess := session.ForUser(&models.User{ID: 7, Name: "alice"}, nil)
	tx := fakeTransaction(t, sess, pool)
	defer tx.Abort()

	_, err := Create(tx, NewChain{
		ReviewID: 9, AuthorID: 8, Type: models.CommentNote, Text: "hello",
	})

	var denied *session.PermissionDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestCreateCommitsChainWithAnnouncement(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("INSERT INTO commentchains", []any{int64(11)})
	pool.On("INSERT INTO pubsubreservations", []any{int64(1)})

	sess := session.System("")
	tx := fakeTransaction(t, sess, pool)

	file := int64(8)
	id, err := Create(tx, NewChain{
		ReviewID: 9,
		AuthorID: 7,
		Type:     models.CommentIssue,
		Text:     "needs a bounds check",
		FileID:   &file,
		Locations: []propagation.Location{
			{SHA1: "aaa", FirstLine: 10, LastLine: 12},
		},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	chainID, err := id.Get()
	require.NoError(t, err)
	require.Equal(t, int64(11), chainID)

	require.True(t, pool.ExecutedBefore("INSERT INTO commentchains", "INSERT INTO commentchainlines"))

	var channels string
	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "INSERT INTO pubsubreservations") {
			channels = stmt.Args[0].(string)
		}
	}
	require.Contains(t, channels, "comments/11")
	require.Contains(t, channels, "reviews/9/comments")
}

func TestResolveIssueLocksChainBeforeDrafting(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"issue", "open"})

	sess := session.ForUser(&models.User{ID: 7, Name: "alice"}, nil)
	tx := fakeTransaction(t, sess, pool)

	require.NoError(t, ResolveIssue(tx, 11, 7))
	require.NoError(t, tx.Commit(context.Background()))

	require.True(t, pool.ExecutedBefore("ORDER BY id FOR UPDATE", "INSERT INTO commentchainchanges"))
}

func TestPropagateBranchUpdateAnnouncesAddressed(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FROM reviewchangesets",
		[]any{int64(300), int64(5), "sha_v1", "sha_v2",
			[]byte(`[{"old_offset":5,"delete_count":11,"new_offset":5,"insert_count":3}]`)})
	pool.On("SELECT id, uid, type, file, batch IS NULL FROM commentchains",
		[]any{int64(11), int64(7), "issue", int64(5), false})
	pool.On("SELECT sha1, first_line, last_line", []any{"sha_v1", 10, 12})
	pool.OnExec("UPDATE commentchains", 1)
	pool.On("INSERT INTO pubsubreservations", []any{int64(1)})

	sess := session.System("branchupdater")
	tx := fakeTransaction(t, sess, pool)

	PropagateBranchUpdate(tx, 9, 77)
	require.NoError(t, tx.Commit(context.Background()))

	var payload string
	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "INSERT INTO pubsubreservations") {
			payload = string(stmt.Args[1].([]byte))
		}
	}
	require.Contains(t, payload, `"addressed":1`)
}
