package comments

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/propagation"
)

func fakeCursor(t *testing.T, pool *database.FakePool) *database.TransactionCursor {
	t.Helper()
	cursor, err := database.NewGateway(pool).Begin(context.Background())
	require.NoError(t, err)
	return cursor
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, code, domainErr.Code)
}

func TestNewChainValidation(t *testing.T) {
	commit := int64(5)
	file := int64(8)
	cases := []struct {
		name  string
		chain NewChain
		code  string
	}{
		{"empty text", NewChain{ReviewID: 9, AuthorID: 7, Type: models.CommentNote}, "EMPTY_COMMENT"},
		{"bad type", NewChain{ReviewID: 9, AuthorID: 7, Type: "remark", Text: "x"}, "INVALID_ANCHOR"},
		{"both anchors", NewChain{ReviewID: 9, AuthorID: 7, Type: models.CommentNote, Text: "x",
			CommitID: &commit, FileID: &file}, "INVALID_ANCHOR"},
		{"file without locations", NewChain{ReviewID: 9, AuthorID: 7, Type: models.CommentIssue, Text: "x",
			FileID: &file}, "INVALID_ANCHOR"},
		{"locations without file", NewChain{ReviewID: 9, AuthorID: 7, Type: models.CommentNote, Text: "x",
			Locations: []propagation.Location{{SHA1: "aaa", FirstLine: 1, LastLine: 2}}}, "INVALID_ANCHOR"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pool := database.NewFakePool()
			_, err := CreateChain(context.Background(), fakeCursor(t, pool), c.chain)
			requireCode(t, err, c.code)
			require.False(t, pool.Executed("INSERT INTO commentchains"))
		})
	}
}

func TestCreateChainInsertsDraftLines(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("INSERT INTO commentchains", []any{int64(11)})

	file := int64(8)
	id, err := CreateChain(context.Background(), fakeCursor(t, pool), NewChain{
		ReviewID: 9,
		AuthorID: 7,
		Type:     models.CommentIssue,
		Text:     "off-by-one in the loop bound",
		FileID:   &file,
		Locations: []propagation.Location{
			{SHA1: "aaa", FirstLine: 10, LastLine: 12},
			{SHA1: "bbb", FirstLine: 11, LastLine: 13},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(11), id)

	var lines int
	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "INSERT INTO commentchainlines") {
			lines++
			require.Contains(t, stmt.Args, "draft")
		}
	}
	require.Equal(t, 2, lines)
}

func TestCreateReplyRejectsSecondDraft(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FROM commentchains", []any{true})
	pool.On("FROM comments", []any{true})

	_, err := CreateReply(context.Background(), fakeCursor(t, pool), 11, 7, "me too")
	requireCode(t, err, "REPLY_ALREADY_DRAFTED")
	require.False(t, pool.Executed("INSERT INTO comments"))
}

func TestCreateReplyMapsUniqueViolation(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FROM commentchains", []any{true})
	pool.On("FROM comments", []any{false})
	// A concurrent transaction drafted first; the partial unique index
	// on (chain, uid) WHERE batch IS NULL reports it.
	pool.OnError("INSERT INTO comments", &pgconn.PgError{Code: "23505"})

	_, err := CreateReply(context.Background(), fakeCursor(t, pool), 11, 7, "me too")
	requireCode(t, err, "REPLY_ALREADY_DRAFTED")
}

func TestCreateReplyUnknownChain(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FROM commentchains", []any{false})

	_, err := CreateReply(context.Background(), fakeCursor(t, pool), 11, 7, "me too")
	require.Error(t, err)
	require.Contains(t, err.Error(), "commentchains")
}

func TestCreateReplyStoresDraft(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("FROM commentchains", []any{true})
	pool.On("FROM comments", []any{false})
	pool.On("INSERT INTO comments", []any{int64(42)})

	id, err := CreateReply(context.Background(), fakeCursor(t, pool), 11, 7, "me too")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestResolveRequiresOpenIssue(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"note", "open"})
	err := Resolve(context.Background(), fakeCursor(t, pool), 11, 7)
	requireCode(t, err, "NOT_AN_ISSUE")

	pool = database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"issue", "resolved"})
	err = Resolve(context.Background(), fakeCursor(t, pool), 11, 7)
	requireCode(t, err, "COMMENT_NOT_OPEN")
}

func TestResolveDraftsStateChange(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"issue", "open"})

	err := Resolve(context.Background(), fakeCursor(t, pool), 11, 7)
	require.NoError(t, err)

	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "INSERT INTO commentchainchanges") {
			require.Equal(t, []any{int64(11), int64(7), "open", "resolved"}, stmt.Args)
			return
		}
	}
	t.Fatal("no draft state change recorded")
}

func TestReopenResolvedIssue(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"issue", "resolved"})

	err := Reopen(context.Background(), fakeCursor(t, pool), 11, 7, nil, nil, "")
	require.NoError(t, err)

	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "INSERT INTO commentchainchanges") {
			require.Equal(t, []any{int64(11), int64(7), "resolved", "open"}, stmt.Args)
			return
		}
	}
	t.Fatal("no draft state change recorded")
}

func TestReopenAddressedNeedsFreshAnchor(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"issue", "addressed"})
	err := Reopen(context.Background(), fakeCursor(t, pool), 11, 7, nil, nil, "ccc")
	requireCode(t, err, "REOPEN_ANCHOR_KNOWN")

	pool = database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"issue", "addressed"})
	pool.On("SELECT sha1, first_line, last_line", []any{"aaa", 10, 12})
	stale := &propagation.Anchor{SHA1: "aaa", FirstLine: 3, LastLine: 4}
	err = Reopen(context.Background(), fakeCursor(t, pool), 11, 7, stale, nil, "ccc")
	requireCode(t, err, "REOPEN_ANCHOR_KNOWN")
}

func TestReopenAddressedPropagatesFreshAnchor(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"issue", "addressed"})
	pool.On("SELECT sha1, first_line, last_line", []any{"aaa", 10, 12})

	fresh := &propagation.Anchor{SHA1: "bbb", FirstLine: 3, LastLine: 4}
	err := Reopen(context.Background(), fakeCursor(t, pool), 11, 7, fresh, nil, "bbb")
	require.NoError(t, err)

	require.True(t, pool.Executed("INSERT INTO commentchainlines"))
	for _, stmt := range pool.Recorded() {
		if strings.Contains(stmt.SQL, "INSERT INTO commentchainchanges") {
			require.Equal(t, []any{int64(11), int64(7), "addressed", "open"}, stmt.Args)
			return
		}
	}
	t.Fatal("no draft state change recorded")
}

func TestReopenRejectsOpenIssue(t *testing.T) {
	pool := database.NewFakePool()
	pool.On("SELECT type, state FROM commentchains", []any{"issue", "open"})
	err := Reopen(context.Background(), fakeCursor(t, pool), 11, 7, nil, nil, "")
	requireCode(t, err, "COMMENT_NOT_CLOSED")
}
