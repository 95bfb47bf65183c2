package comments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/dbquery"
	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/propagation"
)

// NewChain describes a comment chain to create. The anchor is either a
// commit message or a file-version line range; a chain with neither is
// a general review comment. File-anchored chains carry the locations a
// propagation walk produced from the author's anchor.
type NewChain struct {
	ReviewID  int64
	AuthorID  int64
	Type      models.CommentType
	Text      string
	CommitID  *int64
	FileID    *int64
	Locations []propagation.Location
}

func (c NewChain) validate() error {
	if c.Text == "" {
		return errorf("EMPTY_COMMENT", "comment text must not be empty")
	}
	if !c.Type.Valid() {
		return errorf("INVALID_ANCHOR", "invalid comment type %q", c.Type)
	}
	if c.CommitID != nil && c.FileID != nil {
		return errorf("INVALID_ANCHOR",
			"comment cannot reference both a commit message and a file version")
	}
	if c.FileID != nil && len(c.Locations) == 0 {
		return errorf("INVALID_ANCHOR", "file-anchored comment needs at least one location")
	}
	if c.FileID == nil && len(c.Locations) > 0 {
		return errorf("INVALID_ANCHOR", "locations given without a file anchor")
	}
	return nil
}

// CreateChain inserts a draft comment chain and its propagated line
// rows. The chain stays a draft (batch IS NULL) until the author
// submits; its line rows carry state 'draft' likewise.
func CreateChain(ctx context.Context, cursor *database.TransactionCursor, chain NewChain) (int64, error) {
	if err := chain.validate(); err != nil {
		return 0, err
	}
	chainID, err := cursor.Insert(ctx,
		`INSERT INTO commentchains (review, uid, type, text, message_commit, file)
		 VALUES ({review}, {uid}, {type}, {text}, {message_commit}, {file})
		 RETURNING id`,
		database.Params{
			"review":         chain.ReviewID,
			"uid":            chain.AuthorID,
			"type":           chain.Type,
			"text":           chain.Text,
			"message_commit": chain.CommitID,
			"file":           chain.FileID,
		})
	if err != nil {
		return 0, fmt.Errorf("insert comment chain: %w", err)
	}
	if err := insertLines(ctx, cursor, chainID, chain.AuthorID, models.LineDraft, chain.Locations); err != nil {
		return 0, err
	}
	return chainID, nil
}

func insertLines(ctx context.Context, cursor *database.TransactionCursor, chainID, userID int64, state models.LineState, locations []propagation.Location) error {
	rows := make([]database.Params, 0, len(locations))
	for _, loc := range locations {
		rows = append(rows, database.Params{
			"chain":      chainID,
			"sha1":       loc.SHA1,
			"first_line": loc.FirstLine,
			"last_line":  loc.LastLine,
			"state":      state,
			"uid":        userID,
		})
	}
	if err := cursor.ExecuteMany(ctx,
		`INSERT INTO commentchainlines (chain, sha1, first_line, last_line, state, uid)
		 VALUES ({chain}, {sha1}, {first_line}, {last_line}, {state}, {uid})
		 ON CONFLICT (chain, sha1) DO NOTHING`, rows); err != nil {
		return fmt.Errorf("insert comment lines: %w", err)
	}
	return nil
}

// CreateReply inserts a draft reply. A user holds at most one draft
// reply per chain; the partial unique index backs this check against
// concurrent transactions.
func CreateReply(ctx context.Context, cursor *database.TransactionCursor, chainID, authorID int64, text string) (int64, error) {
	if text == "" {
		return 0, errorf("EMPTY_COMMENT", "reply text must not be empty")
	}
	var exists bool
	err := cursor.Query(ctx,
		`SELECT EXISTS (SELECT 1 FROM commentchains WHERE id={chain})`,
		database.Params{"chain": chainID}).One(&exists)
	if err != nil {
		return 0, fmt.Errorf("load comment chain: %w", err)
	}
	if !exists {
		return 0, &dbquery.InvalidIDError{Entity: "commentchains", ID: chainID}
	}

	var drafted bool
	err = cursor.Query(ctx,
		`SELECT EXISTS (SELECT 1 FROM comments
		                 WHERE chain={chain} AND uid={uid} AND batch IS NULL)`,
		database.Params{"chain": chainID, "uid": authorID}).One(&drafted)
	if err != nil {
		return 0, fmt.Errorf("check draft reply: %w", err)
	}
	if drafted {
		return 0, errorf("REPLY_ALREADY_DRAFTED",
			"user %d already has a draft reply on comment %d", authorID, chainID)
	}

	replyID, err := cursor.Insert(ctx,
		`INSERT INTO comments (chain, uid, text) VALUES ({chain}, {uid}, {text})
		 RETURNING id`,
		database.Params{"chain": chainID, "uid": authorID, "text": text})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, errorf("REPLY_ALREADY_DRAFTED",
				"user %d already has a draft reply on comment %d", authorID, chainID)
		}
		return 0, fmt.Errorf("insert reply: %w", err)
	}
	return replyID, nil
}

func loadChain(ctx context.Context, cursor *database.TransactionCursor, chainID int64) (models.CommentType, models.CommentState, error) {
	var (
		kind  models.CommentType
		state models.CommentState
	)
	err := cursor.Query(ctx,
		`SELECT type, state FROM commentchains WHERE id={chain} FOR UPDATE`,
		database.Params{"chain": chainID}).One(&kind, &state)
	if errors.Is(err, database.ErrZeroRows) {
		return "", "", &dbquery.InvalidIDError{Entity: "commentchains", ID: chainID}
	}
	if err != nil {
		return "", "", fmt.Errorf("load comment chain: %w", err)
	}
	return kind, state, nil
}

// Resolve drafts a state change closing an open issue. The change is
// applied when the user submits; submission re-verifies that the issue
// is still open.
func Resolve(ctx context.Context, cursor *database.TransactionCursor, chainID, userID int64) error {
	kind, state, err := loadChain(ctx, cursor, chainID)
	if err != nil {
		return err
	}
	if kind != models.CommentIssue {
		return errorf("NOT_AN_ISSUE", "comment %d is a note", chainID)
	}
	if state != models.CommentOpen {
		return errorf("COMMENT_NOT_OPEN", "comment %d is %q", chainID, state)
	}
	return insertChange(ctx, cursor, chainID, userID, state, models.CommentResolved)
}

// Reopen drafts a state change reopening a resolved or addressed
// issue. Reopening an addressed issue requires a fresh anchor in a
// file version the issue has no location in yet; a new propagation
// runs from that anchor.
func Reopen(ctx context.Context, cursor *database.TransactionCursor, chainID, userID int64, anchor *propagation.Anchor, mods []propagation.Modification, headSHA1 string) error {
	kind, state, err := loadChain(ctx, cursor, chainID)
	if err != nil {
		return err
	}
	if kind != models.CommentIssue {
		return errorf("NOT_AN_ISSUE", "comment %d is a note", chainID)
	}
	switch state {
	case models.CommentResolved:
		return insertChange(ctx, cursor, chainID, userID, state, models.CommentOpen)
	case models.CommentAddressed:
	default:
		return errorf("COMMENT_NOT_CLOSED", "comment %d is %q", chainID, state)
	}

	if anchor == nil {
		return errorf("REOPEN_ANCHOR_KNOWN",
			"reopening addressed comment %d needs a fresh anchor", chainID)
	}
	existing, err := loadLocations(ctx, cursor, chainID)
	if err != nil {
		return err
	}
	if err := propagation.ValidateReopenAnchor(existing, *anchor); err != nil {
		return errorf("REOPEN_ANCHOR_KNOWN", "comment %d: %v", chainID, err)
	}
	result := propagation.Propagate(*anchor, mods, headSHA1)
	if err := insertLines(ctx, cursor, chainID, userID, models.LineDraft, result.Locations); err != nil {
		return err
	}
	return insertChange(ctx, cursor, chainID, userID, state, models.CommentOpen)
}

func insertChange(ctx context.Context, cursor *database.TransactionCursor, chainID, userID int64, from, to models.CommentState) error {
	if _, err := cursor.Execute(ctx,
		`INSERT INTO commentchainchanges (chain, uid, from_state, to_state)
		 VALUES ({chain}, {uid}, {from_state}, {to_state})`,
		database.Params{
			"chain":      chainID,
			"uid":        userID,
			"from_state": from,
			"to_state":   to,
		}); err != nil {
		return fmt.Errorf("insert comment state change: %w", err)
	}
	return nil
}

func loadLocations(ctx context.Context, cursor *database.TransactionCursor, chainID int64) ([]propagation.Location, error) {
	var locations []propagation.Location
	err := cursor.Query(ctx,
		`SELECT sha1, first_line, last_line FROM commentchainlines
		  WHERE chain={chain} ORDER BY sha1`,
		database.Params{"chain": chainID},
	).Each(func(scan func(dest ...any) error) error {
		var loc propagation.Location
		if err := scan(&loc.SHA1, &loc.FirstLine, &loc.LastLine); err != nil {
			return err
		}
		locations = append(locations, loc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load comment locations: %w", err)
	}
	return locations, nil
}
