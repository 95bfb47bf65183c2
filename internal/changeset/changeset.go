// Package changeset tracks diff computation requests. The difference
// engine service computes changesets out of process; this package
// creates and finds the rows, raises content and highlight requests,
// and polls for completion.
package changeset

import (
	"context"
	"errors"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
)

// DelayedError reports that a changeset exists but has not reached the
// requested completion level, for callers that asked not to block.
type DelayedError struct {
	ChangesetID int64
	Requested   models.CompletionLevel
	Current     models.CompletionLevel
}

func (e *DelayedError) Error() string {
	return fmt.Sprintf("changeset %d is at completion level %q, %q requested",
		e.ChangesetID, e.Current, e.Requested)
}

// ErrAutomaticModeUnsupported rejects the legacy automatic changeset
// mode; callers must name explicit from/to commits.
var ErrAutomaticModeUnsupported = errors.New("AUTOMATIC_MODE_UNSUPPORTED: automatic changeset mode is not supported")

// Key identifies a changeset request.
type Key struct {
	RepositoryID int64
	FromCommitID *int64
	ToCommitID   int64
	IsReplay     bool
	ForMergeID   *int64
}

// EnsureChangeset finds or creates the changeset for the key. Repeated
// calls with the same key return the same row; the difference engine
// is woken by the caller's transaction, not here.
func EnsureChangeset(ctx context.Context, cursor *database.TransactionCursor, key Key) (*models.Changeset, error) {
	found, err := lookup(ctx, cursor, key)
	if err != nil || found != nil {
		return found, err
	}
	id, err := cursor.Insert(ctx,
		`INSERT INTO changesets (repository, from_commit, to_commit, is_replay, for_merge)
		 VALUES ({repository}, {from_commit}, {to_commit}, {is_replay}, {for_merge})
		 RETURNING id`,
		database.Params{
			"repository":  key.RepositoryID,
			"from_commit": key.FromCommitID,
			"to_commit":   key.ToCommitID,
			"is_replay":   key.IsReplay,
			"for_merge":   key.ForMergeID,
		})
	if err != nil {
		return nil, fmt.Errorf("insert changeset: %w", err)
	}
	return &models.Changeset{
		ID:           id,
		RepositoryID: key.RepositoryID,
		FromCommitID: key.FromCommitID,
		ToCommitID:   key.ToCommitID,
		IsReplay:     key.IsReplay,
		ForMergeID:   key.ForMergeID,
	}, nil
}

func lookup(ctx context.Context, cursor *database.TransactionCursor, key Key) (*models.Changeset, error) {
	conditions := `repository={repository} AND to_commit={to_commit} AND is_replay={is_replay}`
	params := database.Params{
		"repository": key.RepositoryID,
		"to_commit":  key.ToCommitID,
		"is_replay":  key.IsReplay,
	}
	if key.FromCommitID != nil {
		conditions += ` AND from_commit={from_commit}`
		params["from_commit"] = *key.FromCommitID
	} else {
		conditions += ` AND from_commit IS NULL`
	}
	if key.ForMergeID != nil {
		conditions += ` AND for_merge={for_merge}`
		params["for_merge"] = *key.ForMergeID
	} else {
		conditions += ` AND for_merge IS NULL`
	}

	var changeset models.Changeset
	err := cursor.Query(ctx,
		`SELECT id, repository, from_commit, to_commit, is_replay, for_merge, completion_level
		   FROM changesets WHERE `+conditions,
		params,
	).One(&changeset.ID, &changeset.RepositoryID, &changeset.FromCommitID,
		&changeset.ToCommitID, &changeset.IsReplay, &changeset.ForMergeID,
		&changeset.CompletionLevel)
	if errors.Is(err, database.ErrZeroRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find changeset: %w", err)
	}
	return &changeset, nil
}

// MergeChangesets is the changeset pair EnsureMerge produces for one
// parent of a merge commit.
type MergeChangesets struct {
	Primary   *models.Changeset
	Reference *models.Changeset
}

// EnsureMerge creates the two changesets describing one parent's view
// of a merge: the primary diff parent→merge and the reference diff
// mergebase→parent.
func EnsureMerge(ctx context.Context, cursor *database.TransactionCursor, repositoryID, parentID, mergeID, mergeBaseID int64) (*MergeChangesets, error) {
	primary, err := EnsureChangeset(ctx, cursor, Key{
		RepositoryID: repositoryID,
		FromCommitID: &parentID,
		ToCommitID:   mergeID,
		ForMergeID:   &mergeID,
	})
	if err != nil {
		return nil, err
	}
	reference, err := EnsureChangeset(ctx, cursor, Key{
		RepositoryID: repositoryID,
		FromCommitID: &mergeBaseID,
		ToCommitID:   parentID,
		ForMergeID:   &mergeID,
	})
	if err != nil {
		return nil, err
	}
	return &MergeChangesets{Primary: primary, Reference: reference}, nil
}

// RequestContent raises the content request flag, refreshing the
// timestamp on retry so the difference engine re-prioritizes.
func RequestContent(ctx context.Context, cursor *database.TransactionCursor, changesetID int64) error {
	_, err := cursor.Execute(ctx,
		`UPDATE changesets SET content_requested=NOW() WHERE id={id}`,
		database.Params{"id": changesetID})
	if err != nil {
		return fmt.Errorf("request changeset content: %w", err)
	}
	return nil
}

// RequestHighlight raises the syntax-highlight request flag.
func RequestHighlight(ctx context.Context, cursor *database.TransactionCursor, changesetID int64) error {
	_, err := cursor.Execute(ctx,
		`UPDATE changesets SET highlight_requested=NOW() WHERE id={id}`,
		database.Params{"id": changesetID})
	if err != nil {
		return fmt.Errorf("request changeset highlight: %w", err)
	}
	return nil
}
