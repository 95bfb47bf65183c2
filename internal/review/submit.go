package review

import (
	"context"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
)

// SubmitResult describes one published batch.
type SubmitResult struct {
	BatchID     int64
	EventID     int64
	Comments    int
	Replies     int
	Changes     int
	FileChanges int
}

// Submit atomically promotes every draft artifact the user holds on
// the review into a single batch: comments (empty drafts are deleted
// instead), replies, comment state and type changes, and reviewed-state
// changes. Runs entirely on the given cursor so the would-be-accepted
// counterfactual can execute it inside a savepoint.
func Submit(ctx context.Context, cursor *database.TransactionCursor, reviewID, userID int64) (*SubmitResult, error) {
	params := database.Params{"review": reviewID, "uid": userID}

	// Draft rows race concurrent publications; lock the chains and the
	// reviewed-state changes this batch will touch.
	if err := cursor.Query(ctx,
		`SELECT id FROM commentchains
		  WHERE review={review}
		    AND (uid={uid} AND batch IS NULL
		         OR id IN (SELECT chain FROM commentchainchanges
		                    WHERE uid={uid} AND batch IS NULL))
		  ORDER BY id FOR UPDATE`,
		params).Ignore(); err != nil {
		return nil, fmt.Errorf("lock comment chains: %w", err)
	}
	if err := cursor.Query(ctx,
		`SELECT id FROM reviewfilechanges
		  WHERE uid={uid} AND batch IS NULL
		    AND file IN (SELECT id FROM reviewfiles WHERE review={review})
		  ORDER BY id FOR UPDATE`,
		params).Ignore(); err != nil {
		return nil, fmt.Errorf("lock reviewed-state changes: %w", err)
	}

	var hasDrafts bool
	if err := cursor.Query(ctx,
		`SELECT EXISTS (`+draftAuthorsSQL+` WHERE uid={uid})`,
		params).One(&hasDrafts); err != nil {
		return nil, fmt.Errorf("count drafts: %w", err)
	}
	if !hasDrafts {
		return nil, errorf("NOTHING_TO_SUBMIT", "user %d has no draft changes on review %d", userID, reviewID)
	}

	eventID, err := cursor.Insert(ctx,
		`INSERT INTO reviewevents (review, uid, type)
		 VALUES ({review}, {uid}, {type}) RETURNING id`,
		database.Params{"review": reviewID, "uid": userID, "type": models.EventBatch})
	if err != nil {
		return nil, fmt.Errorf("insert batch event: %w", err)
	}
	batchID, err := cursor.Insert(ctx,
		`INSERT INTO batches (review, uid, event)
		 VALUES ({review}, {uid}, {event}) RETURNING id`,
		database.Params{"review": reviewID, "uid": userID, "event": eventID})
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	result := &SubmitResult{BatchID: batchID, EventID: eventID}

	// Empty drafts are abandoned comments, not publications.
	if _, err := cursor.Execute(ctx,
		`DELETE FROM commentchains
		  WHERE review={review} AND uid={uid} AND batch IS NULL AND text=''`,
		params); err != nil {
		return nil, fmt.Errorf("delete empty draft comments: %w", err)
	}
	chains, err := database.Scalars[int64](cursor.Query(ctx,
		`SELECT id FROM commentchains
		  WHERE review={review} AND uid={uid} AND batch IS NULL ORDER BY id`,
		params))
	if err != nil {
		return nil, fmt.Errorf("load draft comments: %w", err)
	}
	if len(chains) > 0 {
		if _, err := cursor.Execute(ctx,
			`UPDATE commentchains SET batch={batch} WHERE id={chains}`,
			database.Params{"batch": batchID, "chains": chains}); err != nil {
			return nil, fmt.Errorf("publish draft comments: %w", err)
		}
		if _, err := cursor.Execute(ctx,
			`UPDATE commentchainlines SET state={state}
			  WHERE chain={chains} AND state='draft'`,
			database.Params{"state": models.LineCurrent, "chains": chains}); err != nil {
			return nil, fmt.Errorf("publish comment lines: %w", err)
		}
		result.Comments = len(chains)
	}

	if _, err := cursor.Execute(ctx,
		`DELETE FROM comments
		  WHERE uid={uid} AND batch IS NULL AND text=''
		    AND chain IN (SELECT id FROM commentchains WHERE review={review})`,
		params); err != nil {
		return nil, fmt.Errorf("delete empty draft replies: %w", err)
	}
	replies, err := cursor.Execute(ctx,
		`UPDATE comments SET batch={batch}
		  WHERE uid={uid} AND batch IS NULL
		    AND chain IN (SELECT id FROM commentchains WHERE review={review})`,
		database.Params{"uid": userID, "batch": batchID, "review": reviewID})
	if err != nil {
		return nil, fmt.Errorf("publish draft replies: %w", err)
	}
	result.Replies = int(replies)

	if result.Changes, err = submitCommentChanges(ctx, cursor, reviewID, userID, batchID); err != nil {
		return nil, err
	}
	if result.FileChanges, err = submitFileChanges(ctx, cursor, reviewID, userID, batchID); err != nil {
		return nil, err
	}

	if err := UpdateReviewFiles(ctx, cursor, reviewID); err != nil {
		return nil, err
	}
	if err := UpdateReviewTags(ctx, cursor, reviewID); err != nil {
		return nil, err
	}
	return result, nil
}

// submitCommentChanges applies draft state and type changes, verifying
// that the state each change was written against still holds.
func submitCommentChanges(ctx context.Context, cursor *database.TransactionCursor, reviewID, userID, batchID int64) (int, error) {
	type pending struct {
		id, chain          int64
		fromState, toState *string
		fromType, toType   *string
		current, kind      string
	}
	var changes []pending
	err := cursor.Query(ctx,
		`SELECT commentchainchanges.id, commentchainchanges.chain,
		        commentchainchanges.from_state, commentchainchanges.to_state,
		        commentchainchanges.from_type, commentchainchanges.to_type,
		        commentchains.state, commentchains.type
		   FROM commentchainchanges
		   JOIN commentchains ON commentchains.id=commentchainchanges.chain
		  WHERE commentchains.review={review}
		    AND commentchainchanges.uid={uid}
		    AND commentchainchanges.batch IS NULL
		  ORDER BY commentchainchanges.id`,
		database.Params{"review": reviewID, "uid": userID},
	).Each(func(scan func(dest ...any) error) error {
		var change pending
		if err := scan(&change.id, &change.chain,
			&change.fromState, &change.toState,
			&change.fromType, &change.toType,
			&change.current, &change.kind); err != nil {
			return err
		}
		changes = append(changes, change)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("load draft comment changes: %w", err)
	}

	for _, change := range changes {
		if change.toState != nil {
			if change.fromState == nil || *change.fromState != change.current {
				return 0, errorf("COMMENT_STATE_MISMATCH",
					"comment %d is %q, draft change expected %v",
					change.chain, change.current, change.fromState)
			}
			if _, err := cursor.Execute(ctx,
				`UPDATE commentchains SET state={state} WHERE id={chain}`,
				database.Params{"state": *change.toState, "chain": change.chain}); err != nil {
				return 0, fmt.Errorf("apply comment state change: %w", err)
			}
		}
		if change.toType != nil {
			if change.fromType == nil || *change.fromType != change.kind {
				return 0, errorf("COMMENT_STATE_MISMATCH",
					"comment %d is a %q, draft change expected %v",
					change.chain, change.kind, change.fromType)
			}
			if _, err := cursor.Execute(ctx,
				`UPDATE commentchains SET type={type} WHERE id={chain}`,
				database.Params{"type": *change.toType, "chain": change.chain}); err != nil {
				return 0, fmt.Errorf("apply comment type change: %w", err)
			}
		}
		if _, err := cursor.Execute(ctx,
			`UPDATE commentchainchanges SET batch={batch} WHERE id={id}`,
			database.Params{"batch": batchID, "id": change.id}); err != nil {
			return 0, fmt.Errorf("publish comment change: %w", err)
		}
	}
	return len(changes), nil
}

// submitFileChanges applies draft reviewed-state changes to the user's
// assignments.
func submitFileChanges(ctx context.Context, cursor *database.TransactionCursor, reviewID, userID, batchID int64) (int, error) {
	type pending struct {
		id, file int64
		from, to bool
		current  *bool
	}
	var changes []pending
	err := cursor.Query(ctx,
		`SELECT reviewfilechanges.id, reviewfilechanges.file,
		        reviewfilechanges.from_reviewed, reviewfilechanges.to_reviewed,
		        reviewuserfiles.reviewed
		   FROM reviewfilechanges
		   JOIN reviewfiles ON reviewfiles.id=reviewfilechanges.file
		   LEFT JOIN reviewuserfiles
		     ON reviewuserfiles.file=reviewfilechanges.file
		    AND reviewuserfiles.uid=reviewfilechanges.uid
		  WHERE reviewfiles.review={review}
		    AND reviewfilechanges.uid={uid}
		    AND reviewfilechanges.batch IS NULL
		  ORDER BY reviewfilechanges.id`,
		database.Params{"review": reviewID, "uid": userID},
	).Each(func(scan func(dest ...any) error) error {
		var change pending
		if err := scan(&change.id, &change.file, &change.from, &change.to, &change.current); err != nil {
			return err
		}
		changes = append(changes, change)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("load draft reviewed-state changes: %w", err)
	}

	for _, change := range changes {
		if change.current == nil {
			return 0, errorf("NOT_ASSIGNED",
				"user %d is not assigned to file change %d", userID, change.file)
		}
		if *change.current != change.from {
			return 0, errorf("REVIEWED_STATE_MISMATCH",
				"file change %d reviewed flag is %t, draft expected %t",
				change.file, *change.current, change.from)
		}
		if _, err := cursor.Execute(ctx,
			`UPDATE reviewuserfiles SET reviewed={reviewed}
			  WHERE file={file} AND uid={uid}`,
			database.Params{"reviewed": change.to, "file": change.file, "uid": userID}); err != nil {
			return 0, fmt.Errorf("apply reviewed-state change: %w", err)
		}
		if _, err := cursor.Execute(ctx,
			`UPDATE reviewfilechanges SET batch={batch} WHERE id={id}`,
			database.Params{"batch": batchID, "id": change.id}); err != nil {
			return 0, fmt.Errorf("publish reviewed-state change: %w", err)
		}
	}
	return len(changes), nil
}

// Categories selects draft artifact kinds for Discard.
type Categories struct {
	Comments    bool
	Replies     bool
	Changes     bool
	FileChanges bool
}

// All selects every category.
func All() Categories {
	return Categories{Comments: true, Replies: true, Changes: true, FileChanges: true}
}

// Discard removes the selected categories of the user's draft
// artifacts and recomputes the unpublished tagging.
func Discard(ctx context.Context, cursor *database.TransactionCursor, reviewID, userID int64, what Categories) error {
	params := database.Params{"review": reviewID, "uid": userID}
	if what.Comments {
		if _, err := cursor.Execute(ctx,
			`DELETE FROM commentchains
			  WHERE review={review} AND uid={uid} AND batch IS NULL`,
			params); err != nil {
			return fmt.Errorf("discard draft comments: %w", err)
		}
	}
	if what.Replies {
		if _, err := cursor.Execute(ctx,
			`DELETE FROM comments
			  WHERE uid={uid} AND batch IS NULL
			    AND chain IN (SELECT id FROM commentchains WHERE review={review})`,
			params); err != nil {
			return fmt.Errorf("discard draft replies: %w", err)
		}
	}
	if what.Changes {
		if _, err := cursor.Execute(ctx,
			`DELETE FROM commentchainchanges
			  WHERE uid={uid} AND batch IS NULL
			    AND chain IN (SELECT id FROM commentchains WHERE review={review})`,
			params); err != nil {
			return fmt.Errorf("discard draft comment changes: %w", err)
		}
	}
	if what.FileChanges {
		if _, err := cursor.Execute(ctx,
			`DELETE FROM reviewfilechanges
			  WHERE uid={uid} AND batch IS NULL
			    AND file IN (SELECT id FROM reviewfiles WHERE review={review})`,
			params); err != nil {
			return fmt.Errorf("discard draft reviewed-state changes: %w", err)
		}
	}
	return UpdateReviewTags(ctx, cursor, reviewID)
}
