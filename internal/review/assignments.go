package review

import (
	"context"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/filters"
	"github.com/critic-scm/critic/internal/models"
)

// CurrentAssignments loads the review's live assignment state in the
// shape the filter engine diffs against.
func CurrentAssignments(ctx context.Context, cursor *database.TransactionCursor, reviewID int64) (*filters.Assignments, error) {
	current := filters.NewAssignments()
	err := cursor.Query(ctx,
		`SELECT reviewuserfiles.file, reviewuserfiles.uid
		   FROM reviewuserfiles
		   JOIN reviewfiles ON reviewfiles.id=reviewuserfiles.file
		  WHERE reviewfiles.review={review}`,
		database.Params{"review": reviewID},
	).Each(func(scan func(dest ...any) error) error {
		var fileID, userID int64
		if err := scan(&fileID, &userID); err != nil {
			return err
		}
		current.Assign(fileID, userID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load current assignments: %w", err)
	}
	return current, nil
}

// ApplyAssignments records an assignment diff: every insert and delete
// in reviewuserfiles, an audit row per change, one assignments
// transaction binding them, and one review event. A nil assigner means
// the system recomputed assignments (branch update, filter change).
// An empty diff writes nothing, which keeps recomputation idempotent.
func ApplyAssignments(ctx context.Context, cursor *database.TransactionCursor, reviewID int64, assigner *int64, changes []filters.Change) (int64, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	eventID, err := cursor.Insert(ctx,
		`INSERT INTO reviewevents (review, uid, type)
		 VALUES ({review}, {uid}, {type}) RETURNING id`,
		database.Params{"review": reviewID, "uid": assigner, "type": models.EventAssignments})
	if err != nil {
		return 0, fmt.Errorf("insert assignments event: %w", err)
	}
	transactionID, err := cursor.Insert(ctx,
		`INSERT INTO reviewassignmentstransactions (review, event, assigner)
		 VALUES ({review}, {event}, {assigner}) RETURNING id`,
		database.Params{"review": reviewID, "event": eventID, "assigner": assigner})
	if err != nil {
		return 0, fmt.Errorf("insert assignments transaction: %w", err)
	}

	var inserts, deletes, audits []database.Params
	for _, change := range changes {
		audits = append(audits, database.Params{
			"transaction": transactionID,
			"file":        change.FileID,
			"uid":         change.UserID,
			"assigned":    change.Assigned,
		})
		row := database.Params{"file": change.FileID, "uid": change.UserID}
		if change.Assigned {
			row["assigned_by"] = assigner
			inserts = append(inserts, row)
		} else {
			deletes = append(deletes, row)
		}
	}

	if err := cursor.ExecuteMany(ctx,
		`INSERT INTO reviewuserfiles (file, uid, assigned_by)
		 VALUES ({file}, {uid}, {assigned_by})
		 ON CONFLICT (file, uid) DO NOTHING`, inserts); err != nil {
		return 0, fmt.Errorf("insert assignments: %w", err)
	}
	if err := cursor.ExecuteMany(ctx,
		`DELETE FROM reviewuserfiles WHERE file={file} AND uid={uid}`,
		deletes); err != nil {
		return 0, fmt.Errorf("delete assignments: %w", err)
	}
	if err := cursor.ExecuteMany(ctx,
		`INSERT INTO reviewassignmentchanges (transaction, file, uid, assigned)
		 VALUES ({transaction}, {file}, {uid}, {assigned})`, audits); err != nil {
		return 0, fmt.Errorf("record assignment changes: %w", err)
	}

	if err := UpdateReviewFiles(ctx, cursor, reviewID); err != nil {
		return 0, err
	}
	return transactionID, nil
}
