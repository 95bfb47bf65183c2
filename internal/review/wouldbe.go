package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
)

// UpdateWouldBeAcceptedTag recomputes the counterfactual tags: for each
// user holding drafts, their publication is run inside a savepoint,
// acceptance is re-checked, and the savepoint is rolled back. Users
// whose publication would flip acceptance are tagged accordingly.
func UpdateWouldBeAcceptedTag(ctx context.Context, cursor *database.TransactionCursor, reviewID int64) error {
	params := database.Params{"review": reviewID}

	if _, err := cursor.Execute(ctx,
		`DELETE FROM reviewusertags
		  WHERE review={review}
		    AND tag IN ('would_be_accepted', 'would_be_unaccepted')`,
		params); err != nil {
		return fmt.Errorf("clear counterfactual tags: %w", err)
	}

	baseline, err := IsAccepted(ctx, cursor, reviewID)
	if err != nil {
		return err
	}
	authors, err := database.Scalars[int64](cursor.Query(ctx, draftAuthorsSQL, params))
	if err != nil {
		return fmt.Errorf("load draft authors: %w", err)
	}

	var rows []database.Params
	for _, uid := range authors {
		flipped, err := wouldFlip(ctx, cursor, reviewID, uid, baseline)
		if err != nil {
			return err
		}
		if !flipped {
			continue
		}
		tag := models.TagWouldBeAccepted
		if baseline {
			tag = models.TagWouldBeUnaccepted
		}
		rows = append(rows, database.Params{
			"review": reviewID,
			"uid":    uid,
			"tag":    string(tag),
		})
	}
	if err := cursor.ExecuteMany(ctx,
		`INSERT INTO reviewusertags (review, uid, tag) VALUES ({review}, {uid}, {tag})`,
		rows); err != nil {
		return fmt.Errorf("write counterfactual tags: %w", err)
	}
	return nil
}

// wouldFlip submits the user's drafts in a savepoint, checks acceptance
// and rolls back, leaving the outer transaction untouched.
func wouldFlip(ctx context.Context, cursor *database.TransactionCursor, reviewID, userID int64, baseline bool) (bool, error) {
	savepoint, err := cursor.Savepoint(ctx)
	if err != nil {
		return false, err
	}
	inner := savepoint.Cursor()

	_, err = Submit(ctx, inner, reviewID, userID)
	if err != nil {
		if rollbackErr := savepoint.Rollback(ctx); rollbackErr != nil {
			return false, rollbackErr
		}
		// A stale draft cannot publish, so it cannot flip acceptance.
		var domainErr *Error
		if errors.As(err, &domainErr) {
			return false, nil
		}
		return false, err
	}
	accepted, err := IsAccepted(ctx, inner, reviewID)
	if rollbackErr := savepoint.Rollback(ctx); rollbackErr != nil {
		return false, rollbackErr
	}
	if err != nil {
		return false, err
	}
	return accepted != baseline, nil
}
