package review

import (
	"context"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
)

// IsAccepted reports whether the review is accepted: every reviewfiles
// row reviewed and no published issue still open.
func IsAccepted(ctx context.Context, cursor *database.TransactionCursor, reviewID int64) (bool, error) {
	var unreviewed, openIssues bool
	err := cursor.Query(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM reviewfiles
		            WHERE review={review} AND NOT reviewed),
		   EXISTS (SELECT 1 FROM commentchains
		            WHERE review={review} AND type='issue' AND state='open'
		              AND batch IS NOT NULL)`,
		database.Params{"review": reviewID},
	).One(&unreviewed, &openIssues)
	if err != nil {
		return false, fmt.Errorf("check acceptance: %w", err)
	}
	return !unreviewed && !openIssues, nil
}

// UpdateReviewFiles corrects any divergence of the reviewfiles.reviewed
// aggregate from its definition: true iff at least one assignee has
// marked the file reviewed.
func UpdateReviewFiles(ctx context.Context, cursor *database.TransactionCursor, reviewID int64) error {
	params := database.Params{"review": reviewID}
	if _, err := cursor.Execute(ctx,
		`UPDATE reviewfiles SET reviewed=TRUE
		  WHERE review={review} AND NOT reviewed
		    AND EXISTS (SELECT 1 FROM reviewuserfiles
		                 WHERE file=reviewfiles.id AND reviewed)`,
		params); err != nil {
		return fmt.Errorf("raise reviewed flags: %w", err)
	}
	if _, err := cursor.Execute(ctx,
		`UPDATE reviewfiles SET reviewed=FALSE
		  WHERE review={review} AND reviewed
		    AND NOT EXISTS (SELECT 1 FROM reviewuserfiles
		                     WHERE file=reviewfiles.id AND reviewed)`,
		params); err != nil {
		return fmt.Errorf("lower reviewed flags: %w", err)
	}
	return nil
}
