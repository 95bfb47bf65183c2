package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/critic-scm/critic/internal/database"
)

// RunUpdater performs one reviewupdater pass: every pending rebase
// whose review branch has since been rewritten is bound to the branch
// update that rewrote it, and the review's derived state is refreshed.
// The pass commits once for all finalized rebases; an empty pass
// writes nothing.
func RunUpdater(ctx context.Context, gw *database.Gateway, logger *slog.Logger) error {
	cursor, err := gw.Begin(ctx)
	if err != nil {
		return err
	}
	defer cursor.Rollback(ctx)

	type pending struct {
		rebaseID, reviewID, updateID int64
	}
	var work []pending
	err = cursor.Query(ctx,
		`SELECT rebases.id, rebases.review, candidate.id
		   FROM rebases
		   JOIN reviews ON reviews.id=rebases.review
		   JOIN LATERAL (
		         SELECT id FROM branchupdates
		          WHERE branch=reviews.branch
		            AND from_head IS NOT NULL
		            AND id NOT IN (SELECT branchupdate FROM rebases
		                            WHERE branchupdate IS NOT NULL)
		          ORDER BY id DESC LIMIT 1) AS candidate ON TRUE
		  WHERE rebases.branchupdate IS NULL
		  ORDER BY rebases.id`,
		nil,
	).Each(func(scan func(dest ...any) error) error {
		var p pending
		if err := scan(&p.rebaseID, &p.reviewID, &p.updateID); err != nil {
			return err
		}
		work = append(work, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("find finalizable rebases: %w", err)
	}
	if len(work) == 0 {
		return nil
	}

	for _, p := range work {
		if err := FinalizeRebase(ctx, cursor, p.rebaseID, p.updateID, nil, nil); err != nil {
			return err
		}
		if err := UpdateReviewFiles(ctx, cursor, p.reviewID); err != nil {
			return err
		}
		if err := UpdateReviewTags(ctx, cursor, p.reviewID); err != nil {
			return err
		}
		if err := UpdateWouldBeAcceptedTag(ctx, cursor, p.reviewID); err != nil {
			return err
		}
		logger.Info("finalized rebase",
			"rebase", p.rebaseID, "review", p.reviewID, "branchupdate", p.updateID)
	}
	return cursor.Commit(ctx)
}
