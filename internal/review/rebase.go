package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
)

// PrepareRebase records a pending rebase of the review branch. Move
// rebases carry both upstreams; history rewrites carry neither. The
// partial unique index on pending rebases makes the one-pending
// invariant hold even against concurrent transactions.
func PrepareRebase(ctx context.Context, cursor *database.TransactionCursor, reviewID, creatorID int64, oldUpstream, newUpstream *int64) (int64, error) {
	var state models.ReviewState
	err := cursor.Query(ctx,
		`SELECT state FROM reviews WHERE id={review} FOR UPDATE`,
		database.Params{"review": reviewID}).One(&state)
	if err != nil {
		return 0, fmt.Errorf("load review: %w", err)
	}
	if state != models.ReviewOpen {
		return 0, errorf("INVALID_STATE_TRANSITION",
			"cannot rebase review %d in state %q", reviewID, state)
	}

	var pending bool
	err = cursor.Query(ctx,
		`SELECT EXISTS (SELECT 1 FROM rebases
		                 WHERE review={review} AND branchupdate IS NULL)`,
		database.Params{"review": reviewID}).One(&pending)
	if err != nil {
		return 0, fmt.Errorf("check pending rebase: %w", err)
	}
	if pending {
		return 0, errorf("REBASE_ALREADY_PENDING",
			"review %d already has a pending rebase", reviewID)
	}

	id, err := cursor.Insert(ctx,
		`INSERT INTO rebases (review, creator, old_upstream, new_upstream)
		 VALUES ({review}, {creator}, {old_upstream}, {new_upstream})
		 RETURNING id`,
		database.Params{
			"review":       reviewID,
			"creator":      creatorID,
			"old_upstream": oldUpstream,
			"new_upstream": newUpstream,
		})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, errorf("REBASE_ALREADY_PENDING",
				"review %d already has a pending rebase", reviewID)
		}
		return 0, fmt.Errorf("insert rebase: %w", err)
	}
	return id, nil
}

// CancelRebase deletes a pending rebase.
func CancelRebase(ctx context.Context, cursor *database.TransactionCursor, rebaseID int64) error {
	affected, err := cursor.Delete(ctx,
		`DELETE FROM rebases WHERE id={id} AND branchupdate IS NULL`,
		database.Params{"id": rebaseID})
	if err != nil {
		return fmt.Errorf("cancel rebase: %w", err)
	}
	if affected == 0 {
		return errorf("REBASE_NOT_PENDING", "rebase %d is not pending", rebaseID)
	}
	return nil
}

// FinalizeRebase binds a pending rebase to the branch update that
// performed it, plus the optional equivalent-merge or replayed-rebase
// commits the reviewupdater computed.
func FinalizeRebase(ctx context.Context, cursor *database.TransactionCursor, rebaseID, branchUpdateID int64, equivalentMerge, replayedRebase *int64) error {
	affected, err := cursor.Execute(ctx,
		`UPDATE rebases
		    SET branchupdate={branchupdate},
		        equivalent_merge={equivalent_merge},
		        replayed_rebase={replayed_rebase}
		  WHERE id={id} AND branchupdate IS NULL`,
		database.Params{
			"branchupdate":     branchUpdateID,
			"equivalent_merge": equivalentMerge,
			"replayed_rebase":  replayedRebase,
			"id":               rebaseID,
		})
	if err != nil {
		return fmt.Errorf("finalize rebase: %w", err)
	}
	if affected == 0 {
		return errorf("REBASE_NOT_PENDING", "rebase %d is not pending", rebaseID)
	}
	return nil
}

// PendingRebase returns the review's pending rebase, if any.
func PendingRebase(ctx context.Context, cursor *database.TransactionCursor, reviewID int64) (*models.Rebase, error) {
	var rebase models.Rebase
	err := cursor.Query(ctx,
		`SELECT id, review, creator, old_upstream, new_upstream
		   FROM rebases WHERE review={review} AND branchupdate IS NULL`,
		database.Params{"review": reviewID},
	).One(&rebase.ID, &rebase.ReviewID, &rebase.CreatorID, &rebase.OldUpstreamID, &rebase.NewUpstreamID)
	if errors.Is(err, database.ErrZeroRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending rebase: %w", err)
	}
	return &rebase, nil
}
