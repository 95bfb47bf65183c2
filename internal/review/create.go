package review

import (
	"context"
	"fmt"

	"github.com/critic-scm/critic/internal/background"
	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/transaction"
)

// NewReview describes a review to create. The review starts as a
// draft owned by OwnerID; BranchID is nil until a review branch is
// bound to it.
type NewReview struct {
	RepositoryID   int64
	OwnerID        int64
	Summary        string
	Description    string
	BranchID       *int64
	TargetBranchID *int64
}

// Create queues creation of a draft review: the reviews row, the
// owner's membership, and the created event.
func Create(tx *transaction.Transaction, review NewReview) *transaction.Deferred[int64] {
	id := tx.CreateAPIObject("reviews", "reviews",
		database.Params{
			"repository":    review.RepositoryID,
			"summary":       review.Summary,
			"description":   review.Description,
			"branch":        review.BranchID,
			"target_branch": review.TargetBranchID,
		},
		map[string]any{"repository_id": review.RepositoryID})
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		reviewID, err := id.Get()
		if err != nil {
			return err
		}
		tx.TouchTables("reviewowners", "reviewusers", "reviewevents")
		if _, err := cursor.Execute(ctx,
			`INSERT INTO reviewowners (review, uid) VALUES ({review}, {uid})`,
			database.Params{"review": reviewID, "uid": review.OwnerID}); err != nil {
			return fmt.Errorf("insert review owner: %w", err)
		}
		if _, err := cursor.Execute(ctx,
			`INSERT INTO reviewusers (review, uid, owner) VALUES ({review}, {uid}, TRUE)`,
			database.Params{"review": reviewID, "uid": review.OwnerID}); err != nil {
			return fmt.Errorf("insert review user: %w", err)
		}
		if _, err := cursor.Insert(ctx,
			`INSERT INTO reviewevents (review, uid, type)
			 VALUES ({review}, {uid}, {type}) RETURNING id`,
			database.Params{"review": reviewID, "uid": review.OwnerID, "type": models.EventCreated}); err != nil {
			return fmt.Errorf("insert created event: %w", err)
		}
		return nil
	}})
	return id
}

// NewBranch describes a branch to create, with the commits its
// creating update associates.
type NewBranch struct {
	RepositoryID int64
	Name         string
	Type         models.BranchType
	HeadID       int64
	BaseBranchID *int64
	UpdaterID    *int64
	Commits      []int64
}

// CreateBranch queues creation of a branch together with its creating
// branch update (from_head IS NULL).
func CreateBranch(tx *transaction.Transaction, branch NewBranch) *transaction.Deferred[int64] {
	id := tx.CreateAPIObject("branches", "branches",
		database.Params{
			"repository": branch.RepositoryID,
			"name":       branch.Name,
			"type":       branch.Type,
			"head":       branch.HeadID,
			"base":       branch.BaseBranchID,
		},
		map[string]any{"repository_id": branch.RepositoryID, "name": branch.Name})
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		branchID, err := id.Get()
		if err != nil {
			return err
		}
		tx.TouchTables("branchupdates", "branchupdatecommits", "branchcommits", "branches")
		_, err = RecordBranchUpdate(ctx, cursor, BranchUpdate{
			BranchID:   branchID,
			UpdaterID:  branch.UpdaterID,
			ToHead:     branch.HeadID,
			Associated: branch.Commits,
		})
		return err
	}})
	return id
}

// UpdateBranch is the modifier entry point a push to a review branch
// runs: record the update, link the changeset and derive its
// reviewable file changes, propagate the comments, refresh derived
// state, and wake the reviewupdater for rebase finalization.
func UpdateBranch(tx *transaction.Transaction, reviewID, changesetID int64, update BranchUpdate) error {
	if err := tx.Session().RaiseUnlessSystem(); err != nil {
		return err
	}
	tx.Lock("reviews", "id", reviewID)
	tx.Lock("branches", "id", update.BranchID)
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		tx.TouchTables("branchupdates", "branchupdatecommits", "branchcommits", "branches",
			"reviewchangesets", "reviewfiles", "reviewevents",
			"commentchains", "commentchainlines")
		updateID, err := RecordBranchUpdate(ctx, cursor, update)
		if err != nil {
			return err
		}
		return IntegrateBranchUpdate(ctx, cursor, reviewID, updateID, changesetID)
	}})
	QueueDerived(tx, reviewID)
	tx.WakeService(background.ServiceReviewUpdater)
	return nil
}
