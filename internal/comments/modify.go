package comments

import (
	"context"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/propagation"
	"github.com/critic-scm/critic/internal/pubsub"
	"github.com/critic-scm/critic/internal/session"
	"github.com/critic-scm/critic/internal/transaction"
)

// raiseUnlessAuthor guards the modifier entry points: drafts belong to
// the session user; only the system may act for someone else.
func raiseUnlessAuthor(s *session.Session, authorID int64) error {
	if s.IsSystem() {
		return nil
	}
	if user := s.User(); user != nil && user.ID == authorID {
		return nil
	}
	return &session.PermissionDeniedError{
		Message: fmt.Sprintf("must be user %d", authorID),
	}
}

// Create queues creation of a draft comment chain, line rows included,
// and announces it on the review's comments channel.
func Create(tx *transaction.Transaction, chain NewChain) (*transaction.Deferred[int64], error) {
	if err := raiseUnlessAuthor(tx.Session(), chain.AuthorID); err != nil {
		return nil, err
	}
	if err := chain.validate(); err != nil {
		return nil, err
	}
	id := tx.CreateAPIObject("comments", "commentchains",
		database.Params{
			"review":         chain.ReviewID,
			"uid":            chain.AuthorID,
			"type":           chain.Type,
			"text":           chain.Text,
			"message_commit": chain.CommitID,
			"file":           chain.FileID,
		},
		map[string]any{"review_id": chain.ReviewID},
		pubsub.ScopedChannel("reviews", chain.ReviewID, "comments"))
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		chainID, err := id.Get()
		if err != nil {
			return err
		}
		tx.TouchTables("commentchainlines")
		return insertLines(ctx, cursor, chainID, chain.AuthorID, models.LineDraft, chain.Locations)
	}})
	return id, nil
}

// Reply queues a draft reply on an existing chain.
func Reply(tx *transaction.Transaction, reviewID, chainID, authorID int64, text string) error {
	if err := raiseUnlessAuthor(tx.Session(), authorID); err != nil {
		return err
	}
	tx.Lock("commentchains", "id", chainID)
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		replyID, err := CreateReply(ctx, cursor, chainID, authorID, text)
		if err != nil {
			return err
		}
		tx.TouchTables("comments")
		tx.PublishTo(
			append(pubsub.ResourceChannels("replies", replyID),
				pubsub.ScopedChannel("reviews", reviewID, "replies")),
			pubsub.Payload{
				ResourceName: "replies",
				ObjectID:     replyID,
				Action:       pubsub.ActionCreated,
				Extras:       map[string]any{"review_id": reviewID},
			})
		return nil
	}})
	return nil
}

// ResolveIssue queues a draft state change closing an open issue.
func ResolveIssue(tx *transaction.Transaction, chainID, userID int64) error {
	if err := raiseUnlessAuthor(tx.Session(), userID); err != nil {
		return err
	}
	tx.Lock("commentchains", "id", chainID)
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		tx.TouchTables("commentchainchanges")
		return Resolve(ctx, cursor, chainID, userID)
	}})
	return nil
}

// ReopenIssue queues a draft state change reopening a resolved or
// addressed issue, with the fresh anchor an addressed issue requires.
func ReopenIssue(tx *transaction.Transaction, chainID, userID int64, anchor *propagation.Anchor, mods []propagation.Modification, headSHA1 string) error {
	if err := raiseUnlessAuthor(tx.Session(), userID); err != nil {
		return err
	}
	tx.Lock("commentchains", "id", chainID)
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		tx.TouchTables("commentchainchanges", "commentchainlines")
		return Reopen(ctx, cursor, chainID, userID, anchor, mods, headSHA1)
	}})
	return nil
}

// PropagateBranchUpdate queues the branch-update propagation pass for
// a review, announcing each newly addressed issue.
func PropagateBranchUpdate(tx *transaction.Transaction, reviewID, branchUpdateID int64) {
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		tx.TouchTables("commentchains", "commentchainlines")
		result, err := ApplyBranchUpdate(ctx, cursor, reviewID, branchUpdateID)
		if err != nil {
			return err
		}
		if result.Addressed > 0 {
			tx.PublishTo([]string{pubsub.ScopedChannel("reviews", reviewID, "comments")}, pubsub.Payload{
				ResourceName: "comments",
				Action:       pubsub.ActionModified,
				Updates:      map[string]any{"addressed": result.Addressed},
				Extras:       map[string]any{"review_id": reviewID},
			})
		}
		return nil
	}})
}
