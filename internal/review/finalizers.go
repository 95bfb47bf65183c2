package review

import (
	"context"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/pubsub"
	"github.com/critic-scm/critic/internal/transaction"
)

func filesKey(reviewID int64) string { return fmt.Sprintf("review-files/%d", reviewID) }
func tagsKey(reviewID int64) string  { return fmt.Sprintf("review-tags/%d", reviewID) }
func acceptanceKey(reviewID int64) string {
	return fmt.Sprintf("review-acceptance/%d", reviewID)
}

// QueueDerived schedules recomputation of the review's derived state:
// the reviewed-flag aggregate, then the user tags, then the acceptance
// counterfactual. Safe to call many times per transaction.
func QueueDerived(tx *transaction.Transaction, reviewID int64) {
	tx.TouchTables("reviewfiles", "reviewuserfiles", "reviewusertags")
	tx.AddFinalizer(filesFinalizer{reviewID: reviewID})
	tx.AddFinalizer(tagsFinalizer{reviewID: reviewID})
	tx.AddFinalizer(acceptanceFinalizer{reviewID: reviewID})
}

type filesFinalizer struct{ reviewID int64 }

func (f filesFinalizer) Key() string { return filesKey(f.reviewID) }

func (f filesFinalizer) ShouldRunAfter(transaction.Finalizer) bool { return false }

func (f filesFinalizer) Run(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
	return UpdateReviewFiles(ctx, cursor, f.reviewID)
}

type tagsFinalizer struct{ reviewID int64 }

func (f tagsFinalizer) Key() string { return tagsKey(f.reviewID) }

func (f tagsFinalizer) ShouldRunAfter(other transaction.Finalizer) bool {
	return other.Key() == filesKey(f.reviewID)
}

func (f tagsFinalizer) Run(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
	return UpdateReviewTags(ctx, cursor, f.reviewID)
}

// acceptanceFinalizer recomputes the counterfactual tags and announces
// the review's acceptance state on its channels.
type acceptanceFinalizer struct{ reviewID int64 }

func (f acceptanceFinalizer) Key() string { return acceptanceKey(f.reviewID) }

func (f acceptanceFinalizer) ShouldRunAfter(other transaction.Finalizer) bool {
	return other.Key() == filesKey(f.reviewID) || other.Key() == tagsKey(f.reviewID)
}

func (f acceptanceFinalizer) Run(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
	if err := UpdateWouldBeAcceptedTag(ctx, cursor, f.reviewID); err != nil {
		return err
	}
	accepted, err := IsAccepted(ctx, cursor, f.reviewID)
	if err != nil {
		return err
	}
	tx.PublishTo(pubsub.ResourceChannels("reviews", f.reviewID), pubsub.Payload{
		ResourceName: "reviews",
		ObjectID:     f.reviewID,
		Action:       pubsub.ActionModified,
		Updates:      map[string]any{"is_accepted": accepted},
	})
	return nil
}
