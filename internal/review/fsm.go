package review

import (
	"context"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
)

// transitionEvents maps entered states to the review event recorded
// for the transition. Reopening closed or dropped reviews records
// "reopened"; publishing a draft records "published".
func transitionEvent(from, to models.ReviewState) models.ReviewEventType {
	switch to {
	case models.ReviewOpen:
		if from == models.ReviewDraft {
			return models.EventPublished
		}
		return models.EventReopened
	case models.ReviewClosed:
		return models.EventClosed
	case models.ReviewDropped:
		return models.EventDropped
	}
	return ""
}

// Transition moves the review through its lifecycle FSM, records the
// corresponding review event, and maintains derived state: leaving the
// open state clears user tags, reopening recomputes them.
func Transition(ctx context.Context, cursor *database.TransactionCursor, reviewID, userID int64, next models.ReviewState) (models.ReviewEventType, error) {
	if !next.Valid() {
		return "", errorf("INVALID_STATE_TRANSITION", "unknown review state %q", next)
	}

	var current models.ReviewState
	err := cursor.Query(ctx,
		`SELECT state FROM reviews WHERE id={review} FOR UPDATE`,
		database.Params{"review": reviewID}).One(&current)
	if err != nil {
		return "", fmt.Errorf("load review state: %w", err)
	}
	if !current.CanTransition(next) {
		return "", errorf("INVALID_STATE_TRANSITION",
			"review %d cannot go from %q to %q", reviewID, current, next)
	}

	if _, err := cursor.Execute(ctx,
		`UPDATE reviews SET state={state} WHERE id={review}`,
		database.Params{"state": next, "review": reviewID}); err != nil {
		return "", fmt.Errorf("update review state: %w", err)
	}

	event := transitionEvent(current, next)
	if _, err := cursor.Insert(ctx,
		`INSERT INTO reviewevents (review, uid, type)
		 VALUES ({review}, {uid}, {type}) RETURNING id`,
		database.Params{"review": reviewID, "uid": userID, "type": event}); err != nil {
		return "", fmt.Errorf("insert review event: %w", err)
	}

	switch next {
	case models.ReviewClosed, models.ReviewDropped:
		if _, err := cursor.Execute(ctx,
			`DELETE FROM reviewusertags WHERE review={review}`,
			database.Params{"review": reviewID}); err != nil {
			return "", fmt.Errorf("clear review tags: %w", err)
		}
	case models.ReviewOpen:
		if err := UpdateReviewTags(ctx, cursor, reviewID); err != nil {
			return "", err
		}
		if err := UpdateWouldBeAcceptedTag(ctx, cursor, reviewID); err != nil {
			return "", err
		}
	}
	return event, nil
}
