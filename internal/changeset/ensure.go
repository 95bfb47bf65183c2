package changeset

import (
	"context"
	"fmt"
	"time"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
)

const (
	pollStep = 200 * time.Millisecond
	pollCap  = 60 * time.Second
)

func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(attempt) * pollStep
	if delay > pollCap {
		delay = pollCap
	}
	return delay
}

// CompletionLevel reads the changeset's current completion level.
func CompletionLevel(ctx context.Context, gw *database.Gateway, changesetID int64) (models.CompletionLevel, error) {
	var level models.CompletionLevel
	err := gw.Query(ctx,
		`SELECT completion_level FROM changesets WHERE id={id}`,
		database.Params{"id": changesetID}).One(&level)
	if err != nil {
		return "", fmt.Errorf("load completion level: %w", err)
	}
	return level, nil
}

// Ensure waits until the changeset reaches the requested completion
// level. With block false a single check is made and DelayedError
// reports the shortfall. Polling backs off by 0.2s per attempt, capped
// at 60s, and stops when ctx is cancelled. Polling runs outside any
// transaction; the difference engine's commits must become visible.
func Ensure(ctx context.Context, gw *database.Gateway, changesetID int64, requested models.CompletionLevel, block bool) error {
	for attempt := 1; ; attempt++ {
		current, err := CompletionLevel(ctx, gw, changesetID)
		if err != nil {
			return err
		}
		if current.Rank() >= requested.Rank() {
			return nil
		}
		if !block {
			return &DelayedError{
				ChangesetID: changesetID,
				Requested:   requested,
				Current:     current,
			}
		}
		timer := time.NewTimer(backoffDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
