package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/critic-scm/critic/internal/database"
)

// Outbox persists messages inside the producing transaction and hands
// them to the broker only after that transaction commits.
type Outbox struct {
	broker *Broker
}

func NewOutbox(broker *Broker) *Outbox {
	return &Outbox{broker: broker}
}

// Reserve stores the messages through the transaction cursor. The
// reservations commit or roll back with the rest of the transaction.
func (o *Outbox) Reserve(ctx context.Context, cursor *database.TransactionCursor, msgs []Message) ([]int64, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	paramsList := make([]database.Params, 0, len(msgs))
	for _, msg := range msgs {
		payload, err := json.Marshal(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode pubsub payload: %w", err)
		}
		paramsList = append(paramsList, database.Params{
			"channels": strings.Join(msg.Channels, "\n"),
			"payload":  payload,
		})
	}
	ids, err := cursor.InsertMany(ctx,
		`INSERT INTO pubsubreservations (channels, payload)
		 VALUES ({channels}, {payload}) RETURNING id`, paramsList)
	if err != nil {
		return nil, fmt.Errorf("reserve pubsub messages: %w", err)
	}
	return ids, nil
}

// FlushPending delivers every undelivered reservation. The pubsub
// background service runs this to retry deliveries that failed after
// their producing transaction committed.
func (o *Outbox) FlushPending(ctx context.Context, gw *database.Gateway) error {
	ids, err := database.Scalars[int64](gw.Query(ctx,
		`SELECT id FROM pubsubreservations WHERE NOT delivered ORDER BY id`,
		nil))
	if err != nil {
		return fmt.Errorf("load pending reservations: %w", err)
	}
	return o.Flush(ctx, gw, ids)
}

// Flush delivers committed reservations and marks them delivered.
// Called post-commit only.
func (o *Outbox) Flush(ctx context.Context, gw *database.Gateway, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	var msgs []Message
	err := gw.Query(ctx,
		`SELECT channels, payload FROM pubsubreservations
		  WHERE id={ids} AND NOT delivered ORDER BY id`,
		database.Params{"ids": ids},
	).Each(func(scan func(dest ...any) error) error {
		var (
			channels string
			raw      []byte
		)
		if err := scan(&channels, &raw); err != nil {
			return err
		}
		var payload Payload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decode pubsub payload: %w", err)
		}
		msgs = append(msgs, Message{
			Channels: strings.Split(channels, "\n"),
			Payload:  payload,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("load pubsub reservations: %w", err)
	}

	for _, msg := range msgs {
		o.broker.Publish(msg)
	}

	cursor, err := gw.Begin(ctx)
	if err != nil {
		return err
	}
	defer cursor.Rollback(ctx)
	if _, err := cursor.Execute(ctx,
		`UPDATE pubsubreservations SET delivered=TRUE WHERE id={ids}`,
		database.Params{"ids": ids}); err != nil {
		return fmt.Errorf("mark reservations delivered: %w", err)
	}
	return cursor.Commit(ctx)
}
