// Package pubsub fans change events out to subscribers. Messages are
// persisted as reservations inside the same database transaction that
// produces them (a transactional outbox), then delivered through the
// in-process broker after commit, so no subscriber ever observes an
// event for a row state that was not committed.
package pubsub

import (
	"encoding/json"
	"fmt"
)

type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
)

// Payload is one event record. Extras carry resource-specific fields
// (review_id, repository_id, name, user_id, event_type, …) and are
// flattened into the encoded object.
type Payload struct {
	ResourceName string
	ObjectID     int64
	Action       Action
	Updates      map[string]any
	Extras       map[string]any
}

func (p Payload) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, 4+len(p.Extras))
	for key, value := range p.Extras {
		flat[key] = value
	}
	flat["resource_name"] = p.ResourceName
	flat["object_id"] = p.ObjectID
	flat["action"] = p.Action
	if len(p.Updates) > 0 {
		flat["updates"] = p.Updates
	}
	return json.Marshal(flat)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if name, ok := flat["resource_name"].(string); ok {
		p.ResourceName = name
	}
	if id, ok := flat["object_id"].(float64); ok {
		p.ObjectID = int64(id)
	}
	if action, ok := flat["action"].(string); ok {
		p.Action = Action(action)
	}
	if updates, ok := flat["updates"].(map[string]any); ok {
		p.Updates = updates
	}
	delete(flat, "resource_name")
	delete(flat, "object_id")
	delete(flat, "action")
	delete(flat, "updates")
	if len(flat) > 0 {
		p.Extras = flat
	}
	return nil
}

// Message is a payload addressed to one or more channels.
type Message struct {
	Channels []string
	Payload  Payload
}

// ResourceChannels builds the standard channel pair for an object:
// the resource-wide channel and the per-object channel.
func ResourceChannels(resource string, id int64) []string {
	return []string{resource, fmt.Sprintf("%s/%d", resource, id)}
}

// ScopedChannel builds a per-scope sub-channel such as
// "reviews/42/comments".
func ScopedChannel(scopeResource string, scopeID int64, resource string) string {
	return fmt.Sprintf("%s/%d/%s", scopeResource, scopeID, resource)
}
