package pubsub

import (
	"encoding/json"
	"testing"
)

func TestPayloadJSONFlattensExtras(t *testing.T) {
	payload := Payload{
		ResourceName: "reviews",
		ObjectID:     42,
		Action:       ActionModified,
		Updates:      map[string]any{"is_accepted": true},
		Extras:       map[string]any{"repository_id": float64(7)},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	if flat["resource_name"] != "reviews" || flat["repository_id"] != float64(7) {
		t.Fatalf("flat = %v, extras must be flattened alongside standard fields", flat)
	}

	var decoded Payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.ResourceName != "reviews" || decoded.ObjectID != 42 || decoded.Action != ActionModified {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Updates["is_accepted"] != true {
		t.Fatalf("decoded.Updates = %v", decoded.Updates)
	}
	if decoded.Extras["repository_id"] != float64(7) {
		t.Fatalf("decoded.Extras = %v", decoded.Extras)
	}
}

func TestResourceChannels(t *testing.T) {
	channels := ResourceChannels("reviews", 42)
	if len(channels) != 2 || channels[0] != "reviews" || channels[1] != "reviews/42" {
		t.Fatalf("channels = %v", channels)
	}
	if got := ScopedChannel("reviews", 42, "comments"); got != "reviews/42/comments" {
		t.Fatalf("ScopedChannel = %q", got)
	}
}

func TestBrokerDeliversToMatchingSubscribers(t *testing.T) {
	broker := NewBroker()
	reviews, unsubReviews := broker.Subscribe("reviews")
	defer unsubReviews()
	other, unsubOther := broker.Subscribe("branches")
	defer unsubOther()

	broker.Publish(Message{
		Channels: []string{"reviews", "reviews/42"},
		Payload:  Payload{ResourceName: "reviews", ObjectID: 42, Action: ActionCreated},
	})

	select {
	case msg := <-reviews:
		if msg.Payload.ObjectID != 42 {
			t.Fatalf("payload = %+v", msg.Payload)
		}
	default:
		t.Fatal("reviews subscriber received nothing")
	}
	select {
	case msg := <-other:
		t.Fatalf("branches subscriber received %+v", msg)
	default:
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	broker := NewBroker()
	ch, unsubscribe := broker.Subscribe("reviews")
	unsubscribe()

	broker.Publish(Message{Channels: []string{"reviews"}})
	select {
	case <-ch:
		t.Fatal("unsubscribed channel received a message")
	default:
	}
}

func TestBrokerFullBufferDropsWithoutBlocking(t *testing.T) {
	broker := NewBroker()
	ch, unsubscribe := broker.Subscribe("reviews")
	defer unsubscribe()

	// One more than the buffer; the publisher must not block.
	for i := 0; i < 33; i++ {
		broker.Publish(Message{Channels: []string{"reviews"}, Payload: Payload{ObjectID: int64(i)}})
	}
	if got := len(ch); got != 32 {
		t.Fatalf("buffered = %d, want 32", got)
	}
}
