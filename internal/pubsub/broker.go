package pubsub

import "sync"

// Broker is the in-process delivery fabric: per-channel subscriber
// sets with buffered channels and non-blocking sends, so one slow
// subscriber never stalls a publisher.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Message]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan Message]struct{})}
}

// Subscribe registers for one channel name. The returned function
// unsubscribes; pending buffered messages are discarded.
func (b *Broker) Subscribe(channel string) (<-chan Message, func()) {
	ch := make(chan Message, 32)
	b.mu.Lock()
	if _, ok := b.subs[channel]; !ok {
		b.subs[channel] = make(map[chan Message]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if subs, ok := b.subs[channel]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, channel)
			}
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish delivers the message to every subscriber of every channel it
// names. Events are dropped for subscribers whose buffer is full.
func (b *Broker) Publish(msg Message) {
	b.mu.RLock()
	var targets []chan Message
	for _, channel := range msg.Channels {
		for ch := range b.subs[channel] {
			targets = append(targets, ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
		}
	}
}
