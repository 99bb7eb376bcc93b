package event

import "sync"

// Handler processes a published event payload. The payload is type-erased;
// handlers type-assert on the topics they subscribe to.
type Handler func(topic Topic, payload any)

// Bus is a synchronous topic-keyed publish/subscribe hub.
// A nil *Bus is valid: Publish is a no-op and Subscribe panics.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Topic][]subscription
}

type subscription struct {
	id int
	fn Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Topic][]subscription),
	}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// function. Handlers for a topic run in subscription order.
func (b *Bus) Subscribe(topic Topic, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[topic]
		for i, s := range subs {
			if s.id == id {
				b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the payload to every handler subscribed to the topic,
// synchronously, in subscription order.
func (b *Bus) Publish(topic Topic, payload any) {
	if b == nil {
		return
	}

	b.mu.RLock()
	subs := b.handlers[topic]
	// Copy so handlers may subscribe/unsubscribe during delivery.
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		s.fn(topic, payload)
	}
}

// SubscriberCount returns the number of handlers subscribed to a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
