// Package events is a small in-process publish/subscribe bus. Components use it
// to broadcast backend failures so a banner or toast can surface them without
// every component knowing about the presentation.
package events

import (
	"sort"
	"sync"
)

// TopicServerError is published when a backend request fails.
const TopicServerError = "server-error"

// ServerError describes a failed backend interaction.
type ServerError struct {
	Source  string
	Status  int
	Message string
	// Fields carries field-level messages keyed by server-reported paths.
	Fields map[string][]string
	Err    error
}

// Handler receives published payloads.
type Handler func(payload any)

// Bus dispatches payloads to subscribers synchronously, in subscription
// order.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]Handler
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[uint64]Handler)}
}

// Subscribe registers fn for topic and returns a function that removes it.
// Calling the returned function more than once is safe.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

// Publish delivers payload to every subscriber of topic.
func (b *Bus) Publish(topic string, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs[topic]))
	for id := range b.subs[topic] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[topic][id])
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(payload)
	}
}

// PublishServerError broadcasts a ServerError.
func (b *Bus) PublishServerError(err ServerError) {
	b.Publish(TopicServerError, err)
}

// Subscribers reports how many handlers listen on topic.
func (b *Bus) Subscribers(topic string) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
