// Package subscription tracks topic subscriptions across reconnects.
//
// The registry's subscription set is independent of connection state:
// subscribing while disconnected is legal and takes effect on the next
// successful open, when the connection manager replays the set as a single
// subscribe control message.
package subscription

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tutorbase/realtime/internal/model"
)

// Handler receives messages for a subscribed topic.
type Handler func(model.Message)

type entry struct {
	id      string
	topic   string
	handler Handler
}

// Registry holds the active subscriptions for one logical channel.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe registers a handler for a topic and returns the subscription ID.
func (r *Registry) Subscribe(topic string, h Handler) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.entries = append(r.entries, entry{id: id, topic: topic, handler: h})
	r.mu.Unlock()

	return id
}

// Unsubscribe removes the subscription with the given ID. It reports whether
// a subscription was removed.
func (r *Registry) Unsubscribe(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Handlers returns the handlers for a topic in registration order.
func (r *Registry) Handlers(topic string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handlers []Handler
	for _, e := range r.entries {
		if e.topic == topic {
			handlers = append(handlers, e.handler)
		}
	}
	return handlers
}

// Topics returns the distinct subscribed topics in first-registration order.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.entries))
	topics := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if _, ok := seen[e.topic]; ok {
			continue
		}
		seen[e.topic] = struct{}{}
		topics = append(topics, e.topic)
	}
	return topics
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Command builds the subscribe control message that re-issues every active
// topic. The connection manager sends it exactly once per successful open.
func (r *Registry) Command(userID int64) model.SubscribeCommand {
	return model.NewSubscribeCommand(userID, r.Topics())
}
