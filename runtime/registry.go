package runtime

import (
	"sync"

	"chat-room/contract"

	"github.com/google/uuid"
)

// Registry tracks the active subscribers of the room. Fanout order is
// subscription order, so two events delivered to the same subscriber
// can never be observed reordered relative to each other.
type Registry struct {
	mu       sync.RWMutex
	order    []uuid.UUID
	sessions map[uuid.UUID]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]contract.EventSink)}
}

func (r *Registry) Subscribe(sink contract.EventSink) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	r.order = append(r.order, id)
	r.sessions[id] = sink
	return id
}

// Unsubscribe removes a subscriber. Unknown ids are ignored, which
// makes releasing a subscription idempotent.
func (r *Registry) Unsubscribe(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Sinks returns the active sinks in subscription order.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.order))
	for _, id := range r.order {
		sinks = append(sinks, r.sessions[id])
	}
	return sinks
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
