package stream

import "sync"

// Subscriber is one live outbound connection.
type Subscriber interface {
	// ID is unique for the lifetime of the process.
	ID() string

	// Send queues msg without blocking. It returns ErrSubscriberClosed or
	// ErrSlowSubscriber when the message cannot be queued.
	Send(msg []byte) error

	// SendSnapshot queues frames as one batch, written before any message
	// passed to Send. It is called at most once, before the subscriber is
	// registered, and is not bounded by the Send buffer.
	SendSnapshot(frames [][]byte) error

	// Close tears the connection down. It is idempotent.
	Close() error
}

// Registry is the set of subscribers that receive live traffic.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Snapshot returns a copy; callers may iterate it while the registry
//     changes.
type Registry struct {
	mu    sync.RWMutex
	order []Subscriber
	index map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add inserts sub. It returns false if a subscriber with the same ID is
// already present.
func (r *Registry) Add(sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[sub.ID()]; ok {
		return false
	}
	r.index[sub.ID()] = len(r.order)
	r.order = append(r.order, sub)
	return true
}

// Remove deletes sub. It returns false if sub was not present.
func (r *Registry) Remove(sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[sub.ID()]
	if !ok {
		return false
	}

	delete(r.index, sub.ID())
	copy(r.order[i:], r.order[i+1:])
	r.order[len(r.order)-1] = nil
	r.order = r.order[:len(r.order)-1]
	for j := i; j < len(r.order); j++ {
		r.index[r.order[j].ID()] = j
	}
	return true
}

// Snapshot returns the current subscribers in join order.
func (r *Registry) Snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscriber, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Drain removes and returns every subscriber.
func (r *Registry) Drain() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.order
	r.order = nil
	r.index = make(map[string]int)
	return out
}
