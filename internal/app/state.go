package app

import (
	"sync"
)

// StateManager holds the latest value of an observable state and fans every
// change out to subscribers in a concurrent-safe manner.
//
// Subscribers only ever need the newest value, so each subscription is a
// one-slot channel: a pending value that was not read yet is replaced.
type StateManager[T any] struct {
	mu      sync.Mutex
	state   T
	subs    map[int]chan T
	nextSub int
	closed  bool
}

// NewStateManager creates a StateManager holding initial.
func NewStateManager[T any](initial T) *StateManager[T] {
	return &StateManager[T]{
		state: initial,
		subs:  make(map[int]chan T),
	}
}

// Get returns the current state.
func (m *StateManager[T]) Get() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Set stores s and publishes it.
func (m *StateManager[T]) Set(s T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.publishLocked()
}

// Update applies fn to the state under the lock and publishes the result.
func (m *StateManager[T]) Update(fn func(*T)) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
	m.publishLocked()
	return m.state
}

func (m *StateManager[T]) publishLocked() {
	if m.closed {
		return
	}
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- m.state
	}
}

// Subscribe returns a channel that immediately carries the current state and
// then every later change. The cancel func releases the subscription.
func (m *StateManager[T]) Subscribe() (<-chan T, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan T, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- m.state
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// Close closes every subscription. Later Set calls only update the value.
func (m *StateManager[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}
