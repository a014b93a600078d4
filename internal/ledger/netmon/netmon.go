// Package netmon provides the network reachability signal consumed by the
// sync coordinator: a point-in-time boolean and a "became reachable" event
// subscription.
package netmon

import "sync"

// Status is the reachability surface the sync core consumes.
type Status interface {
	// Online reports whether the remote store is currently reachable.
	Online() bool

	// Subscribe registers a callback fired each time the signal
	// transitions from unreachable to reachable. It returns an
	// unsubscribe function.
	Subscribe(fn func()) func()
}

// signal holds the shared online flag and subscriber bookkeeping used by
// the monitor implementations.
type signal struct {
	mu      sync.Mutex
	online  bool
	subs    map[int]func()
	nextSub int
}

func (s *signal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *signal) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]func())
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// set updates the flag and fires subscribers on an offline-to-online
// transition. Callbacks run outside the lock.
func (s *signal) set(online bool) {
	s.mu.Lock()
	becameReachable := online && !s.online
	s.online = online
	var fns []func()
	if becameReachable {
		fns = make([]func(), 0, len(s.subs))
		for _, fn := range s.subs {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Manual is a Status whose state is driven explicitly. Used in tests and as
// the monitor behind a forced-offline configuration.
type Manual struct {
	signal
}

// NewManual creates a Manual monitor with the given initial state.
func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online = online
	return m
}

// SetOnline updates the reachability state, firing became-reachable
// subscribers on an offline-to-online transition.
func (m *Manual) SetOnline(online bool) {
	m.set(online)
}
