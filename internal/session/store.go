// Package session owns the authentication state of every device: the store
// that holds it, the manager that drives login/logout against the identity
// client, and the request-scoped handle pages read it through.
package session

import (
	"sync"
	"time"

	"github.com/ashureev/satty/internal/domain"
)

// deviceState is everything the manager tracks for one device.
type deviceState struct {
	session     domain.Session
	pending     *PendingLogin
	initialized bool
	// generation increments on every session transition.
	generation uint64
	lastSeen   time.Time
}

// Store holds the session of every device. All writes go through update.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*deviceState
	subs    map[string]map[chan domain.Session]struct{}
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		devices: make(map[string]*deviceState),
		subs:    make(map[string]map[chan domain.Session]struct{}),
		now:     time.Now,
	}
}

// Get returns the session of deviceID, or the empty session if unknown.
func (s *Store) Get(deviceID string) domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.devices[deviceID]; ok {
		return st.session
	}
	return domain.EmptySession()
}

// Len returns the number of tracked devices.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// update applies fn to the state of deviceID under the write lock. When fn
// reports a session change, the generation is bumped and subscribers are
// notified with the new session.
func (s *Store) update(deviceID string, fn func(st *deviceState) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.devices[deviceID]
	if !ok {
		st = &deviceState{session: domain.EmptySession(), lastSeen: s.now()}
		s.devices[deviceID] = st
	}
	s.apply(deviceID, st, fn)
}

// each calls fn for every known device under the write lock. fn follows the
// update contract.
func (s *Store) each(fn func(deviceID string, st *deviceState) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.devices {
		s.apply(id, st, func(st *deviceState) bool { return fn(id, st) })
	}
}

func (s *Store) apply(deviceID string, st *deviceState, fn func(st *deviceState) bool) {
	if !fn(st) {
		return
	}
	st.generation++

	for ch := range s.subs[deviceID] {
		// Keep only the latest session for slow readers.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st.session:
		default:
		}
	}
}

// touch records activity for deviceID.
func (s *Store) touch(deviceID string) {
	s.update(deviceID, func(st *deviceState) bool {
		st.lastSeen = s.now()
		return false
	})
}

// Subscribe returns a channel that receives the session of deviceID after
// every change, and a function that cancels the subscription.
func (s *Store) Subscribe(deviceID string) (<-chan domain.Session, func()) {
	ch := make(chan domain.Session, 1)

	s.mu.Lock()
	if _, ok := s.subs[deviceID]; !ok {
		s.subs[deviceID] = make(map[chan domain.Session]struct{})
	}
	s.subs[deviceID][ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if subs, ok := s.subs[deviceID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(s.subs, deviceID)
				}
			}
		})
	}
}

// Forget drops deviceID from the store if it has not been seen since cutoff.
// Only unauthenticated devices without a pending login are dropped; it
// reports whether the device was removed.
func (s *Store) Forget(deviceID string, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.devices[deviceID]
	if !ok {
		return false
	}
	if !st.lastSeen.Before(cutoff) {
		return false
	}
	if st.session.Authenticated || st.pending != nil {
		return false
	}
	delete(s.devices, deviceID)
	return true
}

// idleSince lists devices not touched since cutoff.
func (s *Store) idleSince(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, st := range s.devices {
		if st.lastSeen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
