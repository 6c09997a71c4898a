// Package chatstore holds a participant's local view of a chat. The view
// only changes through events received from the relay.
package chatstore

import (
	"sync"

	"github.com/yourcaryourway/support-chat/internal/domain"
)

// Snapshot is an immutable copy of the chat state.
type Snapshot struct {
	SessionID    string
	Messages     []domain.MessageView
	IsTyping     bool
	IsConnected  bool
	IsChatActive bool
}

// Listener receives every new snapshot.
type Listener func(Snapshot)

// Store applies functional updates to a Snapshot and notifies listeners.
// Listeners run with no lock held and may call back into the Store; a
// nested update is queued and delivered after the current one.
type Store struct {
	mu        sync.Mutex
	state     Snapshot
	seen      map[string]struct{}
	listeners map[int]Listener
	nextID    int

	pending    []Snapshot
	delivering bool
}

func New() *Store {
	return &Store{
		seen:      make(map[string]struct{}),
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn, calls it with the current state and returns a
// function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.state
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// update replaces the state with fn(previous). Listeners see the resulting
// snapshots in update order.
func (s *Store) update(fn func(prev Snapshot) (Snapshot, bool)) {
	s.mu.Lock()
	next, changed := fn(s.state)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.pending = append(s.pending, next)
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	for len(s.pending) > 0 {
		snap := s.pending[0]
		s.pending = s.pending[1:]
		listeners := make([]Listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
		s.mu.Unlock()

		for _, l := range listeners {
			l(snap)
		}

		s.mu.Lock()
	}
	s.pending = nil
	s.delivering = false
	s.mu.Unlock()
}

// SetSessionID records the session and marks the chat active.
func (s *Store) SetSessionID(id string) {
	s.update(func(prev Snapshot) (Snapshot, bool) {
		prev.SessionID = id
		prev.IsChatActive = true
		return prev, true
	})
}

// AddMessage appends m unless a message with the same id was already
// added. It reports whether m was appended.
func (s *Store) AddMessage(m domain.MessageView) bool {
	added := false
	s.update(func(prev Snapshot) (Snapshot, bool) {
		if _, dup := s.seen[m.ID]; dup {
			return prev, false
		}
		s.seen[m.ID] = struct{}{}

		messages := make([]domain.MessageView, len(prev.Messages), len(prev.Messages)+1)
		copy(messages, prev.Messages)
		prev.Messages = append(messages, m)
		added = true
		return prev, true
	})
	return added
}

func (s *Store) SetTyping(typing bool) {
	s.update(func(prev Snapshot) (Snapshot, bool) {
		prev.IsTyping = typing
		return prev, true
	})
}

func (s *Store) SetConnected(connected bool) {
	s.update(func(prev Snapshot) (Snapshot, bool) {
		prev.IsConnected = connected
		return prev, true
	})
}

// EndChat clears the active flag and keeps the messages.
func (s *Store) EndChat() {
	s.update(func(prev Snapshot) (Snapshot, bool) {
		prev.IsChatActive = false
		prev.IsTyping = false
		return prev, true
	})
}

// Reset restores the empty state.
func (s *Store) Reset() {
	s.update(func(Snapshot) (Snapshot, bool) {
		s.seen = make(map[string]struct{})
		return Snapshot{}, true
	})
}

// ResetChat clears the chat but keeps the connection flag, for starting a
// new chat over the same connection.
func (s *Store) ResetChat() {
	s.update(func(prev Snapshot) (Snapshot, bool) {
		s.seen = make(map[string]struct{})
		return Snapshot{IsConnected: prev.IsConnected}, true
	})
}
