package route

import "sync"

// Slot holds at most one pending destination between the moment a notification is
// opened and the moment navigation consumes it. Set overwrites; nothing is queued.
type Slot struct {
	mu      sync.Mutex
	dest    Destination
	changed chan struct{}
}

func NewSlot() *Slot {
	return &Slot{changed: make(chan struct{})}
}

// Set stores d, replacing any pending destination, and wakes observers.
func (s *Slot) Set(d Destination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dest = d
	if s.changed == nil {
		s.changed = make(chan struct{})
	}
	close(s.changed)
	s.changed = make(chan struct{})
}

// Peek returns the pending destination without clearing it.
func (s *Slot) Peek() (Destination, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dest, s.dest != nil
}

// Take returns the pending destination and clears the slot.
func (s *Slot) Take() (Destination, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dest
	s.dest = nil
	return d, d != nil
}

func (s *Slot) Clear() {
	s.mu.Lock()
	s.dest = nil
	s.mu.Unlock()
}

// Changed returns a channel that is closed on the next Set.
func (s *Slot) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.changed == nil {
		s.changed = make(chan struct{})
	}
	return s.changed
}
