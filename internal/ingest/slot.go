package ingest

import (
	"sync"

	"github.com/graaaaa/roomcheck/internal/domain"
)

// ResultSlot holds at most one pending scan result.
//
// Put overwrites any result nobody has taken yet (last write wins, no
// queue). Take returns the pending result and clears the slot in the same
// critical section, so two pollers never both receive it.
type ResultSlot struct {
	mu      sync.Mutex
	pending *domain.ScanResult
}

// NewResultSlot creates an empty slot.
func NewResultSlot() *ResultSlot {
	return &ResultSlot{}
}

// Put stores r, replacing any unretrieved result.
func (s *ResultSlot) Put(r domain.ScanResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &r
}

// Take consumes the pending result. ok is false when there is nothing new.
func (s *ResultSlot) Take() (r domain.ScanResult, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return domain.ScanResult{}, false
	}
	r = *s.pending
	s.pending = nil
	return r, true
}
