package fetch

import "sync"

// InFlightSet holds the dates that currently have a mutation outstanding.
// It is a mutual-exclusion guard only and is never persisted.
type InFlightSet struct {
	mu    sync.Mutex
	dates map[string]struct{}
}

func NewInFlightSet() *InFlightSet {
	return &InFlightSet{dates: make(map[string]struct{})}
}

// Acquire adds key and returns true, or returns false if it is already held.
func (s *InFlightSet) Acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.dates[key]; held {
		return false
	}
	s.dates[key] = struct{}{}
	return true
}

func (s *InFlightSet) Release(key string) {
	s.mu.Lock()
	delete(s.dates, key)
	s.mu.Unlock()
}

func (s *InFlightSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, held := s.dates[key]
	return held
}

func (s *InFlightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dates)
}
