// Package display holds the last classification label shown on the overlay.
package display

import "sync"

// State is written by the inbound handler and read by the render path.
type State struct {
	mu    sync.RWMutex
	label string
	set   bool
}

func New() *State {
	return &State{}
}

func (s *State) Set(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
	s.set = true
}

// Label returns the current label and whether any classification arrived yet.
func (s *State) Label() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.label, s.set
}
