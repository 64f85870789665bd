package common

import (
	"errors"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is currently halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Switches is a concrete PauseView backed by an in-memory set, toggled by the
// operator surface at runtime.
type Switches struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewSwitches constructs an empty switch set with every module running.
func NewSwitches() *Switches {
	return &Switches{paused: make(map[string]bool)}
}

// SetPaused toggles the pause flag for a module.
func (s *Switches) SetPaused(module string, paused bool) {
	if s == nil || module == "" {
		return
	}
	s.mu.Lock()
	s.paused[module] = paused
	s.mu.Unlock()
}

// IsPaused implements PauseView.
func (s *Switches) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused[module]
}
