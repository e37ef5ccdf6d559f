package grid

import (
	"errors"
	"fmt"
	"sync"
)

// Fixed grid dimensions for the two sequencer variants.
const (
	FlatSteps   = 16
	RollSteps   = 32
	RollPitches = 16
)

var (
	ErrOutOfRange    = errors.New("out of range")
	ErrNoteNotFound  = errors.New("note not found")
	ErrSessionClosed = errors.New("resize session closed")
)

// Steps is the flat sequencer grid: one on/off flag per step.
type Steps struct {
	mu     sync.RWMutex
	active []bool
}

// NewSteps creates an all-off grid with n steps.
func NewSteps(n int) *Steps {
	return &Steps{active: make([]bool, n)}
}

// Len returns the number of steps.
func (g *Steps) Len() int {
	return len(g.active)
}

// Toggle inverts the step at index and returns its new value.
func (g *Steps) Toggle(index int) (bool, error) {
	if index < 0 || index >= len(g.active) {
		return false, fmt.Errorf("step %d of %d: %w", index, len(g.active), ErrOutOfRange)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active[index] = !g.active[index]
	return g.active[index], nil
}

// IsActiveAt reports whether the step is on. Indices outside the grid are off.
func (g *Steps) IsActiveAt(step int) bool {
	if step < 0 || step >= len(g.active) {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active[step]
}

// Snapshot returns a copy of all step flags.
func (g *Steps) Snapshot() []bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]bool, len(g.active))
	copy(out, g.active)
	return out
}
