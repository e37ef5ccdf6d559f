package grid

import (
	"fmt"
	"math"
	"sync"
)

// ResizeSession tracks one press-drag-release on a note's trailing edge.
// Pointer movement is converted to whole-step deltas which are committed to
// the roll as they occur; only the final duration matters once it ends.
type ResizeSession struct {
	roll     *Roll
	pitch    int
	start    int
	cellSize float64

	mu     sync.Mutex
	origin float64
	closed bool
}

// BeginResize opens a resize session for the note starting at (pitch, start)
// with the pointer pressed at x. cellSize is the width of one step in pixels.
func (r *Roll) BeginResize(pitch, start int, cellSize, x float64) (*ResizeSession, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("cell size %v: %w", cellSize, ErrOutOfRange)
	}
	if _, ok := r.Lookup(pitch, start); !ok {
		return nil, fmt.Errorf("pitch %d step %d: %w", pitch, start, ErrNoteNotFound)
	}
	return &ResizeSession{
		roll:     r,
		pitch:    pitch,
		start:    start,
		cellSize: cellSize,
		origin:   x,
	}, nil
}

// Update applies the whole-step displacement since the last rebase and
// returns the delta that was applied.
func (s *ResizeSession) Update(x float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	delta := int(math.Floor((x - s.origin) / s.cellSize))
	if delta == 0 {
		return 0, nil
	}
	if _, err := s.roll.Resize(s.pitch, s.start, delta); err != nil {
		return 0, err
	}
	s.origin += float64(delta) * s.cellSize
	return delta, nil
}

// End closes the session and returns the committed note. Calling End more
// than once is harmless.
func (s *ResizeSession) End() (Note, error) {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	n, ok := s.roll.Lookup(s.pitch, s.start)
	if !ok {
		return Note{}, fmt.Errorf("pitch %d step %d: %w", s.pitch, s.start, ErrNoteNotFound)
	}
	return n, nil
}

// Note returns the pitch and start step identifying the resized note.
func (s *ResizeSession) Note() (pitch, start int) {
	return s.pitch, s.start
}
