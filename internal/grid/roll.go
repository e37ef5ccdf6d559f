package grid

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Note is a pitched event occupying steps [Start, Start+Duration) on one row.
type Note struct {
	Pitch    int `json:"pitch"`
	Start    int `json:"start"`
	Duration int `json:"duration"`
}

// End returns the first step after the note, saturating at math.MaxInt.
func (n Note) End() int {
	if n.Duration > math.MaxInt-n.Start {
		return math.MaxInt
	}
	return n.Start + n.Duration
}

// Covers reports whether the note occupies (pitch, step).
func (n Note) Covers(pitch, step int) bool {
	return n.Pitch == pitch && step >= n.Start && step-n.Start < n.Duration
}

// Resized returns the note with its duration changed by delta, floored at 1
// and saturating at math.MaxInt.
func (n Note) Resized(delta int) Note {
	switch {
	case delta > 0 && n.Duration > math.MaxInt-delta:
		n.Duration = math.MaxInt
	default:
		n.Duration = max(1, n.Duration+delta)
	}
	return n
}

// Roll is the piano-roll grid. Notes on the same row may end up overlapping
// after a resize; each one still fires at its own start step.
type Roll struct {
	steps   int
	pitches int

	mu    sync.RWMutex
	notes []Note
}

// NewRoll creates an empty roll of the given dimensions.
func NewRoll(steps, pitches int) *Roll {
	return &Roll{steps: steps, pitches: pitches}
}

// Len returns the number of steps.
func (r *Roll) Len() int {
	return r.steps
}

// Pitches returns the number of pitch rows.
func (r *Roll) Pitches() int {
	return r.pitches
}

func (r *Roll) checkCell(pitch, step int) error {
	if pitch < 0 || pitch >= r.pitches {
		return fmt.Errorf("pitch %d of %d: %w", pitch, r.pitches, ErrOutOfRange)
	}
	if step < 0 || step >= r.steps {
		return fmt.Errorf("step %d of %d: %w", step, r.steps, ErrOutOfRange)
	}
	return nil
}

// Toggle removes every note covering (pitch, step), or inserts a unit note
// there when none does. It returns the updated note set.
func (r *Roll) Toggle(pitch, step int) ([]Note, error) {
	if err := r.checkCell(pitch, step); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.notes[:0]
	removed := false
	for _, n := range r.notes {
		if n.Covers(pitch, step) {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	r.notes = kept
	if !removed {
		r.notes = append(r.notes, Note{Pitch: pitch, Start: step, Duration: 1})
	}
	return r.sortedLocked(), nil
}

// Resize changes the duration of the note starting at (pitch, start).
func (r *Roll) Resize(pitch, start, delta int) (Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(pitch, start)
	if i < 0 {
		return Note{}, fmt.Errorf("pitch %d step %d: %w", pitch, start, ErrNoteNotFound)
	}
	r.notes[i] = r.notes[i].Resized(delta)
	return r.notes[i], nil
}

// Lookup returns the note starting at (pitch, start).
func (r *Roll) Lookup(pitch, start int) (Note, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexLocked(pitch, start)
	if i < 0 {
		return Note{}, false
	}
	return r.notes[i], true
}

// NotesDueAt returns the notes whose start step is step, ordered by pitch.
func (r *Roll) NotesDueAt(step int) []Note {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []Note
	for _, n := range r.notes {
		if n.Start == step {
			due = append(due, n)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Pitch < due[j].Pitch })
	return due
}

// Notes returns a copy of every note, ordered by start then pitch.
func (r *Roll) Notes() []Note {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

func (r *Roll) indexLocked(pitch, start int) int {
	for i, n := range r.notes {
		if n.Pitch == pitch && n.Start == start {
			return i
		}
	}
	return -1
}

func (r *Roll) sortedLocked() []Note {
	out := make([]Note, len(r.notes))
	copy(out, r.notes)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Pitch < out[j].Pitch
	})
	return out
}
