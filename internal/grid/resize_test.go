package grid

import (
	"errors"
	"testing"
)

func newResizeRoll(t *testing.T) *Roll {
	t.Helper()
	r := NewRoll(RollSteps, RollPitches)
	if _, err := r.Toggle(8, 0); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResizeSessionWholeSteps(t *testing.T) {
	r := newResizeRoll(t)
	s, err := r.BeginResize(8, 0, 20, 100)
	if err != nil {
		t.Fatalf("BeginResize: %v", err)
	}

	moves := []struct {
		x         float64
		wantDelta int
		wantDur   int
	}{
		{110, 0, 1}, // half a cell
		{125, 1, 2}, // crosses one cell
		{139, 0, 2}, // origin rebased to 120
		{181, 3, 5}, // three more cells
		{185, 0, 5},
		{159, -2, 3}, // back toward the origin
	}
	for _, m := range moves {
		delta, err := s.Update(m.x)
		if err != nil {
			t.Fatalf("Update(%v): %v", m.x, err)
		}
		if delta != m.wantDelta {
			t.Errorf("Update(%v) delta = %d, want %d", m.x, delta, m.wantDelta)
		}
		n, _ := r.Lookup(8, 0)
		if n.Duration != m.wantDur {
			t.Errorf("after Update(%v) duration = %d, want %d", m.x, n.Duration, m.wantDur)
		}
	}

	n, err := s.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if n.Duration != 3 {
		t.Errorf("committed duration = %d, want 3", n.Duration)
	}
}

func TestResizeSessionFloor(t *testing.T) {
	r := newResizeRoll(t)
	s, _ := r.BeginResize(8, 0, 10, 500)
	if _, err := s.Update(0); err != nil {
		t.Fatalf("Update: %v", err)
	}
	n, _ := r.Lookup(8, 0)
	if n.Duration != 1 {
		t.Errorf("duration = %d, want floor of 1", n.Duration)
	}
}

func TestResizeSessionClosed(t *testing.T) {
	r := newResizeRoll(t)
	s, _ := r.BeginResize(8, 0, 10, 0)
	s.End()
	if _, err := s.Update(100); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Update after End err = %v, want ErrSessionClosed", err)
	}
	if _, err := s.End(); err != nil {
		t.Errorf("second End: %v", err)
	}
	n, _ := r.Lookup(8, 0)
	if n.Duration != 1 {
		t.Errorf("closed session changed duration to %d", n.Duration)
	}
}

func TestBeginResizeErrors(t *testing.T) {
	r := newResizeRoll(t)
	if _, err := r.BeginResize(3, 3, 10, 0); !errors.Is(err, ErrNoteNotFound) {
		t.Errorf("BeginResize missing note err = %v, want ErrNoteNotFound", err)
	}
	if _, err := r.BeginResize(8, 0, 0, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("BeginResize zero cell size err = %v, want ErrOutOfRange", err)
	}
}

func TestResizeSessionNoteRemoved(t *testing.T) {
	r := newResizeRoll(t)
	s, _ := r.BeginResize(8, 0, 10, 0)
	r.Toggle(8, 0)
	if _, err := s.Update(50); !errors.Is(err, ErrNoteNotFound) {
		t.Errorf("Update on removed note err = %v, want ErrNoteNotFound", err)
	}
}
