package sequencer

import (
	"github.com/10happee/chip/internal/grid"
	"github.com/10happee/chip/internal/tone"
)

// Pattern is the read side of a grid as seen by the scheduler.
type Pattern interface {
	// Len is the number of steps before the pointer wraps.
	Len() int
	// StepsPerBeat is how many steps make up one beat of the tempo.
	StepsPerBeat() int
	// DueAt returns the pitches that start at step.
	DueAt(step int) []int
}

type flatPattern struct {
	steps *grid.Steps
}

// Flat plays one quarter-note step per tick at the reference pitch.
func Flat(g *grid.Steps) Pattern {
	return flatPattern{steps: g}
}

func (p flatPattern) Len() int          { return p.steps.Len() }
func (p flatPattern) StepsPerBeat() int { return 1 }

func (p flatPattern) DueAt(step int) []int {
	if p.steps.IsActiveAt(step) {
		return []int{tone.ReferencePitch}
	}
	return nil
}

type rollPattern struct {
	roll *grid.Roll
}

// PianoRoll plays sixteenth-note steps; each note sounds at its start step.
func PianoRoll(r *grid.Roll) Pattern {
	return rollPattern{roll: r}
}

func (p rollPattern) Len() int          { return p.roll.Len() }
func (p rollPattern) StepsPerBeat() int { return 4 }

func (p rollPattern) DueAt(step int) []int {
	notes := p.roll.NotesDueAt(step)
	if len(notes) == 0 {
		return nil
	}
	pitches := make([]int, len(notes))
	for i, n := range notes {
		pitches[i] = n.Pitch
	}
	return pitches
}
