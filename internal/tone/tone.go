package tone

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Reference tuning: row ReferencePitch sounds at ReferenceFrequency and each
// row above or below is one equal-tempered semitone away.
const (
	ReferenceFrequency = 440.0
	ReferencePitch     = 8
)

// Fixed envelope of every triggered tone.
const (
	PeakGain  = 0.2
	FloorGain = 0.001
	Duration  = 200 * time.Millisecond
)

var (
	ErrSinkUnavailable = errors.New("tone sink unavailable")
	ErrUnknownTimbre   = errors.New("unknown timbre")
)

// Timbre selects the waveform of a triggered tone.
type Timbre string

const (
	Sine     Timbre = "sine"
	Square   Timbre = "square"
	Sawtooth Timbre = "sawtooth"
	Triangle Timbre = "triangle"
	Custom   Timbre = "custom"
)

// Timbres lists every supported timbre in display order.
var Timbres = []Timbre{Sine, Square, Sawtooth, Triangle, Custom}

// Valid reports whether t is one of the supported timbres.
func (t Timbre) Valid() bool {
	for _, v := range Timbres {
		if t == v {
			return true
		}
	}
	return false
}

// ParseTimbre converts an instrument selection into a Timbre.
func ParseTimbre(s string) (Timbre, error) {
	t := Timbre(s)
	if !t.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownTimbre)
	}
	return t, nil
}

// Frequency maps a pitch row to Hz.
func Frequency(pitch int) float64 {
	return ReferenceFrequency * math.Pow(2, float64(pitch-ReferencePitch)/12)
}

// Sink turns a pitch, timbre and time into sound. Play must return without
// waiting for the tone to finish and must not call back into the scheduler.
type Sink interface {
	Play(pitch int, timbre Timbre, at time.Time) error
}

// Resumer is implemented by sinks backed by a device that has to be woken
// before it produces sound. Resume must be idempotent.
type Resumer interface {
	Resume() error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(pitch int, timbre Timbre, at time.Time) error

func (f SinkFunc) Play(pitch int, timbre Timbre, at time.Time) error {
	return f(pitch, timbre, at)
}

type multiSink []Sink

// Multi returns a Sink that plays every trigger on all sinks. One sink
// failing does not stop the others; the failures are joined.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Play(pitch int, timbre Timbre, at time.Time) error {
	var errs []error
	for _, s := range m {
		if err := s.Play(pitch, timbre, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiSink) Resume() error {
	var errs []error
	for _, s := range m {
		if r, ok := s.(Resumer); ok {
			if err := r.Resume(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
