package midiout

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/10happee/chip/internal/tone"
)

// ReferenceKey is the MIDI key of tone.ReferencePitch (A4 = 440 Hz).
const ReferenceKey = 69

const velocity = 100

// GM programs closest to each timbre.
var programs = map[tone.Timbre]uint8{
	tone.Sine:     79, // Ocarina
	tone.Square:   80, // Lead 1 (square)
	tone.Sawtooth: 81, // Lead 2 (sawtooth)
	tone.Triangle: 73, // Flute
	tone.Custom:   16, // Drawbar Organ
}

// Sink plays tones on a MIDI output. Every note is released after the
// fixed tone duration.
type Sink struct {
	send    func(midi.Message) error
	channel uint8
	after   func(time.Duration, func())

	mu      sync.Mutex
	program int         // last program sent, -1 for none
	strikes [128]uint64 // per key, bumped on every NoteOn
}

// New creates a sink that writes to send on the given 1-based channel.
func New(send func(midi.Message) error, channel int) *Sink {
	if channel < 1 || channel > 16 {
		channel = 1
	}
	return &Sink{
		send:    send,
		channel: uint8(channel - 1),
		after:   func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		program: -1,
	}
}

// Open binds a sink to the named output port.
func Open(portName string, channel int) (*Sink, error) {
	out, err := midi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("find MIDI port %q: %w", portName, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open MIDI port %q: %w", portName, err)
	}
	log.Printf("MIDI output: %s (channel %d)", out.String(), channel)
	return New(send, channel), nil
}

// Ports lists the available MIDI output port names.
func Ports() []string {
	outs := midi.GetOutPorts()
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names
}

// Close releases the MIDI driver.
func Close() {
	midi.CloseDriver()
}

// Key maps a pitch row to a MIDI key, clamped to 0..127.
func Key(pitch int) uint8 {
	k := ReferenceKey + pitch - tone.ReferencePitch
	return uint8(min(127, max(0, k)))
}

// Play sends NoteOn now and NoteOff after tone.Duration. MIDI has no
// timestamps on the wire, so at is not used. A key struck again before its
// NoteOff keeps sounding for the full duration of the later strike.
func (s *Sink) Play(pitch int, timbre tone.Timbre, at time.Time) error {
	if err := s.selectProgram(timbre); err != nil {
		return err
	}

	key := Key(pitch)
	s.mu.Lock()
	s.strikes[key]++
	strike := s.strikes[key]
	s.mu.Unlock()

	if err := s.send(midi.NoteOn(s.channel, key, velocity)); err != nil {
		return fmt.Errorf("note on %d: %v: %w", key, err, tone.ErrSinkUnavailable)
	}
	s.after(tone.Duration, func() { s.release(key, strike) })
	return nil
}

// release sends NoteOff unless the key was struck again since strike.
func (s *Sink) release(key uint8, strike uint64) {
	s.mu.Lock()
	stale := s.strikes[key] != strike
	s.mu.Unlock()
	if stale {
		return
	}
	if err := s.send(midi.NoteOff(s.channel, key)); err != nil {
		log.Printf("MIDI note off %d failed: %v", key, err)
	}
}

func (s *Sink) selectProgram(timbre tone.Timbre) error {
	prog, ok := programs[timbre]
	if !ok {
		return fmt.Errorf("%q: %w", timbre, tone.ErrUnknownTimbre)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program == int(prog) {
		return nil
	}
	if err := s.send(midi.ProgramChange(s.channel, prog)); err != nil {
		return fmt.Errorf("program change %d: %v: %w", prog, err, tone.ErrSinkUnavailable)
	}
	s.program = int(prog)
	return nil
}
