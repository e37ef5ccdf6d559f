package sequencer

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/10happee/chip/internal/tone"
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

// State is the transport state.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Transport is the playback position owned by the scheduler.
type Transport struct {
	State    State         `json:"-"`
	Step     int           `json:"step"`
	Tempo    int           `json:"tempo"`    // bpm snapshot taken at start
	Interval time.Duration `json:"interval"` // zero while stopped
}

// SchedulerConfig holds playback parameters.
type SchedulerConfig struct {
	Tempo  int         // bpm, read on each Start
	Timbre tone.Timbre // applied live
	Clock  Clock       // nil means RealClock
}

// TickFunc observes every tick after its tones were triggered.
type TickFunc func(step int)

// Scheduler walks a Pattern at a tempo-derived cadence and triggers a
// tone.Sink for every pitch due on the current step.
type Scheduler struct {
	pattern Pattern
	sink    tone.Sink
	clock   Clock

	mu        sync.Mutex
	transport Transport
	tempo     int
	timbre    tone.Timbre
	onTick    TickFunc

	stopTimer func()
	gen       uint64    // bumped on every start/stop; stale timer callbacks compare against it
	origin    time.Time // time of tick 0
	ticks     int64     // ticks delivered since origin
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(p Pattern, sink tone.Sink, cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock
	}
	timbre := cfg.Timbre
	if !timbre.Valid() {
		timbre = tone.Sine
	}
	return &Scheduler{
		pattern: p,
		sink:    sink,
		clock:   clock,
		tempo:   cfg.Tempo,
		timbre:  timbre,
	}
}

// MaxTempo is the fastest accepted tempo in beats per minute.
const MaxTempo = 1000

// TickInterval is the time between steps: one beat divided by stepsPerBeat.
func TickInterval(bpm, stepsPerBeat int) time.Duration {
	return time.Minute / time.Duration(bpm) / time.Duration(stepsPerBeat)
}

// ParseTempo validates a raw tempo value such as a form field.
func ParseTempo(s string) (int, error) {
	bpm, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("tempo %q: %w", s, ErrInvalidConfiguration)
	}
	if err := checkTempo(bpm); err != nil {
		return 0, err
	}
	return bpm, nil
}

func checkTempo(bpm int) error {
	if bpm <= 0 || bpm > MaxTempo {
		return fmt.Errorf("tempo %d not in 1..%d: %w", bpm, MaxTempo, ErrInvalidConfiguration)
	}
	return nil
}

// SetOnTick sets the tick observer. It runs outside the scheduler lock.
func (s *Scheduler) SetOnTick(fn TickFunc) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

// SetTempo stores the tempo used by the next Start. A running transport
// keeps the tempo it started with.
func (s *Scheduler) SetTempo(bpm int) {
	s.mu.Lock()
	s.tempo = bpm
	playing := s.transport.State == Playing
	s.mu.Unlock()
	if playing {
		log.Printf("Tempo set to %d bpm, applies on next start", bpm)
	}
}

// Tempo returns the tempo that the next Start will read.
func (s *Scheduler) Tempo() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

// SetTimbre changes the timbre of subsequent triggers.
func (s *Scheduler) SetTimbre(t tone.Timbre) error {
	if !t.Valid() {
		return fmt.Errorf("%q: %w", t, tone.ErrUnknownTimbre)
	}
	s.mu.Lock()
	s.timbre = t
	s.mu.Unlock()
	return nil
}

// Timbre returns the current timbre.
func (s *Scheduler) Timbre() tone.Timbre {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timbre
}

// Transport returns a copy of the transport.
func (s *Scheduler) Transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// Start begins playback from step 0. Starting while playing does nothing.
// A tempo outside 1..MaxTempo is rejected and the transport stays stopped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.transport.State == Playing {
		s.mu.Unlock()
		return nil
	}
	bpm := s.tempo
	if err := checkTempo(bpm); err != nil {
		s.mu.Unlock()
		return err
	}
	spb := s.pattern.StepsPerBeat()
	if spb <= 0 || s.pattern.Len() <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("pattern of %d steps at %d per beat: %w", s.pattern.Len(), spb, ErrInvalidConfiguration)
	}

	interval := TickInterval(bpm, spb)
	s.gen++
	gen := s.gen
	s.transport = Transport{State: Playing, Step: 0, Tempo: bpm, Interval: interval}
	s.origin = s.clock.Now()
	s.ticks = 0
	s.mu.Unlock()

	if r, ok := s.sink.(tone.Resumer); ok {
		if err := r.Resume(); err != nil {
			log.Printf("Sink resume failed: %v", err)
		}
	}

	log.Printf("Transport started: %d bpm, %v per step", bpm, interval)
	s.tick(gen)

	// The timer starts after tick 0 so its first beat is tick 1.
	stop := s.clock.Every(interval, func() { s.tick(gen) })
	s.mu.Lock()
	if gen != s.gen {
		// stopped while tick 0 was playing
		s.mu.Unlock()
		stop()
		return nil
	}
	s.stopTimer = stop
	s.mu.Unlock()
	return nil
}

// Stop cancels the timer and rewinds to step 0. No tick is delivered after
// Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop := s.stopTimer
	s.stopTimer = nil
	wasPlaying := s.transport.State == Playing
	s.gen++
	s.transport = Transport{State: Stopped, Step: 0}
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if wasPlaying {
		log.Println("Transport stopped")
	}
}

// tick triggers the current step and advances the pointer. The lock is held
// across the sink calls so a concurrent Stop waits for the tick to finish.
func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.transport.State != Playing {
		s.mu.Unlock()
		return
	}

	step := s.transport.Step
	at := s.origin.Add(time.Duration(s.ticks) * s.transport.Interval)
	s.ticks++

	for _, pitch := range s.pattern.DueAt(step) {
		s.trigger(pitch, s.timbre, at)
	}

	s.transport.Step = (step + 1) % s.pattern.Len()
	onTick := s.onTick
	s.mu.Unlock()

	if onTick != nil {
		onTick(step)
	}
}

// trigger plays one tone. Sink failures never reach the clock.
func (s *Scheduler) trigger(pitch int, timbre tone.Timbre, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Tone sink panic on pitch %d: %v", pitch, r)
		}
	}()
	if err := s.sink.Play(pitch, timbre, at); err != nil {
		log.Printf("Tone dropped (pitch %d): %v", pitch, err)
	}
}
