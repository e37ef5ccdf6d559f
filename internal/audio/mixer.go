package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/10happee/chip/internal/tone"
)

// Mixer is a software tone sink. Each Play creates a transient voice which is
// summed into 20ms PCM frames until its envelope ends.
//
// The mixer starts suspended, like a browser audio context, and refuses to
// play until Resume is called.
type Mixer struct {
	frameCh chan []int16
	now     func() time.Time

	mu     sync.Mutex
	active bool
	voices []*tone.Voice
	clock  time.Time // wall time of the next sample to render
}

// NewMixer creates a suspended mixer.
func NewMixer() *Mixer {
	return &Mixer{
		frameCh: make(chan []int16, 100),
		now:     time.Now,
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (m *Mixer) Frames() <-chan []int16 {
	return m.frameCh
}

// Resume activates the device. Repeated calls are harmless.
func (m *Mixer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		m.active = true
		m.clock = m.now()
	}
	return nil
}

// Suspend silences the device and drops sounding voices.
func (m *Mixer) Suspend() {
	m.mu.Lock()
	m.active = false
	m.voices = nil
	m.mu.Unlock()
}

// Active reports whether the mixer has been resumed.
func (m *Mixer) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Voices returns the number of sounding voices.
func (m *Mixer) Voices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Play starts a voice. A tone stamped in the future is delayed by the
// matching number of samples; one in the past starts with the next frame.
func (m *Mixer) Play(pitch int, timbre tone.Timbre, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return fmt.Errorf("mixer suspended: %w", tone.ErrSinkUnavailable)
	}

	var delay int
	if d := at.Sub(m.clock); d > 0 {
		delay = int(int64(d) * SampleRate / int64(time.Second))
	}
	m.voices = append(m.voices, tone.NewVoice(tone.Frequency(pitch), timbre, SampleRate, delay))
	return nil
}

// RenderFrame mixes one frame of interleaved stereo samples and releases
// finished voices.
func (m *Mixer) RenderFrame() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := make([]int16, FrameSamples)
	if len(m.voices) > 0 {
		for i := 0; i < FrameSize; i++ {
			var mixed float64
			for _, v := range m.voices {
				mixed += v.Next()
			}
			s := toInt16(mixed)
			for c := 0; c < Channels; c++ {
				frame[i*Channels+c] = s
			}
		}

		live := m.voices[:0]
		for _, v := range m.voices {
			if !v.Done() {
				live = append(live, v)
			}
		}
		for i := len(live); i < len(m.voices); i++ {
			m.voices[i] = nil
		}
		m.voices = live
	}

	if m.active {
		m.clock = m.clock.Add(FrameDuration)
	}
	return frame
}

// Run renders frames at real-time rate. Blocks until ctx is cancelled.
// Silence is emitted while nothing sounds so streams stay continuous.
func (m *Mixer) Run(ctx context.Context) {
	defer close(m.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.resync()
		frame := m.RenderFrame()

		select {
		case m.frameCh <- frame:
		case <-ctx.Done():
			return
		default:
			// nobody draining; drop rather than fall behind real time
		}
	}
}

// resync pulls the render clock forward if rendering fell behind wall time.
func (m *Mixer) resync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now := m.now(); m.active && now.Sub(m.clock) > 4*FrameDuration {
		m.clock = now
	}
}

func toInt16(v float64) int16 {
	v *= 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
