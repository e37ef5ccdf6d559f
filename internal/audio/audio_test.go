package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/10happee/chip/internal/tone"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

// --- SamplesToBytes ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

// --- Mixer ---

func newTestMixer() (*Mixer, *time.Time) {
	now := time.Unix(100, 0)
	m := NewMixer()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMixerSuspendedDropsTones(t *testing.T) {
	m, now := newTestMixer()
	err := m.Play(8, tone.Sine, *now)
	if !errors.Is(err, tone.ErrSinkUnavailable) {
		t.Errorf("Play while suspended err = %v, want ErrSinkUnavailable", err)
	}
	if m.Voices() != 0 {
		t.Errorf("Voices = %d, want 0", m.Voices())
	}
}

func TestMixerResumeIdempotent(t *testing.T) {
	m, now := newTestMixer()
	for i := 0; i < 3; i++ {
		if err := m.Resume(); err != nil {
			t.Fatalf("Resume #%d: %v", i, err)
		}
	}
	if !m.Active() {
		t.Fatal("mixer not active after Resume")
	}
	if err := m.Play(8, tone.Square, *now); err != nil {
		t.Errorf("Play after Resume: %v", err)
	}
}

func TestMixerRendersAndReleases(t *testing.T) {
	m, now := newTestMixer()
	m.Resume()
	m.Play(8, tone.Square, *now)

	frame := m.RenderFrame()
	if len(frame) != FrameSamples {
		t.Fatalf("frame length = %d, want %d", len(frame), FrameSamples)
	}
	// square at peak gain 0.2
	want := toInt16(tone.PeakGain)
	if frame[0] != want || frame[1] != want {
		t.Errorf("first stereo sample = %d/%d, want %d", frame[0], frame[1], want)
	}

	// 200ms tone = 10 frames
	for i := 1; i < 10; i++ {
		m.RenderFrame()
	}
	if m.Voices() != 0 {
		t.Errorf("Voices after 200ms = %d, want 0", m.Voices())
	}
	for i, s := range m.RenderFrame() {
		if s != 0 {
			t.Fatalf("sample %d = %d after release, want silence", i, s)
		}
	}
}

func TestMixerDelaysFutureTones(t *testing.T) {
	m, now := newTestMixer()
	m.Resume()
	m.Play(8, tone.Square, now.Add(FrameDuration))

	first := m.RenderFrame()
	for i, s := range first {
		if s != 0 {
			t.Fatalf("sample %d = %d before scheduled time", i, s)
		}
	}
	second := m.RenderFrame()
	if second[0] == 0 {
		t.Error("tone did not start in the frame it was scheduled for")
	}
}

func TestMixerSuspendClearsVoices(t *testing.T) {
	m, now := newTestMixer()
	m.Resume()
	m.Play(1, tone.Sawtooth, *now)
	m.Play(2, tone.Triangle, *now)
	m.Suspend()
	if m.Voices() != 0 || m.Active() {
		t.Errorf("after Suspend voices=%d active=%v", m.Voices(), m.Active())
	}
}

func TestToInt16Clips(t *testing.T) {
	if got := toInt16(2); got != 32767 {
		t.Errorf("toInt16(2) = %d, want 32767", got)
	}
	if got := toInt16(-2); got != -32768 {
		t.Errorf("toInt16(-2) = %d, want -32768", got)
	}
}

func TestMixerRunEmitsFrames(t *testing.T) {
	m := NewMixer()
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	select {
	case frame := <-m.Frames():
		if len(frame) != FrameSamples {
			t.Errorf("frame length = %d, want %d", len(frame), FrameSamples)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for frame")
	}

	cancel()
	select {
	case <-waitClosed(m.Frames()):
	case <-time.After(2 * time.Second):
		t.Fatal("Mixer did not stop after context cancel")
	}
}

func waitClosed(ch <-chan []int16) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	return done
}
