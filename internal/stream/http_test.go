package stream

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/10happee/chip/internal/audio"
)

func TestWAVHeader(t *testing.T) {
	h := WAVHeader()
	if len(h) != 44 {
		t.Fatalf("header length = %d, want 44", len(h))
	}
	for off, want := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if got := string(h[off : off+4]); got != want {
			t.Errorf("chunk id at %d = %q, want %q", off, got, want)
		}
	}
	if got := binary.LittleEndian.Uint16(h[22:]); got != audio.Channels {
		t.Errorf("channels = %d, want %d", got, audio.Channels)
	}
	if got := binary.LittleEndian.Uint32(h[24:]); got != audio.SampleRate {
		t.Errorf("sample rate = %d, want %d", got, audio.SampleRate)
	}
	if got := binary.LittleEndian.Uint32(h[28:]); got != audio.SampleRate*4 {
		t.Errorf("byte rate = %d, want %d", got, audio.SampleRate*4)
	}
	if got := binary.LittleEndian.Uint16(h[34:]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
}

func TestHTTPStreamWritesHeaderThenFrames(t *testing.T) {
	b := NewBroadcaster()
	source := make(chan []int16, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, source)

	reqCtx, reqCancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		NewHTTPHandler(b).ServeHTTP(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ListenerCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("listener never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	source <- []int16{1, -1}
	time.Sleep(50 * time.Millisecond)
	reqCancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after request cancel")
	}

	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}
	body := rec.Body.Bytes()
	if len(body) != 48 {
		t.Fatalf("body length = %d, want 44 header + 4 sample bytes", len(body))
	}
	if got := int16(binary.LittleEndian.Uint16(body[46:])); got != -1 {
		t.Errorf("second sample = %d, want -1", got)
	}
	if b.ListenerCount() != 0 {
		t.Errorf("listener not unsubscribed: %d", b.ListenerCount())
	}
}
