package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// backlog is how many mixer frames a listener may fall behind (3s at 20ms).
const backlog = 150

// Listener is one audio consumer, a WebRTC peer or a WAV client.
type Listener struct {
	frames  chan []int16
	done    chan struct{}
	dropped atomic.Uint64
}

// Frames delivers mixer frames in render order, with gaps where frames
// were dropped.
func (l *Listener) Frames() <-chan []int16 { return l.frames }

// Done is closed once the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Dropped counts frames skipped because the listener was behind.
func (l *Listener) Dropped() uint64 { return l.dropped.Load() }

func (l *Listener) offer(frame []int16) {
	select {
	case l.frames <- frame:
	default:
		l.dropped.Add(1)
	}
}

// Broadcaster copies every frame the mixer renders to all listeners. The
// mixer is never held back by a listener.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	sent      atomic.Uint64
}

// NewBroadcaster creates a broadcaster with no listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[*Listener]struct{})}
}

// Subscribe adds a listener that receives frames from the next one on.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		frames: make(chan []int16, backlog),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe detaches l and closes its Done channel. Repeat calls are
// ignored.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of attached listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Sent returns how many frames have been fanned out.
func (b *Broadcaster) Sent() uint64 { return b.sent.Load() }

// Run fans out frames from the mixer until ctx ends or the mixer closes
// its frame channel.
func (b *Broadcaster) Run(ctx context.Context, mixed <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-mixed:
			if !ok {
				return
			}
			b.publish(frame)
		}
	}
}

func (b *Broadcaster) publish(frame []int16) {
	b.mu.RLock()
	for l := range b.listeners {
		l.offer(frame)
	}
	b.mu.RUnlock()
	b.sent.Add(1)
}
