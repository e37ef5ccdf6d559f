package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// eventWait coalesces bursts of edits and ticks into one snapshot.
const eventWait = 15 * time.Millisecond

// events pushes state snapshots to server-sent event subscribers.
type events struct {
	snapshot func() State
	debounce func(func())

	mu   sync.Mutex
	subs map[chan State]struct{}
}

func newEvents(snapshot func() State, wait time.Duration) *events {
	return &events{
		snapshot: snapshot,
		debounce: debounce.New(wait),
		subs:     make(map[chan State]struct{}),
	}
}

// notify schedules a publish once changes stop arriving for the wait period.
func (e *events) notify() {
	e.debounce(e.publish)
}

func (e *events) publish() {
	st := e.snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

func (e *events) subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		delete(e.subs, ch)
		e.mu.Unlock()
	}
}

func (e *events) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *events) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := e.subscribe()
	defer unsubscribe()

	if err := writeEvent(w, e.snapshot()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-ch:
			if err := writeEvent(w, st); err != nil {
				log.Printf("Event stream write failed: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}
