package sequencer

import (
	"sync"
	"time"
)

// Clock provides the current time and a strictly periodic timer.
type Clock interface {
	Now() time.Time
	// Every calls fn once per interval until the returned stop func is
	// called. Calls to fn never overlap.
	Every(interval time.Duration, fn func()) (stop func())
}

type realClock struct{}

// RealClock is the wall clock backed by time.Ticker.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
