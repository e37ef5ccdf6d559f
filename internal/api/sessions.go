package api

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/10happee/chip/internal/grid"
)

var errSessionNotFound = errors.New("resize session not found")

type sessionEntry struct {
	session *grid.ResizeSession
	seen    time.Time
	closed  bool
}

// sessions holds open resize drags by id. A drag whose client vanished is
// ended after ttl without activity; closed ids linger for another ttl so
// late moves get a clear answer.
type sessions struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	byID map[string]*sessionEntry
}

func newSessions(ttl time.Duration) *sessions {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &sessions{
		ttl:  ttl,
		now:  time.Now,
		byID: make(map[string]*sessionEntry),
	}
}

func (r *sessions) open(s *grid.ResizeSession) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.byID[id] = &sessionEntry{session: s, seen: r.now()}
	return id
}

// get returns the session and marks it active.
func (r *sessions) get(id string) (*grid.ResizeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	e, ok := r.byID[id]
	if !ok {
		return nil, errSessionNotFound
	}
	if !e.closed {
		e.seen = r.now()
	}
	return e.session, nil
}

// close marks the session closed and returns it for the final End.
func (r *sessions) close(id string) (*grid.ResizeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	e, ok := r.byID[id]
	if !ok {
		return nil, errSessionNotFound
	}
	if !e.closed {
		e.closed = true
		e.seen = r.now()
	}
	return e.session, nil
}

func (r *sessions) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *sessions) sweepLocked() {
	now := r.now()
	for id, e := range r.byID {
		if now.Sub(e.seen) < r.ttl {
			continue
		}
		if e.closed {
			delete(r.byID, id)
			continue
		}
		pitch, start := e.session.Note()
		e.session.End()
		e.closed = true
		e.seen = now
		log.Printf("Resize session %s expired (pitch %d step %d)", id, pitch, start)
	}
}
