// Package api exposes the sequencer to the browser as a JSON control surface.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/10happee/chip/internal/grid"
	"github.com/10happee/chip/internal/sequencer"
	"github.com/10happee/chip/internal/tone"
)

// Variant names.
const (
	VariantFlat = "flat"
	VariantRoll = "roll"
)

// Options wires a Server to one grid. Exactly one of Steps or Roll is set.
type Options struct {
	Steps      *grid.Steps
	Roll       *grid.Roll
	CellSize   float64       // pixels per step for resize drags
	SessionTTL time.Duration // idle resize sessions are ended after this
}

// State is the snapshot the UI renders from.
type State struct {
	Variant string      `json:"variant"`
	Steps   int         `json:"steps"`
	Pitches int         `json:"pitches,omitempty"`
	Active  []bool      `json:"active,omitempty"`
	Notes   []grid.Note `json:"notes,omitempty"`
	Playing bool        `json:"playing"`
	Step    int         `json:"step"`  // next step the scheduler will play
	Tempo   int         `json:"tempo"` // tempo the next start reads
	Timbre  tone.Timbre `json:"timbre"`
}

// Server handles the control API.
type Server struct {
	sched    *sequencer.Scheduler
	steps    *grid.Steps
	roll     *grid.Roll
	cellSize float64

	sessions *sessions
	events   *events
}

// New creates a Server. It registers itself as the scheduler's tick observer
// so subscribers see the step pointer move.
func New(sched *sequencer.Scheduler, opts Options) *Server {
	cellSize := opts.CellSize
	if cellSize <= 0 {
		cellSize = 32
	}
	s := &Server{
		sched:    sched,
		steps:    opts.Steps,
		roll:     opts.Roll,
		cellSize: cellSize,
		sessions: newSessions(opts.SessionTTL),
	}
	s.events = newEvents(s.State, eventWait)
	sched.SetOnTick(func(int) { s.events.notify() })
	return s
}

// Variant reports which grid the server edits.
func (s *Server) Variant() string {
	if s.roll != nil {
		return VariantRoll
	}
	return VariantFlat
}

// Subscribers returns the number of open event streams.
func (s *Server) Subscribers() int {
	return s.events.count()
}

// State returns the current snapshot.
func (s *Server) State() State {
	tr := s.sched.Transport()
	st := State{
		Variant: s.Variant(),
		Playing: tr.State == sequencer.Playing,
		Step:    tr.Step,
		Tempo:   s.sched.Tempo(),
		Timbre:  s.sched.Timbre(),
	}
	if s.roll != nil {
		st.Steps = s.roll.Len()
		st.Pitches = s.roll.Pitches()
		st.Notes = s.roll.Notes()
	} else {
		st.Steps = s.steps.Len()
		st.Active = s.steps.Snapshot()
	}
	return st
}

// Routes registers the API on r. Grid routes are only registered for the
// active variant.
func (s *Server) Routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.Handle("/events", s.events).Methods(http.MethodGet)

	api.HandleFunc("/transport/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/transport/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/tempo", s.handleTempo).Methods(http.MethodPut)
	api.HandleFunc("/timbre", s.handleTimbre).Methods(http.MethodPut)

	if s.roll != nil {
		api.HandleFunc("/notes", s.handleToggleNote).Methods(http.MethodPost)
		api.HandleFunc("/notes/{pitch:[0-9]+}/{start:[0-9]+}", s.handleResizeNote).Methods(http.MethodPatch)
		api.HandleFunc("/resize", s.handleBeginResize).Methods(http.MethodPost)
		api.HandleFunc("/resize/{id}", s.handleUpdateResize).Methods(http.MethodPut)
		api.HandleFunc("/resize/{id}", s.handleEndResize).Methods(http.MethodDelete)
	} else {
		api.HandleFunc("/steps/{index:[0-9]+}", s.handleToggleStep).Methods(http.MethodPost)
	}
}

// Handler returns the API behind permissive CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	s.Routes(r)
	return CORS(r)
}

// CORS allows any origin to drive the API.
func CORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete,
		},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(h)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State())
}

func (s *Server) handleToggleStep(w http.ResponseWriter, r *http.Request) {
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	active, err := s.steps.Toggle(index)
	if err != nil {
		writeError(w, err)
		return
	}
	s.events.notify()
	writeJSON(w, http.StatusOK, map[string]any{"index": index, "active": active})
}

func (s *Server) handleToggleNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pitch *int `json:"pitch"`
		Step  *int `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pitch == nil || req.Step == nil {
		http.Error(w, "pitch and step required", http.StatusBadRequest)
		return
	}
	notes, err := s.roll.Toggle(*req.Pitch, *req.Step)
	if err != nil {
		writeError(w, err)
		return
	}
	s.events.notify()
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) handleResizeNote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pitch, _ := strconv.Atoi(vars["pitch"])
	start, _ := strconv.Atoi(vars["start"])

	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	note, err := s.roll.Resize(pitch, start, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	s.events.notify()
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleBeginResize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pitch int     `json:"pitch"`
		Start int     `json:"start"`
		X     float64 `json:"x"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	sess, err := s.roll.BeginResize(req.Pitch, req.Start, s.cellSize, req.X)
	if err != nil {
		writeError(w, err)
		return
	}
	id := s.sessions.open(sess)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleUpdateResize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	sess, err := s.sessions.get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	delta, err := sess.Update(req.X)
	if err != nil {
		writeError(w, err)
		return
	}
	if delta != 0 {
		s.events.notify()
	}
	pitch, start := sess.Note()
	note, _ := s.roll.Lookup(pitch, start)
	writeJSON(w, http.StatusOK, map[string]any{"delta": delta, "note": note})
}

func (s *Server) handleEndResize(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.close(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	note, err := sess.End()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tempo *json.Number `json:"tempo"`
	}
	// the body is optional
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Tempo != nil {
		bpm, err := sequencer.ParseTempo(req.Tempo.String())
		if err != nil {
			writeError(w, err)
			return
		}
		s.sched.SetTempo(bpm)
	}
	if err := s.sched.Start(); err != nil {
		writeError(w, err)
		return
	}
	s.events.notify()
	writeJSON(w, http.StatusOK, s.State())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.sched.Stop()
	s.events.notify()
	writeJSON(w, http.StatusOK, s.State())
}

func (s *Server) handleTempo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tempo json.Number `json:"tempo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	bpm, err := sequencer.ParseTempo(req.Tempo.String())
	if err != nil {
		writeError(w, err)
		return
	}
	s.sched.SetTempo(bpm)
	s.events.notify()
	writeJSON(w, http.StatusOK, s.State())
}

func (s *Server) handleTimbre(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timbre string `json:"timbre"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	t, err := tone.ParseTimbre(req.Timbre)
	if err == nil {
		err = s.sched.SetTimbre(t)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.events.notify()
	writeJSON(w, http.StatusOK, s.State())
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, grid.ErrOutOfRange),
		errors.Is(err, sequencer.ErrInvalidConfiguration),
		errors.Is(err, tone.ErrUnknownTimbre):
		return http.StatusBadRequest
	case errors.Is(err, grid.ErrNoteNotFound),
		errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("API error: %v", err)
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API encode failed: %v", err)
	}
}
