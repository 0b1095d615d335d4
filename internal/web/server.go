// Package web provides the HTTP API for the clockworkd daemon: daemon
// status, calculation management, calendar passthrough, and metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/clockwork-home/clockworkd/internal/calc"
	"github.com/clockwork-home/clockworkd/internal/calendar"
	"github.com/clockwork-home/clockworkd/internal/config"
	"github.com/clockwork-home/clockworkd/internal/engine"
	"github.com/clockwork-home/clockworkd/internal/status"
)

// Engine is the calculation surface the API needs.
type Engine interface {
	Register(def calc.Definition, now time.Time) error
	Deregister(id string) error
	ResetLatch(id string, now time.Time) error
	Statuses() []engine.Status
}

// Calendar is the event surface forwarded to the upstream provider.
type Calendar interface {
	Events(ctx context.Context, start, end time.Time) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, ev calendar.Event) (calendar.Event, error)
	UpdateEvent(ctx context.Context, id string, ev calendar.Event) (calendar.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	DeleteEventsInRange(ctx context.Context, start, end time.Time) (int, error)
}

// Server serves the daemon API over HTTP.
type Server struct {
	httpServer *http.Server
	engine     Engine
	tracker    *status.Tracker
	calendar   Calendar
	now        func() time.Time
}

// Options configures a Server. Calendar may be nil to disable the calendar
// routes; Metrics may be nil to disable /metrics.
type Options struct {
	Addr     string
	Engine   Engine
	Tracker  *status.Tracker
	Calendar Calendar
	Metrics  http.Handler
	Now      func() time.Time
}

// New creates a Server with the API routes mounted.
func New(opts Options) *Server {
	s := &Server{
		engine:   opts.Engine,
		tracker:  opts.Tracker,
		calendar: opts.Calendar,
		now:      opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/calculations", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/calculations", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/calculations/{id}", s.handleDeregister).Methods(http.MethodDelete)
	r.HandleFunc("/api/calculations/{id}/reset", s.handleReset).Methods(http.MethodPost)

	if s.calendar != nil {
		r.HandleFunc("/api/calendar/events", s.handleCalendarList).Methods(http.MethodGet)
		r.HandleFunc("/api/calendar/events", s.handleCalendarCreate).Methods(http.MethodPost)
		r.HandleFunc("/api/calendar/events", s.handleCalendarDeleteRange).Methods(http.MethodDelete)
		r.HandleFunc("/api/calendar/events/{id}", s.handleCalendarUpdate).Methods(http.MethodPut)
		r.HandleFunc("/api/calendar/events/{id}", s.handleCalendarDelete).Methods(http.MethodDelete)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:    opts.Addr,
		Handler: handlers.CombinedLoggingHandler(os.Stdout, handlers.RecoveryHandler()(r)),
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the route tree, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildStatus(s.tracker.Snapshot()))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	statuses := s.engine.Statuses()
	writeJSON(w, http.StatusOK, map[string]any{"calculations": statuses})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var entry config.Calculation
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	def, err := entry.Definition()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Register(def, s.now()); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, engine.ErrDuplicateID) {
			code = http.StatusConflict
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": def.ID})
}

func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.Deregister(id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.ResetLatch(id, s.now()); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// timeRange pulls the start/end query parameters.
func timeRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

func (s *Server) handleCalendarList(w http.ResponseWriter, r *http.Request) {
	start, end, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	events, err := s.calendar.Events(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleCalendarCreate(w http.ResponseWriter, r *http.Request) {
	var ev calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	created, err := s.calendar.CreateEvent(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCalendarUpdate(w http.ResponseWriter, r *http.Request) {
	var ev calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	updated, err := s.calendar.UpdateEvent(r.Context(), mux.Vars(r)["id"], ev)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleCalendarDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.calendar.DeleteEvent(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCalendarDeleteRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := s.calendar.DeleteEventsInRange(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
