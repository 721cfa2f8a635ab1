// Package api exposes the operator-facing HTTP control surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/telemetry"
)

// Runner is the pipeline boundary the server triggers.
type Runner interface {
	// Run performs a full refresh followed by normalize-and-sync.
	Run(ctx context.Context) (int, error)
	// Process normalizes the staged batch and syncs the store.
	Process(ctx context.Context) (int, error)
}

// RunState describes the most recent (or in-flight) pipeline run.
type RunState struct {
	RunID      string     `json:"run_id,omitempty"`
	Kind       string     `json:"kind,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	NewRecords int        `json:"new_records"`
	Error      string     `json:"error,omitempty"`
}

// Server wires HTTP handlers to the pipeline. Only one run may be in flight
// at a time; concurrent triggers get 409.
type Server struct {
	router chi.Router
	runner Runner
	logger *zap.Logger

	mu    sync.Mutex
	busy  bool
	state RunState
}

// NewServer constructs a Server with routes installed.
func NewServer(runner Runner, logger *zap.Logger) *Server {
	s := &Server{runner: runner, logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/refresh", s.triggerRefresh)
		r.Post("/sync", s.triggerSync)
		r.Get("/status", s.status)
	})
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := struct {
		Busy bool     `json:"busy"`
		Last RunState `json:"last_run"`
	}{Busy: s.busy, Last: s.state}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) triggerRefresh(w http.ResponseWriter, _ *http.Request) {
	s.trigger(w, "refresh", s.runner.Run)
}

func (s *Server) triggerSync(w http.ResponseWriter, _ *http.Request) {
	s.trigger(w, "sync", s.runner.Process)
}

// trigger starts fn in the background unless a run is already in flight.
func (s *Server) trigger(w http.ResponseWriter, kind string, fn func(context.Context) (int, error)) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	runID := uuid.NewString()
	now := time.Now().UTC()
	s.busy = true
	s.state = RunState{RunID: runID, Kind: kind, StartedAt: &now}
	s.mu.Unlock()

	go func() {
		count, err := fn(context.Background())
		finished := time.Now().UTC()

		s.mu.Lock()
		s.busy = false
		s.state.FinishedAt = &finished
		s.state.NewRecords = count
		if err != nil {
			s.state.Error = err.Error()
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("pipeline run failed",
				zap.String("run_id", runID),
				zap.String("kind", kind),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("pipeline run finished",
			zap.String("run_id", runID),
			zap.String("kind", kind),
			zap.Int("records", count),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
