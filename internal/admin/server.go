// Package admin exposes the run management interface over HTTP: attack
// registration and removal, run control, status, the latest telemetry
// frame, and Prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"otsim/internal/attack"
	"otsim/internal/sim"
)

// Server wires one engine to the management HTTP surface.
type Server struct {
	engine *sim.Engine
	log    *slog.Logger
	mux    *http.ServeMux
}

func NewServer(engine *sim.Engine, log *slog.Logger) *Server {
	s := &Server{engine: engine, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /attacks", s.handleRegisterAttack)
	s.mux.HandleFunc("GET /attacks", s.handleListAttacks)
	s.mux.HandleFunc("DELETE /attacks/{id}", s.handleRemoveAttack)
	s.mux.HandleFunc("POST /control", s.handleControl)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /telemetry", s.handleTelemetry)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.engine.Metrics().Gatherer(), promhttp.HandlerOpts{}))
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("admin interface listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) handleRegisterAttack(w http.ResponseWriter, r *http.Request) {
	var req attack.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	spec, err := s.engine.RegisterAttack(req)
	if err != nil {
		var verr *attack.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"attack_id": spec.ID,
		"status":    spec.Status,
	})
}

func (s *Server) handleListAttacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Attacks())
}

func (s *Server) handleRemoveAttack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.engine.RemoveAttack(id); err != nil {
		var verr *attack.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusConflict, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type controlRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	switch req.Command {
	case "pause":
		s.engine.Pause()
	case "resume":
		s.engine.Resume()
	case "stop":
		s.engine.Stop()
	default:
		writeError(w, http.StatusBadRequest, "unknown command "+req.Command)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"command": req.Command})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"state":    s.engine.State(),
		"t":        s.engine.Time(),
		"progress": s.engine.Progress(),
	}
	if err := s.engine.Err(); err != nil {
		status["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.engine.LatestFrame()
	if !ok {
		writeError(w, http.StatusNotFound, "no telemetry yet")
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
