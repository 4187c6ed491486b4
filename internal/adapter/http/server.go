// Package http serves playback control, flow frames, health probes and
// metrics over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/flow"
	"github.com/couchcryptid/flood-grid-playback/internal/pipeline"
	"github.com/couchcryptid/flood-grid-playback/internal/playback"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PlaybackControl is the subset of playback.Controller the API drives.
type PlaybackControl interface {
	Snapshot() playback.State
	Toggle() bool
	SelectIndex(i int) bool
}

// FrameSource exposes the animation state.
type FrameSource interface {
	Frame() flow.FrameState
	FrameAt(frame uint64) flow.FrameState
}

// SnapshotView exposes the applied snapshot and the overlay toggle.
type SnapshotView interface {
	sharedobs.ReadinessChecker
	Current() (pipeline.Applied, bool)
	SetVisible(visible bool)
}

// Dependencies are the components the server routes to. Stream may be nil.
type Dependencies struct {
	Playback  PlaybackControl
	Frames    FrameSource
	Snapshots SnapshotView
	Stream    http.Handler
}

// Server exposes the dashboard API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Dependencies
	logger     *slog.Logger
}

type selectRequest struct {
	Index *int `json:"index"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

// NewServer creates an HTTP server with the API, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, deps Dependencies, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Snapshots))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/timesteps", s.handleTimesteps)
	mux.HandleFunc("GET /api/v1/playback", s.handlePlayback)
	mux.HandleFunc("POST /api/v1/playback/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/v1/playback/select", s.handleSelect)
	mux.HandleFunc("PUT /api/v1/flow/visibility", s.handleVisibility)
	mux.HandleFunc("GET /api/v1/flow/frame", s.handleFrame)
	mux.HandleFunc("GET /api/v1/snapshot", s.handleSnapshot)
	if deps.Stream != nil {
		mux.Handle("GET /api/v1/stream", deps.Stream)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleTimesteps(w http.ResponseWriter, _ *http.Request) {
	state := s.deps.Playback.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"timesteps": state.Timesteps})
}

func (s *Server) handlePlayback(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, playbackView(s.deps.Playback.Snapshot()))
}

func (s *Server) handleToggle(w http.ResponseWriter, _ *http.Request) {
	playing := s.deps.Playback.Toggle()
	s.logger.Info("playback toggled", "playing", playing)
	writeJSON(w, http.StatusOK, playbackView(s.deps.Playback.Snapshot()))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"index\": <int>}")
		return
	}
	if !s.deps.Playback.SelectIndex(*req.Index) {
		writeError(w, http.StatusUnprocessableEntity, "index out of range")
		return
	}
	writeJSON(w, http.StatusOK, playbackView(s.deps.Playback.Snapshot()))
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Visible == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"visible\": <bool>}")
		return
	}
	s.deps.Snapshots.SetVisible(*req.Visible)
	writeJSON(w, http.StatusOK, map[string]bool{"visible": *req.Visible})
}

// handleFrame returns the current frame, or a specific one via ?frame=N.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("frame")
	if raw == "" {
		writeJSON(w, http.StatusOK, s.deps.Frames.Frame())
		return
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "frame must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Frames.FrameAt(n))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	applied, ok := s.deps.Snapshots.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot applied yet")
		return
	}
	writeJSON(w, http.StatusOK, applied)
}

// playbackView drops the full sequence from the state; clients fetch it once
// from /api/v1/timesteps.
func playbackView(state playback.State) playback.State {
	state.Timesteps = nil
	return state
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
