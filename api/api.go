// Package api serves checklist runs and run history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pageprobe/checklist"
	"github.com/hazyhaar/pageprobe/internal/config"
	"github.com/hazyhaar/pageprobe/internal/sink"
	"github.com/hazyhaar/pageprobe/internal/store"
	"github.com/hazyhaar/pageprobe/session"
)

// SessionFactory opens a fresh session for one run.
type SessionFactory func(ctx context.Context) (*session.Session, error)

// Server is the HTTP front end. Runs are executed one at a time.
type Server struct {
	newSession SessionFactory
	store      *store.Store
	sinks      []sink.Sink
	logger     *slog.Logger

	runMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables run history. Without it the history routes answer 503.
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithSink adds a sink receiving every run's outcomes and snapshots.
func WithSink(k sink.Sink) Option {
	return func(s *Server) { s.sinks = append(s.sinks, k) }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(newSession SessionFactory, opts ...Option) *Server {
	s := &Server{newSession: newSession, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(securityHeaders)
	r.Use(requestID(s.logger))
	r.Use(maxBody(1 << 20))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.handleRun)
		r.Group(func(r chi.Router) {
			r.Use(s.requireStore)
			r.Get("/runs", s.handleRecent)
			r.Get("/runs/{id}", s.handleGetRun)
			r.Get("/snapshots/{id}", s.handleSnapshot)
		})
	})
	return r
}

type runRequest struct {
	Pages []config.PageConfig `json:"pages"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if len(req.Pages) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("pages: at least one page is required"))
		return
	}
	cfg := config.Config{Pages: req.Pages}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx := r.Context()
	sess, err := s.newSession(ctx)
	if err != nil {
		s.logger.Error("api: session", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sess.Close()

	sinks := append([]sink.Sink{}, s.sinks...)
	if s.store != nil {
		sinks = append(sinks, s.store.AsSink())
	}
	runner := checklist.New(sess,
		checklist.WithSink(sink.NewRouter(s.logger, sinks...)),
		checklist.WithLogger(s.logger))

	rep, err := runner.Run(ctx, cfg.Pages)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if s.store != nil {
		if err := s.store.SaveRun(ctx, rep); err != nil {
			s.logger.Error("api: save run", "run", rep.RunID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("run history is disabled"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = min(n, 500)
	}
	runs, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.Run(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Source-Hash", snap.SourceHash)
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Source)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
