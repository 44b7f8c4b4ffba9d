// Package server implements the local status server started by
// `graphscout serve`: a small read-only HTTP surface over the history store
// and the annotation backend, useful for dashboards and scripting against a
// running workstation.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/patternlab/graphscout/internal/errors"
	"github.com/patternlab/graphscout/internal/server/middleware"
	"github.com/patternlab/graphscout/pkg/annotation"
	"github.com/patternlab/graphscout/pkg/history"
)

// AnnotationGetter fetches one annotation record from the backend.
type AnnotationGetter interface {
	Get(ctx context.Context, id string) (*annotation.Record, error)
}

// HistoryRefresher produces the merged history view.
type HistoryRefresher interface {
	Refresh(ctx context.Context) []history.Entry
}

// Deps wires the server to the rest of the application.
type Deps struct {
	History     HistoryRefresher
	Annotations AnnotationGetter
	Version     string
	Logger      *zap.Logger
}

// Server is the local status server.
type Server struct {
	host   string
	port   int
	router chi.Router
	deps   Deps
	log    *zap.Logger
}

// New builds a server bound to host:port with all routes registered.
func New(host string, port int, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{host: host, port: port, deps: deps, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.WriteJSON(w, http.StatusNotFound, apperrors.CodeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.WriteJSON(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Get("/history", s.handleHistory)
	r.Get("/jobs/{id}", s.handleJob)

	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.deps.Version})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		apperrors.WriteJSON(w, http.StatusServiceUnavailable, apperrors.CodeInternal, "history store not configured")
		return
	}
	entries := s.deps.History.Refresh(r.Context())
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Annotations == nil {
		apperrors.WriteJSON(w, http.StatusServiceUnavailable, apperrors.CodeInternal, "annotation backend not configured")
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := s.deps.Annotations.Get(r.Context(), id)
	if err != nil {
		status, code := apperrors.FromAPIError(err)
		s.log.Warn("annotation lookup failed", zap.String("id", id), zap.Error(err))
		apperrors.WriteJSON(w, status, code, "annotation lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
