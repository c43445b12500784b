package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// UserHeader carries the caller's identity on query routes.
const UserHeader = "X-User-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrMissingPorts is returned when a required service is not provided.
var ErrMissingPorts = errors.New("httpapi: processor, search, query and task runner are required")

// Ports aggregates the services the HTTP API drives.
type Ports struct {
	Processor driving.DocumentProcessor
	Search    driving.SearchService
	Query     driving.QueryService
	Tasks     *services.TaskRunner
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Processor == nil || p.Search == nil || p.Query == nil || p.Tasks == nil {
		return ErrMissingPorts
	}
	return nil
}

// Server serves the HTTP API.
type Server struct {
	ports *Ports
	mux   *http.ServeMux

	tasksCompleted atomic.Int64
	tasksFailed    atomic.Int64
}

// NewServer creates a server with all routes registered.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	s := &Server{ports: ports, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /documents/{id}/process", s.handleProcess)
	s.mux.HandleFunc("POST /documents/{id}/reprocess", s.handleReprocess)
	s.mux.HandleFunc("GET /documents/{id}/status", s.handleStatus)
	s.mux.HandleFunc("GET /documents/{id}/chunks", s.handleChunks)
	s.mux.HandleFunc("POST /projects/{id}/reindex", s.handleReindex)

	s.mux.HandleFunc("POST /search/vector", s.handleSearch)
	s.mux.HandleFunc("POST /search/keyword", s.handleSearch)
	s.mux.HandleFunc("POST /search/hybrid", s.handleSearch)
	s.mux.HandleFunc("POST /search/similar", s.handleSimilar)
	s.mux.HandleFunc("POST /search/similar-queries", s.handleSimilar)

	s.mux.HandleFunc("POST /queries", s.withUser(s.handleSubmitQuery))
	s.mux.HandleFunc("GET /queries/{id}", s.withUser(s.handleGetQuery))
	s.mux.HandleFunc("DELETE /queries/{id}", s.withUser(s.handleDeleteQuery))
	s.mux.HandleFunc("POST /queries/{id}/responses/{rid}/feedback", s.withUser(s.handleFeedback))
	s.mux.HandleFunc("GET /projects/{id}/queries", s.withUser(s.handleListQueries))
}

// Handler returns the root handler with request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.logRequests(s.mux))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// Background task results are tallied for the health route while it runs.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.observeTasks(ctx)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("HTTP API listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) observeTasks(ctx context.Context) {
	results := s.ports.Tasks.Results()
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-results:
			s.recordTask(res)
		}
	}
}

func (s *Server) recordTask(res services.TaskResult) {
	if res.Err != nil {
		s.tasksFailed.Add(1)
		return
	}
	s.tasksCompleted.Add(1)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tasks": map[string]int64{
			"completed": s.tasksCompleted.Load(),
			"failed":    s.tasksFailed.Load(),
		},
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Panic serving %s %s: %v", r.Method, r.URL.Path, p)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

// withUser rejects requests without a caller identity.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + UserHeader + " header"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	}
}

func userFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey{}).(string)
	return user
}
