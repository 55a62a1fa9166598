// Package server exposes the talenthub pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/xlsmart/talenthub/internal/metrics"
	"github.com/xlsmart/talenthub/internal/service"
	"github.com/xlsmart/talenthub/internal/store"
)

// maxUploadBytes bounds request bodies, spreadsheets included.
const maxUploadBytes = 32 << 20

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Pipeline *service.Pipeline
	Store    store.Store
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	// Health reports backend reachability for /health. Optional.
	Health func(ctx context.Context) error
	// WatchInterval is how often a websocket watcher re-reads its session.
	WatchInterval time.Duration
	Version       string
}

// Server routes HTTP requests onto the pipeline.
type Server struct {
	deps     Deps
	router   *mux.Router
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.WatchInterval <= 0 {
		deps.WatchInterval = time.Second
	}
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		logger: deps.Logger.With("component", "http"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(RecoverMiddleware(s.logger), LoggingMiddleware(s.logger), CORSMiddleware)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Methods(http.MethodOptions).HandlerFunc(preflight)
	api.HandleFunc("/stats", s.stats).Methods(http.MethodGet)

	api.HandleFunc("/uploads/employees", s.requireUser(s.uploadEmployees)).Methods(http.MethodPost)
	api.HandleFunc("/uploads/roles", s.requireUser(s.uploadRoles)).Methods(http.MethodPost)

	api.HandleFunc("/sessions", s.listSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/watch", s.watchSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/assign-roles", s.requireUser(s.assignSessionRoles)).Methods(http.MethodPost)

	api.HandleFunc("/employees", s.listEmployees).Methods(http.MethodGet)
	api.HandleFunc("/employees/assign-roles", s.requireUser(s.bulkAssign)).Methods(http.MethodPost)
	api.HandleFunc("/employees/assess-skills", s.requireUser(s.assessSkills)).Methods(http.MethodPost)
	api.HandleFunc("/employees/{id}", s.getEmployee).Methods(http.MethodGet)
	api.HandleFunc("/employees/{id}/role", s.requireUser(s.assignRole)).Methods(http.MethodPut)

	api.HandleFunc("/roles", s.listRoles).Methods(http.MethodGet)
	api.HandleFunc("/roles", s.requireUser(s.seedRoles)).Methods(http.MethodPost)
	api.HandleFunc("/roles/mappings", s.listMappings).Methods(http.MethodGet)
	api.HandleFunc("/roles/{id}/job-description", s.requireUser(s.generateJobDescription)).Methods(http.MethodPost)
	api.HandleFunc("/roles/{id}/job-descriptions", s.listJobDescriptions).Methods(http.MethodGet)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, envelope{"success": false, "error": err.Error()})
			return
		}
	}
	writeOK(w, envelope{"status": "ok", "version": s.deps.Version})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeOK(w, envelope{
		"stats":   s.deps.Metrics.Snapshot(),
		"running": s.deps.Pipeline.Sessions().Running(),
	})
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// and stops the session runners.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server forced to shutdown", "error", err)
	}
	if err := s.deps.Pipeline.Sessions().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stop session runners: %w", err)
	}
	return nil
}
