// Package server exposes the board over a small JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/harrisonrobin/kanban/pkg/export"
	"github.com/harrisonrobin/kanban/pkg/kanban"
)

type Options struct {
	Board          *kanban.Board
	Renderer       *export.Renderer
	Logger         *log.Logger
	AllowedOrigins []string
	Clock          func() time.Time
}

type Server struct {
	board    *kanban.Board
	renderer *export.Renderer
	logger   *log.Logger
	origins  []string
	now      func() time.Time
	router   *mux.Router
}

func New(opts Options) *Server {
	s := &Server{
		board:    opts.Board,
		renderer: opts.Renderer,
		logger:   opts.Logger,
		origins:  opts.AllowedOrigins,
		now:      opts.Clock,
		router:   mux.NewRouter(),
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.loggingMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.handleGetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.handleUpdateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.handleDeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id:[0-9]+}/move", s.handleMoveTask).Methods(http.MethodPost)

	if s.renderer != nil {
		r.HandleFunc("/", s.handleBoardPage).Methods(http.MethodGet)
	}
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	headers := gorillahandlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	methods := gorillahandlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	origins := gorillahandlers.AllowedOrigins(s.origins)
	return gorillahandlers.CORS(headers, methods, origins)(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "origins", s.origins)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// loggingMiddleware logs method, path, status and duration of every request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", rw.statusCode,
			"duration", time.Since(start))
	})
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
