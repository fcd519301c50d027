// Package server exposes the job API over HTTP and a gRPC health service.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kmrl/dochub/internal/async"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/export"
	"github.com/kmrl/dochub/internal/jobs"
)

const defaultMaxUploadBytes = 50 << 20

type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	AllowedOrigins []string
}

type Server struct {
	logger *slog.Logger
	router *chi.Mux

	store    jobs.Store
	queue    async.Queue
	exporter *export.Service
	hub      *Hub

	uploadDir      string
	maxUploadBytes int64
	origins        map[string]struct{}

	now   func() time.Time
	newID func() string
}

func New(cfg Config, store jobs.Store, queue async.Queue, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{
		logger:         logger,
		router:         chi.NewRouter(),
		store:          store,
		queue:          queue,
		exporter:       export.NewService(store, logger),
		hub:            hub,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		origins:        make(map[string]struct{}, len(cfg.AllowedOrigins)),
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = struct{}{}
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestContext)
	s.router.Use(s.corsMiddleware)

	s.router.Post("/upload", s.upload)
	s.router.Get("/tasks", s.listTasks)
	s.router.Get("/tasks/{id}", s.getTask)
	s.router.Get("/tasks/{id}/report", s.getReport)
	s.router.Get("/tasks/{id}/events", s.taskEvents)
	s.router.Get("/export.xlsx", s.exportXLSX)
	s.router.Get("/healthz", s.health)
}

// requestContext copies chi's request id onto the context key used by common.LoggerWith.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(common.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if _, ok := s.origins[origin]; ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("server.health.store_unreachable", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}
	s.respondJSON(w, code, map[string]string{"status": status, "timestamp": s.now().UTC().Format(time.RFC3339)})
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("server.json.encode_failed", "error", err)
	}
}

// respondError maps err to a status code and writes {"detail": message}.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	logger := common.LoggerWith(r.Context(), s.logger)
	if code >= http.StatusInternalServerError {
		logger.Error("server.request.failed", "path", r.URL.Path, "error", err)
	} else {
		logger.Debug("server.request.rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	detail := http.StatusText(code)
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		detail = appErr.Message
	case code < http.StatusInternalServerError:
		detail = err.Error()
	}
	s.respondJSON(w, code, map[string]string{"detail": detail})
}
