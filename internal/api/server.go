// Package api exposes the parameter subsystem over HTTP. Routing is
// chi; every response body is JSON, and errors share one envelope so
// clients can switch on a machine-readable code.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/hierarchy"
	"github.com/modelforge/paramd/internal/history"
	"github.com/modelforge/paramd/internal/params"
	"github.com/modelforge/paramd/internal/resolve"
	"github.com/modelforge/paramd/internal/template"
)

// Deps collects the collaborators the HTTP layer delegates to. Reads go
// straight to the store or resolver; every write goes through the
// service so validation and version recording cannot be bypassed.
type Deps struct {
	Store    params.Store
	Service  *params.Service
	Resolver *resolve.Resolver
	Applier  *template.Applier
	Catalog  *hierarchy.Catalog
	History  *history.Manager
}

// Server routes HTTP requests onto the parameter service, the resolver,
// the template applier, and the entity catalog.
type Server struct {
	deps    Deps
	origins []string
}

// NewServer builds a Server. allowedOrigins feeds the CORS middleware;
// an empty list allows every origin.
func NewServer(deps Deps, allowedOrigins []string) *Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{deps: deps, origins: allowedOrigins}
}

// Router assembles the route tree. Entity ids may contain slashes
// (model ids are supplier/name pairs), so position-addressed operations
// take level and entity_id as query parameters; only the opaque row and
// template ids appear as path segments.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/levels", s.handleLevels)
		r.Get("/resolve", s.handleResolve)

		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", s.handleListParameters)
			r.Post("/", s.handleCreateParameter)
			r.Delete("/", s.handleDeleteAtPosition)
			r.Post("/batch", s.handleBatchUpdate)
			r.Delete("/batch", s.handleBatchDelete)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetParameter)
				r.Put("/", s.handleUpdateParameter)
				r.Delete("/", s.handleDeleteParameter)
				r.Get("/versions", s.handleListVersions)
				r.Post("/revert/{versionID}", s.handleRevert)
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleUpsertTemplate)
			r.Post("/{id}/apply", s.handleApplyTemplate)
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Post("/", s.handleRegisterEntity)
		})
	})

	return r
}

// logRequests emits one structured line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"breaker": s.deps.Resolver.BreakerState().String(),
	})
}
