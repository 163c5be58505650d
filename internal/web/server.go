// Package web provides the HTTP server, JSON API and HTMX pages for
// filtering and exporting table views.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/datagrid/internal/config"
	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/export"
	"github.com/JonMunkholm/datagrid/internal/metrics"
	"github.com/JonMunkholm/datagrid/internal/sink"
	"github.com/JonMunkholm/datagrid/internal/web/middleware"
)

// SourceProvider resolves the row source of a registered table.
type SourceProvider interface {
	Source(table string) (core.RowSource, error)
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Sources SourceProvider
	Engine  *export.Engine
	Jobs    *export.Manager
	Limiter *export.Limiter
	Archive core.DownloadSink  // optional copy of every background export
	Metrics *metrics.Collector // optional
	Health  func() any         // optional extra health details
}

// Server is the HTTP server for the table view application.
type Server struct {
	cfg     *config.Config
	deps    Deps
	views   *ViewStore
	router  *chi.Mux
	server  *http.Server
	limiter *rateLimiter
	exports *rateLimiter

	jobFilesMu sync.Mutex
	jobFiles   map[string]*sink.Memory

	stop context.CancelFunc
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	var observer core.Observer
	if deps.Metrics != nil {
		observer = deps.Metrics
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		views:    NewViewStore(cfg.Server.ViewIdleTimeout, observer),
		router:   chi.NewRouter(),
		jobFiles: make(map[string]*sink.Memory),
		stop:     stop,
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(ctx, cfg.Rate.RequestsPerMinute, time.Minute)
		s.exports = newRateLimiter(ctx, cfg.Rate.ExportLimit, time.Minute)
	}
	if deps.Metrics != nil {
		if err := deps.Metrics.Gauge("view", "mounted", "Table views currently mounted.", s.views.Len); err != nil {
			slog.Warn("views gauge not registered", "error", err)
		}
	}

	go s.views.Run(ctx, time.Minute)

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger("/healthz", s.cfg.Metrics.Path))
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))

	if s.limiter != nil {
		s.router.Use(s.limiter.middleware(s))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/table/{tableKey}", s.handleTablePage)

	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled && s.deps.Metrics != nil {
		s.router.Handle(s.cfg.Metrics.Path, s.deps.Metrics.Handler())
	}

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Get("/tables", s.handleListTables)
		r.Post("/tables/{tableKey}/views", s.handleMountView)

		r.Route("/views/{viewID}", func(r chi.Router) {
			r.Get("/", s.handleViewState)
			r.Delete("/", s.handleUnmountView)
			r.Get("/rows", s.handleRows)

			r.Put("/filters/{columnID}", s.handleSetFilter)
			r.Delete("/filters/{columnID}", s.handleClearFilter)
			r.Put("/search", s.handleSearch)
			r.Post("/reset", s.handleReset)

			r.Get("/facets", s.handleFacets)
			r.Get("/facets/{columnID}", s.handleFacet)
			r.Post("/facets/{columnID}/toggle", s.handleToggleFacet)
			r.Delete("/facets/{columnID}", s.handleClearFacet)

			r.Put("/columns/{columnID}/visibility", s.handleSetVisibility)

			r.Get("/selection", s.handleGetSelection)
			r.Post("/selection", s.handleSelect)
			r.Delete("/selection", s.handleDeselect)

			r.Group(func(r chi.Router) {
				if s.exports != nil {
					r.Use(s.exports.middleware(s))
				}
				r.Post("/export", s.handleExport)
				r.Post("/exports", s.handleStartExportJob)
			})
		})

		r.Get("/exports", s.handleListExportJobs)
		r.Get("/exports/{jobID}", s.handleExportJobStatus)
		r.Delete("/exports/{jobID}", s.handleCancelExportJob)
		r.Get("/exports/{jobID}/download", s.handleDownloadExportJob)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background sweeps.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Views returns the store of mounted views.
func (s *Server) Views() *ViewStore {
	return s.views
}

// writeJSON encodes v as JSON and writes it with status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err, "request_id", chimw.GetReqID(r.Context()))
	}
}

// renderHTML renders a templ component as the response.
func renderHTML(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err, "path", r.URL.Path)
	}
}
