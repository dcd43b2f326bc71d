package httpapi

import (
	"context"
	"net/http"
	"time"

	"statbench/app"
	"statbench/internal"
	"statbench/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the workbench as a JSON API
type Server struct {
	router    *chi.Mux
	workbench *app.WorkbenchService
	source    ports.RowSource
	events    http.Handler
	logger    *internal.Logger
}

// NewServer creates the router and registers every route. events, when non-nil,
// serves the table change stream at /api/events.
func NewServer(workbench *app.WorkbenchService, source ports.RowSource, events http.Handler, logger *internal.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		workbench: workbench,
		source:    source,
		events:    events,
		logger:    logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.events != nil {
		s.router.Handle("/api/events", s.events)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/dataset", s.handleImport)
		r.Delete("/dataset", s.handleClear)
		r.Get("/table", s.handleTable)
		r.Put("/rules", s.handleApplyRules)
		r.Put("/filter", s.handleSetFilter)
		r.Post("/columns", s.handleAddColumn)
		r.Delete("/columns/{name}", s.handleRemoveColumn)
		r.Post("/expressions/validate", s.handleValidateExpression)
		r.Get("/rulesets", s.handleHistory)
		r.Delete("/rulesets/{id}", s.handleDeleteRuleSet)
		r.Get("/report", s.handleReport)
		r.Get("/report.html", s.handleReportHTML)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting statbench API on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down statbench API")
		return srv.Shutdown(shutdownCtx)
	}
}
