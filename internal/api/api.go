// Package api serves the status, monitor and summary views as JSON.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/daimoniac/pkgstatus/internal/api/docs" // Register swagger docs
	"github.com/daimoniac/pkgstatus/internal/config"
	"github.com/daimoniac/pkgstatus/internal/monitor"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
)

// @title pkgstatus API
// @version 1.0
// @description Build status views of a build service: project status with failures,
// @description devel divergence and pending requests, the repository by architecture
// @description monitor grid and the build summary.
// @description
// @description Send `Cache-Control: no-cache` to bypass cached data.

// @contact.name pkgstatus
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter your API key (with or without "Bearer " prefix)

// StatusAssembler builds project status views
type StatusAssembler interface {
	Assemble(ctx context.Context, opts projectstatus.Options) (*projectstatus.View, error)
}

// GridBuilder builds monitor grids and build summaries
type GridBuilder interface {
	Build(ctx context.Context, q monitor.Query) (*monitor.Grid, error)
	PackageResults(ctx context.Context, project, pkg string) (*monitor.Grid, error)
	Summary(ctx context.Context, project string) (*monitor.Summary, error)
}

// CacheInvalidator drops cached entries by key prefix
type CacheInvalidator interface {
	Invalidate(ctx context.Context, prefix string) (int, error)
}

// APIServer provides the HTTP API for the status views
type APIServer struct {
	config *config.APIConfig
	status StatusAssembler
	grids  GridBuilder
	cache  CacheInvalidator
	health *observability.HealthChecker
	router *mux.Router
	server *http.Server
	logger *slog.Logger
}

// NewAPIServer creates a new API server instance. health may be nil.
func NewAPIServer(cfg *config.APIConfig, status StatusAssembler, grids GridBuilder, cache CacheInvalidator, health *observability.HealthChecker, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	api := &APIServer{
		config: cfg,
		status: status,
		grids:  grids,
		cache:  cache,
		health: health,
		router: mux.NewRouter(),
		logger: logger,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return api
}

// Handler returns the routed handler, used by tests and embedding servers
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.Use(s.requestLogMiddleware, corsMiddleware, cacheControlMiddleware)

	s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.authMiddleware)

	// Views (GET)
	v1.HandleFunc("/projects/{project}/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{project}/monitor", s.handleMonitor).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{project}/summary", s.handleSummary).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{project}/packages/{package}/results", s.handlePackageResults).Methods(http.MethodGet)

	// Actions (POST)
	v1.HandleFunc("/cache/invalidate", s.handleInvalidate).Methods(http.MethodPost)

	// Health
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Swagger documentation
	s.router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Redirect root to swagger
	s.router.HandleFunc("/", s.handleRootRedirect)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Start starts the API server
func (s *APIServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("API server is disabled")
		return nil
	}

	s.logger.Info("starting API server",
		"port", s.config.Port)

	// Start server in a goroutine
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error",
				"error", err.Error())
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down API server")
	return s.server.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the API server
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// respondJSON sends a JSON response
func (s *APIServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("error encoding JSON response",
			"error", err.Error())
	}
}

// respondError sends an error response
func (s *APIServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

// handleRootRedirect redirects / to /swagger/
func (s *APIServer) handleRootRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
}
