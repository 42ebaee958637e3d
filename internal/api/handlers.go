package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/daimoniac/pkgstatus/internal/cache"
)

// respondViewError logs a failed view and answers with the mapped status
func (s *APIServer) respondViewError(w http.ResponseWriter, r *http.Request, view string, err error) {
	status := statusForError(err)
	s.logger.Warn("view failed",
		"request_id", RequestID(r.Context()),
		"view", view,
		"status", status,
		"error", err)
	s.respondError(w, status, fmt.Sprintf("Failed to build %s view: %v", view, err))
}

// handleStatus returns the project status view
// @Summary Project status
// @Description Packages of a project with current failures, devel divergence, pending requests and newer upstream versions
// @Tags Views
// @Produce json
// @Param project path string true "Project name"
// @Param filter_devel query string false "Devel project, 'All Packages' or 'No Project'" default(All Packages)
// @Param ignore_pending query boolean false "Hide packages with pending submit requests"
// @Param limit_to_fails query boolean false "Only packages with a current failure" default(true)
// @Param include_versions query boolean false "Report newer upstream versions" default(true)
// @Param expr query string false "CEL expression narrowing the records"
// @Success 200 {object} projectstatus.View
// @Failure 400 {object} ErrorResponse "Invalid expression"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 503 {object} ErrorResponse "Backend unavailable"
// @Failure 504 {object} ErrorResponse "Backend timeout"
// @Security BearerAuth
// @Router /projects/{project}/status [get]
func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	view, err := s.status.Assemble(r.Context(), statusOptions(r, project))
	if err != nil {
		s.respondViewError(w, r, "status", err)
		return
	}

	s.respondJSON(w, http.StatusOK, view)
}

// handleMonitor returns the monitor grid
// @Summary Build monitor
// @Description Package build status by repository and architecture
// @Tags Views
// @Produce json
// @Param project path string true "Project name"
// @Param pkgname query string false "Package name filter, comma separated, '!' negates"
// @Param lastbuild query string false "Only the last build of each package"
// @Param defaults query int false "0 turns the default status, arch and repo selection off"
// @Param failed query int false "Include (1) or exclude (0) a status; every build status works the same way"
// @Success 200 {object} monitor.Grid
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Project not found"
// @Failure 503 {object} ErrorResponse "Backend unavailable"
// @Failure 504 {object} ErrorResponse "Backend timeout"
// @Security BearerAuth
// @Router /projects/{project}/monitor [get]
func (s *APIServer) handleMonitor(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	grid, err := s.grids.Build(r.Context(), monitorQuery(r, project))
	if err != nil {
		s.respondViewError(w, r, "monitor", err)
		return
	}

	s.respondJSON(w, http.StatusOK, grid)
}

// handleSummary returns the build summary
// @Summary Build summary
// @Description State of every repository and architecture with status counts
// @Tags Views
// @Produce json
// @Param project path string true "Project name"
// @Success 200 {object} monitor.Summary
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 503 {object} ErrorResponse "Backend unavailable"
// @Failure 504 {object} ErrorResponse "Backend timeout"
// @Security BearerAuth
// @Router /projects/{project}/summary [get]
func (s *APIServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	summary, err := s.grids.Summary(r.Context(), project)
	if err != nil {
		s.respondViewError(w, r, "summary", err)
		return
	}

	s.respondJSON(w, http.StatusOK, summary)
}

// handlePackageResults returns the build results of one package
// @Summary Package build results
// @Description Last build status of one package in every repository and architecture
// @Tags Views
// @Produce json
// @Param project path string true "Project name"
// @Param package path string true "Package name"
// @Success 200 {object} monitor.Grid
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 503 {object} ErrorResponse "Backend unavailable"
// @Failure 504 {object} ErrorResponse "Backend timeout"
// @Security BearerAuth
// @Router /projects/{project}/packages/{package}/results [get]
func (s *APIServer) handlePackageResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	grid, err := s.grids.PackageResults(r.Context(), vars["project"], vars["package"])
	if err != nil {
		s.respondViewError(w, r, "package results", err)
		return
	}

	s.respondJSON(w, http.StatusOK, grid)
}

// handleInvalidate drops cached entries
// @Summary Invalidate cache
// @Description Drop cached entries by key prefix or for a whole project
// @Tags Cache
// @Accept json
// @Produce json
// @Param request body InvalidateRequest true "Entries to drop"
// @Success 200 {object} InvalidateResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Cache failure"
// @Security BearerAuth
// @Router /cache/invalidate [post]
func (s *APIServer) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if (req.Prefix == "") == (req.Project == "") {
		s.respondError(w, http.StatusBadRequest, "Exactly one of prefix or project is required")
		return
	}

	prefixes := []string{req.Prefix}
	if req.Project != "" {
		prefixes = cache.ProjectPrefixes(req.Project)
	}

	removed := 0
	for _, prefix := range prefixes {
		n, err := s.cache.Invalidate(r.Context(), prefix)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to invalidate cache: %v", err))
			return
		}
		removed += n
	}

	s.logger.Info("cache invalidated",
		"request_id", RequestID(r.Context()),
		"prefix", req.Prefix,
		"project", req.Project,
		"removed", removed)

	s.respondJSON(w, http.StatusOK, InvalidateResponse{Removed: removed})
}

// handleHealth returns the service health
// @Summary Health check
// @Description Health of the service and its components
// @Tags Health
// @Produce json
// @Success 200 {object} observability.HealthStatus
// @Failure 503 {object} observability.HealthStatus
// @Router /health [get]
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	s.health.HealthHandler()(w, r)
}
