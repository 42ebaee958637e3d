package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ComponentStatus represents the health status of a component
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
	StatusUnknown   ComponentStatus = "unknown"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	Optional  bool            `json:"optional,omitempty"`
	LastCheck time.Time       `json:"last_check"`
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// HealthChecker tracks component health.
//
// A failing required component (the cache store) makes the service unhealthy.
// A failing optional component (the build backend) only degrades it: cached
// views are still served while the backend is away.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	logger     *slog.Logger
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		logger:     logger,
	}
}

// RegisterComponent registers a required component
func (h *HealthChecker) RegisterComponent(name string) {
	h.register(name, false)
}

// RegisterOptionalComponent registers a component whose failure only degrades the service
func (h *HealthChecker) RegisterOptionalComponent(name string) {
	h.register(name, true)
}

func (h *HealthChecker) register(name string, optional bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = ComponentHealth{
		Status:    StatusUnknown,
		Optional:  optional,
		LastCheck: time.Now(),
	}
}

// UpdateComponentHealth updates the health status of a component
func (h *HealthChecker) UpdateComponentHealth(name string, status ComponentStatus, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.components[name]
	h.components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Optional:  previous.Optional,
		LastCheck: time.Now(),
	}
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(h.components))
	status := StatusHealthy

	for name, health := range h.components {
		components[name] = health
		if health.Status == StatusHealthy {
			continue
		}
		if health.Optional {
			if status == StatusHealthy {
				status = StatusDegraded
			}
			continue
		}
		status = StatusUnhealthy
	}

	return HealthStatus{
		Status:     status,
		Components: components,
		Timestamp:  time.Now(),
	}
}

// HealthCheckFunc is a function that checks the health of a component
type HealthCheckFunc func(ctx context.Context) error

// CheckComponent runs a health check function and updates the component status
func (h *HealthChecker) CheckComponent(ctx context.Context, name string, checkFunc HealthCheckFunc) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := checkFunc(checkCtx); err != nil {
		h.UpdateComponentHealth(name, StatusUnhealthy, err.Error())
		h.logger.Warn("component health check failed",
			"component", name,
			"error", err.Error())
		return
	}
	h.UpdateComponentHealth(name, StatusHealthy, "")
}

// StartPeriodicChecks runs checks immediately and then every interval until ctx is done
func (h *HealthChecker) StartPeriodicChecks(ctx context.Context, interval time.Duration, checks map[string]HealthCheckFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for name, checkFunc := range checks {
			h.CheckComponent(ctx, name, checkFunc)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HealthHandler returns an HTTP handler for the health endpoint.
// Degraded still answers 200.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		h.writeJSON(w, code, health)
	}
}

// ReadyHandler returns an HTTP handler for the readiness endpoint
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		if health.Status == StatusUnhealthy {
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (h *HealthChecker) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode health response",
			"error", err.Error())
	}
}
