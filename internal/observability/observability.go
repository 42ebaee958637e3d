// Package observability provides structured logging, Prometheus metrics,
// and health checking capabilities for pkgstatus.
//
// Key features:
// - Structured JSON logging with configurable log levels
// - Prometheus metrics for cache, backend, view and warmer operations
// - Health checks for component status monitoring
// - HTTP endpoints for /metrics, /health, and /ready
package observability
