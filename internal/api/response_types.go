package api

import (
	"context"
	"net/http"

	"github.com/daimoniac/pkgstatus/internal/errors"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// InvalidateRequest selects cache entries to drop. Prefix is a raw key
// prefix; Project drops everything cached for one project.
type InvalidateRequest struct {
	Prefix  string `json:"prefix,omitempty"`
	Project string `json:"project,omitempty"`
}

// InvalidateResponse reports how many cache entries were dropped
type InvalidateResponse struct {
	Removed int `json:"removed"`
}

// statusForError maps a view error to the HTTP status returned to the client
func statusForError(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errors.ErrBackendUnavailable), errors.Is(err, errors.ErrRateLimit), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
