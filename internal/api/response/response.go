// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/etapaper/etapaper/internal/api/middleware"
	"github.com/etapaper/etapaper/internal/api/models"
	"github.com/etapaper/etapaper/internal/store"
	"github.com/etapaper/etapaper/internal/transit"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	Error(w, r, models.NewBadRequest(traceID, detail))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	Error(w, r, models.NewNotFound(traceID, detail))
}

// UpstreamError writes a 502 Bad Gateway error response.
func UpstreamError(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	Error(w, r, models.NewUpstreamError(traceID, detail))
}

// InternalError writes a 500 Internal Server Error error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	Error(w, r, models.NewInternalError(traceID, detail))
}

// DomainError maps a transit or store error onto the right problem
// response. Catalog misses become 404s, upstream failures 502s, anything
// else a 500.
func DomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, transit.ErrRouteNotExist),
		errors.Is(err, transit.ErrStopNotExist),
		errors.Is(err, transit.ErrServiceTypeNotExist),
		errors.Is(err, transit.ErrEmptyRoute):
		NotFound(w, r, err.Error())
	case errors.Is(err, transit.ErrUpstream):
		UpstreamError(w, r, err.Error())
	default:
		InternalError(w, r, err.Error())
	}
}
