// Package handler provides HTTP handlers for the ETA API.
package handler

import (
	"net/http"
	"time"

	"github.com/etapaper/etapaper/internal/api/models"
	"github.com/etapaper/etapaper/internal/api/response"
	"github.com/etapaper/etapaper/internal/upstream"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *upstream.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, registry *upstream.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now(),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ProviderStatus handles GET /v1/ops/providers - per-operator upstream health.
func (h *OpsHandler) ProviderStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()

	status := models.HealthStatusOK
	for _, health := range snapshot {
		if !health.Healthy() {
			status = models.HealthStatusDegraded
			break
		}
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    status,
		"time":      time.Now(),
		"providers": snapshot,
	})
}
