package handler

import (
	"net/http"

	"github.com/etapaper/etapaper/internal/api/response"
	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/operators"
)

// EtaHandler serves live predictions.
type EtaHandler struct {
	factory *operators.Factory
}

// NewEtaHandler creates a new EtaHandler.
func NewEtaHandler(factory *operators.Factory) *EtaHandler {
	return &EtaHandler{factory: factory}
}

// GetEta handles GET /v1/eta. The full route query arrives as query
// parameters; locale defaults to tc and service type to "1".
func (h *EtaHandler) GetEta(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := transit.RouteQuery{
		Company:     transit.Company(params.Get("company")),
		No:          params.Get("no"),
		Direction:   transit.Direction(params.Get("direction")),
		StopID:      params.Get("stop_id"),
		ServiceType: params.Get("service_type"),
		Locale:      transit.Locale(params.Get("locale")),
	}
	if q.ServiceType == "" {
		q.ServiceType = "1"
	}
	if q.Locale == "" {
		q.Locale = transit.LocaleTC
	}
	if err := q.Validate(); err != nil {
		response.BadRequest(w, r, err.Error())
		return
	}

	eta, err := h.factory.Etas(r.Context(), q)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, eta)
}
