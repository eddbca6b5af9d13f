package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/etapaper/etapaper/internal/api/models"
	"github.com/etapaper/etapaper/internal/api/response"
	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/operators"
)

// CatalogHandler serves operator and route catalog lookups.
type CatalogHandler struct {
	factory *operators.Factory
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(factory *operators.Factory) *CatalogHandler {
	return &CatalogHandler{factory: factory}
}

// ListCompanies handles GET /v1/companies.
func (h *CatalogHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies := transit.Companies()
	out := make([]models.CompanyInfo, 0, len(companies))
	for _, c := range companies {
		out = append(out, models.CompanyInfo{
			Code:   string(c),
			NameTC: c.Text(transit.LocaleTC),
			NameEN: c.Text(transit.LocaleEN),
			Logo:   c.Logo(),
		})
	}
	response.JSON(w, r, http.StatusOK, out)
}

// ListRoutes handles GET /v1/routes/{company}.
func (h *CatalogHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	company, err := transit.ParseCompany(chi.URLParam(r, "company"))
	if err != nil {
		response.BadRequest(w, r, err.Error())
		return
	}
	src, err := h.factory.Source(company)
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	routes, err := src.RouteList(r.Context())
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, routes)
}

// ListStops handles GET /v1/routes/{company}/{no}/stops.
// Direction and service type come from query parameters; service type
// defaults to "1" the way the operator catalogs number normal services.
func (h *CatalogHandler) ListStops(w http.ResponseWriter, r *http.Request) {
	company, err := transit.ParseCompany(chi.URLParam(r, "company"))
	if err != nil {
		response.BadRequest(w, r, err.Error())
		return
	}
	direction, err := transit.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		response.BadRequest(w, r, err.Error())
		return
	}
	serviceType := r.URL.Query().Get("service_type")
	if serviceType == "" {
		serviceType = "1"
	}

	src, err := h.factory.Source(company)
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	stops, err := src.StopList(r.Context(), chi.URLParam(r, "no"), direction, serviceType)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stops)
}
