// Package api provides the HTTP API for the ETA service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/api/handler"
	"github.com/etapaper/etapaper/internal/api/middleware"
	"github.com/etapaper/etapaper/internal/store"
	"github.com/etapaper/etapaper/internal/transit/operators"
	"github.com/etapaper/etapaper/internal/upstream"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Factory   *operators.Factory
	Store     *store.Store
	Registry  *upstream.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	catalogHandler := handler.NewCatalogHandler(cfg.Factory)
	etaHandler := handler.NewEtaHandler(cfg.Factory)
	bookmarkHandler := handler.NewBookmarkHandler(cfg.Store)

	etaRateLimit := middleware.RateLimitByIP(middleware.EtaRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/providers", opsHandler.ProviderStatus)
		})

		// Catalog endpoints
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/companies", catalogHandler.ListCompanies)
			r.Get("/routes/{company}", catalogHandler.ListRoutes)
			r.Get("/routes/{company}/{no}/stops", catalogHandler.ListStops)
		})

		// Live predictions fan out to the operators, keep them on a
		// tighter limit.
		r.With(etaRateLimit).Get("/eta", etaHandler.GetEta)

		// Bookmarks
		r.Route("/bookmarks", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", bookmarkHandler.List)
			r.Post("/", bookmarkHandler.Create)
			r.Put("/order", bookmarkHandler.Reorder)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookmarkHandler.Get)
				r.Put("/", bookmarkHandler.Update)
				r.Delete("/", bookmarkHandler.Delete)
			})
		})
	})

	return r
}
