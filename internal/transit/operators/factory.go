package operators

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
)

// Factory creates and memoizes one operator per company, each with its own
// catalog store under DataDir.
type Factory struct {
	API           *hkdata.Client
	DataDir       string
	ThresholdDays int
	Logger        zerolog.Logger

	mu      sync.Mutex
	sources map[transit.Company]transit.EtaSource
}

// NewFactory creates a Factory.
func NewFactory(api *hkdata.Client, dataDir string, thresholdDays int, logger zerolog.Logger) *Factory {
	return &Factory{
		API:           api,
		DataDir:       dataDir,
		ThresholdDays: thresholdDays,
		Logger:        logger,
	}
}

// Source returns the operator for a company, creating it on first use.
func (f *Factory) Source(company transit.Company) (transit.EtaSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if src, ok := f.sources[company]; ok {
		return src, nil
	}

	cache, err := catalog.NewStore(f.DataDir, company, f.ThresholdDays, f.Logger)
	if err != nil {
		return nil, err
	}
	logger := f.Logger.With().Str("company", string(company)).Logger()

	var src transit.EtaSource
	switch company {
	case transit.KMB:
		src = NewKMB(f.API, cache, logger)
	case transit.MTRBus:
		src = NewMTRBus(f.API, cache, logger)
	case transit.MTRLightRail:
		src = NewLightRail(f.API, cache, logger)
	case transit.MTRTrain:
		src = NewTrain(f.API, cache, logger)
	case transit.CTB:
		src = NewCitybus(f.API, cache, logger)
	case transit.NLB:
		src = NewNLB(f.API, cache, logger)
	default:
		return nil, fmt.Errorf("unknown company %q", company)
	}

	if f.sources == nil {
		f.sources = make(map[transit.Company]transit.EtaSource)
	}
	f.sources[company] = src
	return src, nil
}

// Route resolves a route query against its company's catalog.
func (f *Factory) Route(ctx context.Context, q transit.RouteQuery) (*transit.Route, error) {
	src, err := f.Source(q.Company)
	if err != nil {
		return nil, err
	}
	return transit.NewRoute(ctx, q, src)
}

// Etas resolves a route query and fetches its predictions in one call.
func (f *Factory) Etas(ctx context.Context, q transit.RouteQuery) (transit.Eta, error) {
	src, err := f.Source(q.Company)
	if err != nil {
		return transit.Eta{}, err
	}
	route, err := transit.NewRoute(ctx, q, src)
	if err != nil {
		return transit.Eta{}, err
	}
	return src.Etas(ctx, route)
}
