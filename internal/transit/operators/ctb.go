package operators

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
)

// ctbArrivingWindow is Citybus's imminence cutoff, in seconds.
const ctbArrivingWindow = 60

// Citybus serves Citybus routes through the bravobus open data feeds.
type Citybus struct {
	api    *hkdata.Client
	cache  *catalog.Store
	logger zerolog.Logger
}

// NewCitybus creates the Citybus operator.
func NewCitybus(api *hkdata.Client, cache *catalog.Store, logger zerolog.Logger) *Citybus {
	return &Citybus{api: api, cache: cache, logger: logger}
}

// Company implements transit.Transport.
func (p *Citybus) Company() transit.Company {
	return transit.CTB
}

// RouteList implements transit.Transport.
func (p *Citybus) RouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	return p.cache.RouteList(ctx, p.fetchRouteList)
}

// StopList implements transit.Transport.
func (p *Citybus) StopList(ctx context.Context, no string, dir transit.Direction, serviceType string) ([]transit.Stop, error) {
	if serviceType != "default" {
		return nil, serviceTypeNotExist(transit.CTB, serviceType)
	}
	routes, err := p.RouteList(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := routes[no]; !ok {
		return nil, routeNotExist(transit.CTB, no)
	}
	return p.cache.StopList(ctx, no, dir, serviceType, func(ctx context.Context) ([]transit.Stop, error) {
		return p.fetchStopList(ctx, no, dir)
	})
}

// stopNameCache deduplicates stop detail lookups across bounds. Terminal
// stops repeat heavily between routes, so this saves several hundred
// requests per catalog refresh.
type stopNameCache struct {
	mu    sync.Mutex
	names map[string]map[transit.Locale]string
}

func (c *stopNameCache) get(ctx context.Context, api *hkdata.Client, id string) (map[transit.Locale]string, error) {
	c.mu.Lock()
	name, ok := c.names[id]
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	dets, err := api.BravoStopDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	name = map[transit.Locale]string{
		transit.LocaleEN: fallback(dets.Data.NameEN, nameFallbackEN),
		transit.LocaleTC: fallback(dets.Data.NameTC, nameFallbackTC),
	}
	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
	return name, nil
}

// fetchRouteList resolves each enumerated route's terminal stops with one
// route-stop call per direction plus cached stop detail lookups.
func (p *Citybus) fetchRouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	list, err := p.api.BravoRouteList(ctx, string(transit.CTB))
	if err != nil {
		return nil, err
	}

	cache := &stopNameCache{names: make(map[string]map[transit.Locale]string)}

	type item struct {
		route string
		info  transit.RouteInfo
	}

	entries := list.Data
	results, err := runPool(ctx, catalogWorkers, len(entries), func(ctx context.Context, i int) (item, error) {
		no := entries[i].Route
		var info transit.RouteInfo
		for _, dir := range []transit.Direction{transit.Inbound, transit.Outbound} {
			stops, err := p.api.BravoRouteStopList(ctx, string(transit.CTB), no, string(dir))
			if err != nil {
				return item{}, err
			}
			if len(stops.Data) == 0 {
				continue
			}
			first, last := stops.Data[0], stops.Data[len(stops.Data)-1]
			origName, err := cache.get(ctx, p.api, first.Stop)
			if err != nil {
				return item{}, err
			}
			destName, err := cache.get(ctx, p.api, last.Stop)
			if err != nil {
				return item{}, err
			}
			bound := transit.Bound{
				RouteID:     no + "_" + string(dir) + "_default",
				ServiceType: "default",
				Orig:        transit.Stop{ID: first.Stop, Seq: first.Seq, Name: origName},
				Dest:        transit.Stop{ID: last.Stop, Seq: last.Seq, Name: destName},
			}
			if dir == transit.Inbound {
				info.Inbound = []transit.Bound{bound}
			} else {
				info.Outbound = []transit.Bound{bound}
			}
		}
		return item{route: no, info: info}, nil
	})
	if err != nil {
		return nil, err
	}

	routes := make(map[string]transit.RouteInfo, len(results))
	for _, r := range results {
		routes[r.route] = r.info
	}
	return routes, nil
}

func (p *Citybus) fetchStopList(ctx context.Context, no string, dir transit.Direction) ([]transit.Stop, error) {
	refs, err := p.api.BravoRouteStopList(ctx, string(transit.CTB), no, string(dir))
	if err != nil {
		return nil, err
	}
	if len(refs.Data) == 0 {
		return nil, routeNotExist(transit.CTB, no)
	}

	return runPool(ctx, catalogWorkers, len(refs.Data), func(ctx context.Context, i int) (transit.Stop, error) {
		ref := refs.Data[i]
		dets, err := p.api.BravoStopDetails(ctx, ref.Stop)
		if err != nil {
			return transit.Stop{}, err
		}
		return transit.Stop{
			ID:  ref.Stop,
			Seq: ref.Seq,
			Name: map[transit.Locale]string{
				transit.LocaleEN: fallback(dets.Data.NameEN, nameFallbackEN),
				transit.LocaleTC: fallback(dets.Data.NameTC, nameFallbackTC),
			},
		}, nil
	})
}

// Etas implements transit.EtaSource. Entries with an empty eta field are
// scheduled departures with no prediction yet.
func (p *Citybus) Etas(ctx context.Context, route *transit.Route) (transit.Eta, error) {
	q := route.Query
	resp, err := p.api.BravoEta(ctx, string(transit.CTB), q.StopID, q.No)
	if err != nil {
		return transit.Eta{}, err
	}
	if resp.IsEmpty() || resp.Data == nil {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}
	if len(resp.Data) == 0 {
		return route.ErrorEta(transit.PayloadNoData), nil
	}

	anchor, err := parseHK(resp.GeneratedTimestamp)
	if err != nil {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}

	dirInitial := q.Direction.Initial()
	var entries []transit.TimeEntry
	for _, row := range resp.Data {
		if row.Dir != dirInitial {
			continue
		}
		destination := localized(q.Locale, row.DestTC, row.DestEN)
		remark := localized(q.Locale, row.RmkTC, row.RmkEN)
		if row.Eta == "" {
			entries = append(entries, transit.TimeEntry{
				Destination: destination,
				IsArriving:  false,
				IsScheduled: true,
				Remark:      remark,
			})
			continue
		}
		etaAt, err := parseHK(row.Eta)
		if err != nil {
			continue
		}
		entries = append(entries, transit.TimeEntry{
			Destination: destination,
			IsArriving:  etaAt.Sub(anchor).Seconds() < ctbArrivingWindow,
			IsScheduled: false,
			Eta:         timePtr(etaAt),
			EtaMinute:   intPtr(minutesUntil(anchor, etaAt)),
			Remark:      remark,
		})
	}
	return route.NewEta(entries), nil
}
