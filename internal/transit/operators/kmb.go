package operators

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
)

// kmbMaxEta is the most predictions KMB publishes per stop; overnight
// routes may publish fewer.
const kmbMaxEta = 3

// kmbArrivingWindow is KMB's imminence cutoff.
const kmbArrivingWindow = 30 * time.Second

// kmbFinalBusRemark is the fixed English remark marking end of service.
const kmbFinalBusRemark = "The final bus has departed from this stop"

var kmbBounds = map[string]transit.Direction{
	"O": transit.Outbound,
	"I": transit.Inbound,
}

// KMB serves Kowloon Motor Bus routes.
type KMB struct {
	api    *hkdata.Client
	cache  *catalog.Store
	logger zerolog.Logger
}

// NewKMB creates the KMB operator.
func NewKMB(api *hkdata.Client, cache *catalog.Store, logger zerolog.Logger) *KMB {
	return &KMB{api: api, cache: cache, logger: logger}
}

// Company implements transit.Transport.
func (p *KMB) Company() transit.Company {
	return transit.KMB
}

// RouteList implements transit.Transport.
func (p *KMB) RouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	return p.cache.RouteList(ctx, p.fetchRouteList)
}

// StopList implements transit.Transport.
func (p *KMB) StopList(ctx context.Context, no string, dir transit.Direction, serviceType string) ([]transit.Stop, error) {
	routes, err := p.RouteList(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := routes[no]; !ok {
		return nil, routeNotExist(transit.KMB, no)
	}
	return p.cache.StopList(ctx, no, dir, serviceType, func(ctx context.Context) ([]transit.Stop, error) {
		return p.fetchStopList(ctx, no, dir, serviceType)
	})
}

// fetchRouteList shapes the KMB enumeration into bounds. The enumeration
// carries origin/destination names but not stop ids, so every bound needs
// one route-stop call to resolve its terminal stops.
func (p *KMB) fetchRouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	list, err := p.api.KmbRouteList(ctx)
	if err != nil {
		return nil, err
	}

	type item struct {
		route string
		dir   transit.Direction
		bound transit.Bound
		ok    bool
	}

	entries := list.Data
	results, err := runPool(ctx, catalogWorkers, len(entries), func(ctx context.Context, i int) (item, error) {
		e := entries[i]
		dir, ok := kmbBounds[e.Bound]
		if !ok {
			return item{}, nil
		}
		stops, err := p.api.KmbRouteStopList(ctx, e.Route, string(dir), e.ServiceType)
		if err != nil {
			return item{}, err
		}
		if len(stops.Data) == 0 {
			return item{}, nil
		}
		first, last := stops.Data[0], stops.Data[len(stops.Data)-1]
		return item{
			route: e.Route,
			dir:   dir,
			ok:    true,
			bound: transit.Bound{
				RouteID:     fmt.Sprintf("%s_%s_%s", e.Route, dir, e.ServiceType),
				ServiceType: e.ServiceType,
				Orig: transit.Stop{
					ID:  first.Stop,
					Seq: seqInt(first.Seq),
					Name: map[transit.Locale]string{
						transit.LocaleEN: fallback(e.OrigEN, nameFallbackEN),
						transit.LocaleTC: fallback(e.OrigTC, nameFallbackTC),
					},
				},
				Dest: transit.Stop{
					ID:  last.Stop,
					Seq: seqInt(last.Seq),
					Name: map[transit.Locale]string{
						transit.LocaleEN: fallback(e.DestEN, nameFallbackEN),
						transit.LocaleTC: fallback(e.DestTC, nameFallbackTC),
					},
				},
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	routes := make(map[string]transit.RouteInfo)
	for _, r := range results {
		if !r.ok {
			continue
		}
		info := routes[r.route]
		if r.dir == transit.Inbound {
			info.Inbound = append(info.Inbound, r.bound)
		} else {
			info.Outbound = append(info.Outbound, r.bound)
		}
		routes[r.route] = info
	}
	return routes, nil
}

// fetchStopList resolves one bound's stops; names come from per-stop
// detail calls.
func (p *KMB) fetchStopList(ctx context.Context, no string, dir transit.Direction, serviceType string) ([]transit.Stop, error) {
	refs, err := p.api.KmbRouteStopList(ctx, no, string(dir), serviceType)
	if err != nil {
		return nil, err
	}
	if len(refs.Data) == 0 {
		return nil, transit.NewError(transit.KMB, "EMPTY_ROUTE",
			fmt.Sprintf("%s/%s/%s has no stops", no, dir, serviceType), transit.ErrEmptyRoute)
	}

	return runPool(ctx, catalogWorkers, len(refs.Data), func(ctx context.Context, i int) (transit.Stop, error) {
		ref := refs.Data[i]
		dets, err := p.api.KmbStopDetails(ctx, ref.Stop)
		if err != nil {
			return transit.Stop{}, err
		}
		return transit.Stop{
			ID:  ref.Stop,
			Seq: seqInt(ref.Seq),
			Name: map[transit.Locale]string{
				transit.LocaleTC: dets.Data.NameTC,
				transit.LocaleEN: dets.Data.NameEN,
			},
		}, nil
	})
}

// Etas implements transit.EtaSource.
func (p *KMB) Etas(ctx context.Context, route *transit.Route) (transit.Eta, error) {
	q := route.Query
	resp, err := p.api.KmbEta(ctx, q.No, q.ServiceType)
	if err != nil {
		return transit.Eta{}, err
	}
	if resp.IsEmpty() {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}
	if resp.Data == nil {
		return route.ErrorEta(transit.PayloadNoData), nil
	}
	anchor, err := parseHK(resp.GeneratedTimestamp)
	if err != nil {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}

	dirInitial := q.Direction.Initial()
	var entries []transit.TimeEntry
	for _, row := range resp.Data {
		if row.Seq != route.StopSeq() || row.Dir != dirInitial {
			continue
		}
		if row.Eta == "" {
			switch row.RmkEN {
			case kmbFinalBusRemark:
				return route.ErrorEta(transit.PayloadEndOfService), nil
			case "":
				return route.ErrorEta(transit.PayloadNoData), nil
			default:
				return route.MessageEta(localized(q.Locale, row.RmkTC, row.RmkEN)), nil
			}
		}

		etaAt, err := parseHK(row.Eta)
		if err != nil {
			continue
		}
		remark := localized(q.Locale, row.RmkTC, row.RmkEN)
		entries = append(entries, transit.TimeEntry{
			Destination: localized(q.Locale, row.DestTC, row.DestEN),
			IsArriving:  etaAt.Sub(anchor) < kmbArrivingWindow,
			IsScheduled: remark == "原定班次" || remark == "Scheduled Bus",
			Eta:         timePtr(etaAt),
			EtaMinute:   intPtr(minutesUntil(anchor, etaAt)),
			Remark:      remark,
		})
		if len(entries) == kmbMaxEta {
			break
		}
	}
	return route.NewEta(entries), nil
}
