package operators

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
)

// nlbArrivingWindow is NLB's imminence cutoff, in seconds.
const nlbArrivingWindow = 60

var nlbLanguages = map[transit.Locale]string{
	transit.LocaleTC: "zh",
	transit.LocaleEN: "en",
}

// NLB serves New Lantao Bus routes. The upstream enumerates flat route
// variants with no direction or service type of their own, so both are
// reconstructed while shaping the catalog.
type NLB struct {
	api    *hkdata.Client
	cache  *catalog.Store
	logger zerolog.Logger
}

// NewNLB creates the NLB operator.
func NewNLB(api *hkdata.Client, cache *catalog.Store, logger zerolog.Logger) *NLB {
	return &NLB{api: api, cache: cache, logger: logger}
}

// Company implements transit.Transport.
func (p *NLB) Company() transit.Company {
	return transit.NLB
}

// RouteList implements transit.Transport.
func (p *NLB) RouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	return p.cache.RouteList(ctx, p.fetchRouteList)
}

// StopList implements transit.Transport.
func (p *NLB) StopList(ctx context.Context, no string, dir transit.Direction, serviceType string) ([]transit.Stop, error) {
	routes, err := p.RouteList(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := routes[no]
	if !ok {
		return nil, routeNotExist(transit.NLB, no)
	}

	var routeID string
	for _, bound := range info.Bounds(dir) {
		if bound.ServiceType == serviceType {
			routeID = bound.RouteID
			break
		}
	}
	if routeID == "" {
		return nil, serviceTypeNotExist(transit.NLB, serviceType)
	}

	return p.cache.StopList(ctx, no, dir, serviceType, func(ctx context.Context) ([]transit.Stop, error) {
		return p.fetchStopList(ctx, routeID)
	})
}

// fetchRouteList reconstructs directions and service types from the flat
// variant list. Variant ids grow over time, so after sorting by id the
// first variant of a number is the normal outbound service, the second the
// inbound one, and any later variant sharing a terminal with an existing
// bound is a special service of that bound's direction.
func (p *NLB) fetchRouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	list, err := p.api.NlbRouteList(ctx)
	if err != nil {
		return nil, err
	}

	variants := list.Routes
	sort.SliceStable(variants, func(i, j int) bool {
		a, _ := variants[i].RouteID.Int64()
		b, _ := variants[j].RouteID.Int64()
		return a < b
	})

	bounds, err := runPool(ctx, catalogWorkers, len(variants), func(ctx context.Context, i int) (transit.Bound, error) {
		v := variants[i]
		stops, err := p.api.NlbRouteStopList(ctx, v.RouteID.String())
		if err != nil {
			return transit.Bound{}, err
		}
		if len(stops.Stops) == 0 {
			return transit.Bound{RouteID: v.RouteID.String()}, nil
		}
		first, last := stops.Stops[0], stops.Stops[len(stops.Stops)-1]
		return transit.Bound{
			RouteID: v.RouteID.String(),
			Orig: transit.Stop{
				ID:  first.StopID,
				Seq: 1,
				Name: map[transit.Locale]string{
					transit.LocaleTC: first.StopNameC,
					transit.LocaleEN: first.StopNameE,
				},
			},
			Dest: transit.Stop{
				ID:  last.StopID,
				Seq: len(stops.Stops),
				Name: map[transit.Locale]string{
					transit.LocaleTC: last.StopNameC,
					transit.LocaleEN: last.StopNameE,
				},
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	routes := make(map[string]*transit.RouteInfo)
	for i, bound := range bounds {
		no := variants[i].RouteNo
		info := routes[no]
		if info == nil {
			info = &transit.RouteInfo{}
			routes[no] = info
		}

		dir := transit.Outbound
		if len(info.Outbound) > 0 {
			dir = transit.Inbound
		}
		serviceType := "1"

	match:
		for _, side := range []transit.Direction{transit.Outbound, transit.Inbound} {
			for _, existing := range info.Bounds(side) {
				if existing.Orig.Name[transit.LocaleEN] == bound.Orig.Name[transit.LocaleEN] ||
					existing.Dest.Name[transit.LocaleEN] == bound.Dest.Name[transit.LocaleEN] {
					dir = side
					serviceType = strconv.Itoa(len(info.Bounds(side)) + 1)
					break match
				}
			}
		}

		bound.ServiceType = serviceType
		if dir == transit.Inbound {
			info.Inbound = append(info.Inbound, bound)
		} else {
			info.Outbound = append(info.Outbound, bound)
		}
	}

	out := make(map[string]transit.RouteInfo, len(routes))
	for no, info := range routes {
		out[no] = *info
	}
	return out, nil
}

func (p *NLB) fetchStopList(ctx context.Context, routeID string) ([]transit.Stop, error) {
	resp, err := p.api.NlbRouteStopList(ctx, routeID)
	if err != nil {
		return nil, err
	}
	stops := make([]transit.Stop, 0, len(resp.Stops))
	for i, stop := range resp.Stops {
		stops = append(stops, transit.Stop{
			ID:  stop.StopID,
			Seq: i + 1,
			Name: map[transit.Locale]string{
				transit.LocaleTC: stop.StopNameC,
				transit.LocaleEN: stop.StopNameE,
			},
		})
	}
	return stops, nil
}

// Etas implements transit.EtaSource. The feed carries no generation
// timestamp, so countdowns anchor on the local clock.
func (p *NLB) Etas(ctx context.Context, route *transit.Route) (transit.Eta, error) {
	q := route.Query
	routeID, err := route.BoundID(ctx)
	if err != nil {
		return transit.Eta{}, err
	}

	resp, err := p.api.NlbEta(ctx, routeID, q.StopID, nlbLanguages[q.Locale])
	if err != nil {
		return transit.Eta{}, err
	}
	if resp.IsEmpty() {
		// Bad parameters yield an empty document rather than an error.
		return route.ErrorEta(transit.PayloadAPIError), nil
	}
	if len(resp.EstimatedArrivals) == 0 {
		return route.ErrorEta(transit.PayloadNoData), nil
	}

	anchor := time.Now().In(transit.HKT)
	destination := route.Destination().Name[q.Locale]

	var entries []transit.TimeEntry
	for _, arr := range resp.EstimatedArrivals {
		etaAt, err := parseHK(arr.EstimatedArrivalTime)
		if err != nil {
			continue
		}
		entries = append(entries, transit.TimeEntry{
			Destination: destination,
			IsArriving:  etaAt.Sub(anchor).Seconds() < nlbArrivingWindow,
			IsScheduled: !(arr.Departed == "1" && arr.NoGPS == "1"),
			Eta:         timePtr(etaAt),
			EtaMinute:   intPtr(minutesUntil(anchor, etaAt)),
			Extras:      map[string]string{"route_variant": arr.RouteVariantName},
		})
	}
	return route.NewEta(entries), nil
}
