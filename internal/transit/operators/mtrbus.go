package operators

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
)

var mtrBusBounds = map[string]transit.Direction{
	"O": transit.Outbound,
	"I": transit.Inbound,
}

// mtrBusEndOfService lists the status banner titles that mean the route
// has finished for the day, in both upstream languages.
var mtrBusEndOfService = map[string]bool{
	"停止服務":             true,
	"Non-service hours": true,
}

var mtrBusLanguages = map[transit.Locale]string{
	transit.LocaleTC: "zh",
	transit.LocaleEN: "en",
}

// MTRBusOp serves MTR feeder bus routes. The catalog is a single stop CSV;
// only the "default" service type exists.
type MTRBusOp struct {
	api    *hkdata.Client
	cache  *catalog.Store
	logger zerolog.Logger
}

// NewMTRBus creates the MTR Bus operator.
func NewMTRBus(api *hkdata.Client, cache *catalog.Store, logger zerolog.Logger) *MTRBusOp {
	return &MTRBusOp{api: api, cache: cache, logger: logger}
}

// Company implements transit.Transport.
func (p *MTRBusOp) Company() transit.Company {
	return transit.MTRBus
}

// RouteList implements transit.Transport.
func (p *MTRBusOp) RouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	return p.cache.RouteList(ctx, p.fetchRouteList)
}

// StopList implements transit.Transport.
func (p *MTRBusOp) StopList(ctx context.Context, no string, dir transit.Direction, serviceType string) ([]transit.Stop, error) {
	if serviceType != "default" {
		return nil, serviceTypeNotExist(transit.MTRBus, serviceType)
	}
	routes, err := p.RouteList(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := routes[no]; !ok {
		return nil, routeNotExist(transit.MTRBus, no)
	}
	return p.cache.StopList(ctx, no, dir, serviceType, func(ctx context.Context) ([]transit.Stop, error) {
		return p.fetchStopList(ctx, no, dir)
	})
}

// fetchRouteList groups the stop CSV into bounds: the seq-1 row of a
// route+direction is the origin, every later row pushes the destination
// forward so the final row wins.
// Columns: route, direction, seq, stop id, lat, lon, TC name, EN name.
func (p *MTRBusOp) fetchRouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	rows, err := p.api.MtrBusStops(ctx)
	if err != nil {
		return nil, err
	}

	routes := make(map[string]*transit.RouteInfo)
	for i, row := range rows {
		if i == 0 || len(row) < 8 {
			continue
		}
		dir, ok := mtrBusBounds[row[1]]
		if !ok {
			continue
		}
		info := routes[row[0]]
		if info == nil {
			info = &transit.RouteInfo{}
			routes[row[0]] = info
		}

		stop := transit.Stop{
			ID:  row[3],
			Seq: seqInt(row[2]),
			Name: map[transit.Locale]string{
				transit.LocaleTC: row[6],
				transit.LocaleEN: row[7],
			},
		}
		if stop.Seq == 1 {
			bound := transit.Bound{
				RouteID:     row[0] + "_" + string(dir) + "_default",
				ServiceType: "default",
				Orig:        stop,
			}
			if dir == transit.Inbound {
				info.Inbound = append(info.Inbound, bound)
			} else {
				info.Outbound = append(info.Outbound, bound)
			}
			continue
		}
		bounds := info.Bounds(dir)
		if len(bounds) > 0 {
			bounds[len(bounds)-1].Dest = stop
		}
	}

	out := make(map[string]transit.RouteInfo, len(routes))
	for no, info := range routes {
		out[no] = *info
	}
	return out, nil
}

func (p *MTRBusOp) fetchStopList(ctx context.Context, no string, dir transit.Direction) ([]transit.Stop, error) {
	rows, err := p.api.MtrBusStops(ctx)
	if err != nil {
		return nil, err
	}

	var stops []transit.Stop
	for i, row := range rows {
		if i == 0 || len(row) < 8 {
			continue
		}
		if row[0] != no || mtrBusBounds[row[1]] != dir {
			continue
		}
		stops = append(stops, transit.Stop{
			ID:  row[3],
			Seq: seqInt(row[2]),
			Name: map[transit.Locale]string{
				transit.LocaleTC: row[6],
				transit.LocaleEN: row[7],
			},
		})
	}
	if len(stops) == 0 {
		return nil, routeNotExist(transit.MTRBus, no)
	}
	return stops, nil
}

// Etas implements transit.EtaSource. MTR Bus reports countdown texts
// relative to a schedule timestamp rather than absolute arrival times, and
// uses departure times at the origin stop.
func (p *MTRBusOp) Etas(ctx context.Context, route *transit.Route) (transit.Eta, error) {
	q := route.Query
	resp, err := p.api.MtrBusSchedule(ctx, route.Name(), mtrBusLanguages[q.Locale])
	if err != nil {
		return transit.Eta{}, err
	}
	if resp.IsEmpty() {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}
	if resp.RouteStatusRemarkTitle != nil {
		if mtrBusEndOfService[*resp.RouteStatusRemarkTitle] {
			return route.ErrorEta(transit.PayloadEndOfService), nil
		}
		return route.MessageEta(*resp.RouteStatusRemarkTitle), nil
	}

	anchor, err := time.ParseInLocation("2006/01/02 15:04", resp.RouteStatusTime, transit.HKT)
	if err != nil {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}

	destination := route.Destination().Name[q.Locale]
	atOrigin := route.StopType() == transit.StopOrigin

	var entries []transit.TimeEntry
	for _, stop := range resp.BusStop {
		if stop.BusStopID != q.StopID {
			continue
		}
		for _, bus := range stop.Bus {
			text, seconds := bus.ArrivalTimeText, bus.ArrivalTimeInSecond
			if atOrigin {
				text, seconds = bus.DepartureTimeText, bus.DepartureTimeInSecond
			}
			scheduled := bus.BusLocation.Longitude == 0

			if hasDigit(text) {
				// Countdown text, e.g. "3 分鐘" / "3 Minutes".
				sec, err := strconv.Atoi(seconds)
				if err != nil {
					continue
				}
				etaAt := anchor.Add(time.Duration(sec) * time.Second)
				entries = append(entries, transit.TimeEntry{
					Destination: destination,
					IsArriving:  false,
					IsScheduled: scheduled,
					Eta:         timePtr(etaAt),
					EtaMinute:   intPtr(sec / 60),
				})
				continue
			}
			entries = append(entries, transit.TimeEntry{
				Destination: destination,
				IsArriving:  true,
				IsScheduled: scheduled,
				Eta:         timePtr(anchor),
				EtaMinute:   intPtr(0),
				Remark:      text,
			})
		}
		break
	}
	return route.NewEta(entries), nil
}
