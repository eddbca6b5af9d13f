package operators

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
)

var lrtBounds = map[string]transit.Direction{
	"1": transit.Outbound,
	"2": transit.Inbound,
}

// LightRail serves MTR Light Rail routes. The schedule feed is platform
// oriented, so one stop's response carries every route calling there and
// the route filter happens client side.
type LightRail struct {
	api    *hkdata.Client
	cache  *catalog.Store
	logger zerolog.Logger
}

// NewLightRail creates the Light Rail operator.
func NewLightRail(api *hkdata.Client, cache *catalog.Store, logger zerolog.Logger) *LightRail {
	return &LightRail{api: api, cache: cache, logger: logger}
}

// Company implements transit.Transport.
func (p *LightRail) Company() transit.Company {
	return transit.MTRLightRail
}

// RouteList implements transit.Transport.
func (p *LightRail) RouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	return p.cache.RouteList(ctx, p.fetchRouteList)
}

// StopList implements transit.Transport.
func (p *LightRail) StopList(ctx context.Context, no string, dir transit.Direction, serviceType string) ([]transit.Stop, error) {
	if serviceType != "default" {
		return nil, serviceTypeNotExist(transit.MTRLightRail, serviceType)
	}
	routes, err := p.RouteList(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := routes[no]; !ok {
		return nil, routeNotExist(transit.MTRLightRail, no)
	}
	return p.cache.StopList(ctx, no, dir, serviceType, func(ctx context.Context) ([]transit.Stop, error) {
		return p.fetchStopList(ctx, no, dir)
	})
}

// fetchRouteList shapes the routes-and-stops CSV into bounds.
// Columns: route, direction, stop code, stop id, TC name, EN name, seq.
// The seq-1 row is a bound's origin and every later row pushes the
// destination forward.
func (p *LightRail) fetchRouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	rows, err := p.api.LrtRoutesAndStops(ctx)
	if err != nil {
		return nil, err
	}

	routes := make(map[string]*transit.RouteInfo)
	for i, row := range rows {
		if i == 0 || len(row) < 7 {
			continue
		}
		dir, ok := lrtBounds[row[1]]
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
			Seq: seqInt(row[6]),
			Name: map[transit.Locale]string{
				transit.LocaleTC: row[4],
				transit.LocaleEN: row[5],
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

func (p *LightRail) fetchStopList(ctx context.Context, no string, dir transit.Direction) ([]transit.Stop, error) {
	rows, err := p.api.LrtRoutesAndStops(ctx)
	if err != nil {
		return nil, err
	}

	var stops []transit.Stop
	for i, row := range rows {
		if i == 0 || len(row) < 7 {
			continue
		}
		if row[0] != no || lrtBounds[row[1]] != dir {
			continue
		}
		stops = append(stops, transit.Stop{
			ID:  row[3],
			Seq: seqInt(row[6]),
			Name: map[transit.Locale]string{
				transit.LocaleTC: row[4],
				transit.LocaleEN: row[5],
			},
		})
	}
	if len(stops) == 0 {
		return nil, routeNotExist(transit.MTRLightRail, no)
	}
	return stops, nil
}

var lrtLanguages = map[transit.Locale]string{
	transit.LocaleTC: "ch",
	transit.LocaleEN: "en",
}

// Etas implements transit.EtaSource. Predictions for the queried route are
// picked out of the platform lists by route number and destination name;
// times arrive as minute countdowns or arriving texts.
func (p *LightRail) Etas(ctx context.Context, route *transit.Route) (transit.Eta, error) {
	q := route.Query
	resp, err := p.api.LrtSchedule(ctx, q.StopID)
	if err != nil {
		return transit.Eta{}, err
	}
	if resp.IsEmpty() || resp.Status == 0 {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}

	ended := len(resp.PlatformList) > 0
	for _, platform := range resp.PlatformList {
		if platform.EndServiceStatus == 0 {
			ended = false
			break
		}
	}
	if ended {
		return route.ErrorEta(transit.PayloadEndOfService), nil
	}

	anchor, err := parseHK(resp.SystemTime)
	if err != nil {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}

	destination := route.Destination().Name[q.Locale]
	stopped := 0
	var entries []transit.TimeEntry
	for _, platform := range resp.PlatformList {
		for _, arr := range platform.RouteList {
			if arr.RouteNo != q.No {
				continue
			}
			// 循環線至此站停行
			if arr.Stop == 1 {
				stopped++
				continue
			}
			dest := localized(q.Locale, arr.DestCh, arr.DestEn)
			if dest != destination {
				continue
			}

			extras := map[string]string{
				"platform":   strconv.Itoa(platform.PlatformID),
				"car_length": strconv.Itoa(arr.TrainLength),
			}
			// e.g. "3 分鐘" or "即將抵達"
			text, _, _ := strings.Cut(localized(q.Locale, arr.TimeCh, arr.TimeEn), " ")
			if min, err := strconv.Atoi(text); err == nil {
				entries = append(entries, transit.TimeEntry{
					Destination: dest,
					IsArriving:  false,
					IsScheduled: false,
					Eta:         timePtr(anchor.Add(time.Duration(min) * time.Minute)),
					EtaMinute:   intPtr(min),
					Extras:      extras,
				})
				continue
			}
			entries = append(entries, transit.TimeEntry{
				Destination: dest,
				IsArriving:  true,
				IsScheduled: false,
				Eta:         timePtr(anchor),
				EtaMinute:   intPtr(0),
				Remark:      text,
				Extras:      extras,
			})
		}
	}

	if len(entries) > 0 {
		return route.NewEta(entries), nil
	}
	if len(resp.RedAlertStatus) > 0 {
		return route.MessageEta(localized(q.Locale, resp.RedAlertMessageCh, resp.RedAlertMessageEn)), nil
	}
	if stopped > 0 {
		return route.ErrorEta(transit.PayloadEndOfService), nil
	}
	return route.ErrorEta(transit.PayloadNoData), nil
}
