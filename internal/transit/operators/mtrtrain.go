package operators

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
)

// trainArrivingWindow is the heavy rail imminence cutoff.
const trainArrivingWindow = 90

var trainBounds = map[string]transit.Direction{
	"UT": transit.Outbound,
	"DT": transit.Inbound,
}

// trainEtaBounds maps the query direction onto the schedule feed's
// UP/DOWN keys. The mapping is not the inverse of trainBounds; the feed
// keys run opposite to the catalog's UT/DT codes.
var trainEtaBounds = map[transit.Direction]string{
	transit.Inbound:  "UP",
	transit.Outbound: "DOWN",
}

// Train serves MTR heavy rail lines. Lines with a short-working branch
// (for example East Rail trains turning at Lok Ma Chau) are catalogued as
// separate "LINE-BRANCH" routes.
type Train struct {
	api    *hkdata.Client
	cache  *catalog.Store
	logger zerolog.Logger
}

// NewTrain creates the heavy rail operator.
func NewTrain(api *hkdata.Client, cache *catalog.Store, logger zerolog.Logger) *Train {
	return &Train{api: api, cache: cache, logger: logger}
}

// Company implements transit.Transport.
func (p *Train) Company() transit.Company {
	return transit.MTRTrain
}

// RouteList implements transit.Transport.
func (p *Train) RouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	return p.cache.RouteList(ctx, p.fetchRouteList)
}

// StopList implements transit.Transport.
func (p *Train) StopList(ctx context.Context, no string, dir transit.Direction, serviceType string) ([]transit.Stop, error) {
	if serviceType != "default" {
		return nil, serviceTypeNotExist(transit.MTRTrain, serviceType)
	}
	routes, err := p.RouteList(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := routes[no]; !ok {
		return nil, routeNotExist(transit.MTRTrain, no)
	}
	return p.cache.StopList(ctx, no, dir, serviceType, func(ctx context.Context) ([]transit.Stop, error) {
		return p.fetchStopList(ctx, no, dir)
	})
}

// splitLineDirection decodes the CSV direction column. Plain values are
// "UT" or "DT"; branch rows read "BRANCH-UT", which spawns a separate
// "LINE-BRANCH" route.
func splitLineDirection(line, raw string) (string, string) {
	branch, code, ok := strings.Cut(raw, "-")
	if !ok {
		return line, raw
	}
	return line + "-" + branch, code
}

// fetchRouteList shapes the lines-and-stations CSV into bounds.
// Columns: line, direction, station code, station id, TC name, EN name, seq.
func (p *Train) fetchRouteList(ctx context.Context) (map[string]transit.RouteInfo, error) {
	rows, err := p.api.TrainLinesAndStations(ctx)
	if err != nil {
		return nil, err
	}

	routes := make(map[string]*transit.RouteInfo)
	for i, row := range rows {
		if i == 0 || len(row) < 7 || allBlank(row) {
			continue
		}
		line, code := splitLineDirection(row[0], row[1])
		dir, ok := trainBounds[code]
		if !ok {
			continue
		}
		info := routes[line]
		if info == nil {
			info = &transit.RouteInfo{}
			routes[line] = info
		}

		stop := transit.Stop{
			ID:  row[2],
			Seq: seqInt(row[6]),
			Name: map[transit.Locale]string{
				transit.LocaleTC: row[4],
				transit.LocaleEN: row[5],
			},
		}
		if stop.Seq == 1 {
			bound := transit.Bound{
				RouteID:     line + "_" + string(dir) + "_default",
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

func (p *Train) fetchStopList(ctx context.Context, no string, dir transit.Direction) ([]transit.Stop, error) {
	rows, err := p.api.TrainLinesAndStations(ctx)
	if err != nil {
		return nil, err
	}

	line, branch, branched := strings.Cut(no, "-")
	var stops []transit.Stop
	for i, row := range rows {
		if i == 0 || len(row) < 7 || allBlank(row) {
			continue
		}
		if row[0] != line {
			continue
		}
		if branched {
			// Branch rows carry the branch in the direction column.
			if !strings.Contains(row[1], branch) {
				continue
			}
		} else {
			parts := strings.Split(row[1], "-")
			if trainBounds[parts[len(parts)-1]] != dir {
				continue
			}
		}
		stops = append(stops, transit.Stop{
			ID:  row[2],
			Seq: seqInt(row[6]),
			Name: map[transit.Locale]string{
				transit.LocaleTC: row[4],
				transit.LocaleEN: row[5],
			},
		})
	}
	if len(stops) == 0 {
		return nil, routeNotExist(transit.MTRTrain, no)
	}
	return stops, nil
}

func allBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

// Etas implements transit.EtaSource.
func (p *Train) Etas(ctx context.Context, route *transit.Route) (transit.Eta, error) {
	q := route.Query
	line, _, _ := strings.Cut(q.No, "-")

	resp, err := p.api.TrainSchedule(ctx, line, q.StopID, string(q.Locale))
	if err != nil {
		return transit.Eta{}, err
	}
	if resp.IsEmpty() {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}
	if resp.Status == 0 {
		switch {
		case strings.Contains(resp.Message, "suspended"):
			return route.MessageEta(resp.Message), nil
		case resp.URL != "":
			return route.ErrorEta(transit.PayloadSpecialService), nil
		default:
			return route.ErrorEta(transit.PayloadAPIError), nil
		}
	}

	station := resp.Data[fmt.Sprintf("%s-%s", line, q.StopID)]
	arrivals := station.Up
	if trainEtaBounds[q.Direction] == "DOWN" {
		arrivals = station.Down
	}
	if arrivals == nil {
		return route.ErrorEta(transit.PayloadNoData), nil
	}

	anchor, err := parseHK(resp.CurrTime)
	if err != nil {
		return route.ErrorEta(transit.PayloadAPIError), nil
	}

	var entries []transit.TimeEntry
	for _, arr := range arrivals {
		etaAt, err := parseHK(arr.Time)
		if err != nil {
			continue
		}
		// Branch destinations may sit outside this route's own stop list;
		// fall back to the raw station code.
		destination := arr.Dest
		if dest, ok := route.StopDetails(arr.Dest); ok {
			destination = dest.Name[q.Locale]
		}
		entries = append(entries, transit.TimeEntry{
			Destination: destination,
			IsArriving:  etaAt.Sub(anchor).Seconds() < trainArrivingWindow,
			IsScheduled: false,
			Eta:         timePtr(etaAt),
			EtaMinute:   intPtr(minutesUntil(anchor, etaAt)),
			Extras:      map[string]string{"platform": arr.Plat},
		})
	}
	return route.NewEta(entries), nil
}
