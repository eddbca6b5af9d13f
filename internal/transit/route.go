package transit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// mtrLineNames supplies display names for heavy-rail lines; the upstream
// catalog only carries line codes. Branch lines share the parent's name.
var mtrLineNames = map[string]map[Locale]string{
	"AEL":     {LocaleTC: "機場快線", LocaleEN: "Airport Express Line"},
	"TCL":     {LocaleTC: "東涌線", LocaleEN: "Tung Chung Line"},
	"TML":     {LocaleTC: "屯馬線", LocaleEN: "Tuen Ma Line"},
	"TKL":     {LocaleTC: "將軍澳線", LocaleEN: "Tseung Kwan O Line"},
	"TKL-TKS": {LocaleTC: "將軍澳線", LocaleEN: "Tseung Kwan O Line"},
	"EAL":     {LocaleTC: "東鐵線", LocaleEN: "East Rail Line"},
	"EAL-LMC": {LocaleTC: "東鐵線", LocaleEN: "East Rail Line"},
	"DRL":     {LocaleTC: "迪士尼線", LocaleEN: "Disneyland Resort Line"},
	"KTL":     {LocaleTC: "觀塘線", LocaleEN: "Kwun Tong Line"},
	"TWL":     {LocaleTC: "荃灣線", LocaleEN: "Tsuen Wan Line"},
	"ISL":     {LocaleTC: "港島線", LocaleEN: "Island Line"},
	"SIL":     {LocaleTC: "南港島線", LocaleEN: "South Island Line"},
}

// circularLightRail lists the light-rail routes that loop back to their
// origin. Their last physical stop is not a meaningful destination, so they
// report a synthetic circular label instead.
var circularLightRail = map[string]map[Locale]string{
	"705": {LocaleTC: "天水圍循環綫", LocaleEN: "TSW Circular"},
	"706": {LocaleTC: "天水圍循環綫", LocaleEN: "TSW Circular"},
}

// Route resolves a RouteQuery against one operator's catalog. It is cheap
// to construct and built fresh per request; only the catalog data it reads
// is cached.
type Route struct {
	Query RouteQuery

	transport Transport
	stops     []Stop
	index     map[string]int
}

// NewRoute resolves the query's stop list and validates the stop id
// against it. Returns StopNotExist when the stop is not on the bound.
func NewRoute(ctx context.Context, q RouteQuery, t Transport) (*Route, error) {
	stops, err := t.StopList(ctx, q.No, q.Direction, q.ServiceType)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(stops))
	for i, s := range stops {
		index[s.ID] = i
	}
	if _, ok := index[q.StopID]; !ok {
		return nil, NewError(q.Company, "STOP_NOT_EXIST",
			fmt.Sprintf("stop %q is not on route %s", q.StopID, q.No), ErrStopNotExist)
	}

	return &Route{Query: q, transport: t, stops: stops, index: index}, nil
}

// Company returns the operator serving the route.
func (r *Route) Company() Company {
	return r.transport.Company()
}

// CompanyName returns the operator's display name in the query's locale.
func (r *Route) CompanyName() string {
	return r.Company().Text(r.Query.Locale)
}

// Name returns the route's display name. Heavy-rail line codes resolve
// through the bilingual line-name table; everything else uses the route
// number as-is.
func (r *Route) Name() string {
	if r.Query.Company == MTRTrain {
		if names, ok := mtrLineNames[r.Query.No]; ok {
			return names[r.Query.Locale]
		}
	}
	return r.Query.No
}

// BoundID returns the operator's identity token for the queried bound,
// required by some live-ETA endpoints. Returns ServiceTypeNotExist when
// the catalog has no bound under the query's service type.
func (r *Route) BoundID(ctx context.Context) (string, error) {
	routes, err := r.transport.RouteList(ctx)
	if err != nil {
		return "", err
	}
	info, ok := routes[r.Query.No]
	if !ok {
		return "", NewError(r.Query.Company, "ROUTE_NOT_EXIST",
			fmt.Sprintf("route %q is not in the catalog", r.Query.No), ErrRouteNotExist)
	}
	for _, b := range info.Bounds(r.Query.Direction) {
		if b.ServiceType == r.Query.ServiceType {
			return b.RouteID, nil
		}
	}
	return "", NewError(r.Query.Company, "SERVICE_TYPE_NOT_EXIST",
		fmt.Sprintf("route %s has no service type %q", r.Query.No, r.Query.ServiceType), ErrServiceTypeNotExist)
}

// Stops returns the resolved stop sequence of the bound.
func (r *Route) Stops() []Stop {
	return r.stops
}

// Stop returns the queried stop.
func (r *Route) Stop() Stop {
	return r.stops[r.index[r.Query.StopID]]
}

// StopSeq returns the queried stop's sequence number within the bound.
func (r *Route) StopSeq() int {
	return r.Stop().Seq
}

// StopDetails looks up any stop of the bound by id.
func (r *Route) StopDetails(stopID string) (Stop, bool) {
	i, ok := r.index[stopID]
	if !ok {
		return Stop{}, false
	}
	return r.stops[i], true
}

// Origin returns the first stop of the bound.
func (r *Route) Origin() Stop {
	return r.stops[0]
}

// Destination returns the last stop of the bound, or the synthetic circular
// label for looping light-rail routes.
func (r *Route) Destination() Stop {
	last := r.stops[len(r.stops)-1]
	if r.Query.Company == MTRLightRail {
		if names, ok := circularLightRail[r.Query.No]; ok {
			return Stop{ID: last.ID, Seq: last.Seq, Name: names}
		}
	}
	return last
}

// StopType classifies the queried stop within the bound.
func (r *Route) StopType() StopType {
	switch r.Query.StopID {
	case r.Origin().ID:
		return StopOrigin
	case r.Destination().ID:
		return StopDestination
	}
	return StopMidway
}

// StopName returns the queried stop's name in the query's locale.
func (r *Route) StopName() string {
	return r.Stop().Name[r.Query.Locale]
}

// OriginName returns the origin's name in the query's locale.
func (r *Route) OriginName() string {
	return r.Origin().Name[r.Query.Locale]
}

// DestinationName returns the destination's name in the query's locale.
func (r *Route) DestinationName() string {
	return r.Destination().Name[r.Query.Locale]
}

// Logo returns the operator's logo resource name.
func (r *Route) Logo() string {
	return r.Query.Company.Logo()
}

// NewEta wraps successful prediction entries with the route's metadata.
func (r *Route) NewEta(entries []TimeEntry) Eta {
	return r.eta(entries, nil)
}

// ErrorEta wraps a localized "no prediction" payload with the route's metadata.
func (r *Route) ErrorEta(kind PayloadKind) Eta {
	return r.eta(nil, &ErrorPayload{Message: Message(kind, r.Query.Locale)})
}

// MessageEta wraps an upstream-provided message (remark text, red alert)
// with the route's metadata.
func (r *Route) MessageEta(message string) Eta {
	return r.eta(nil, &ErrorPayload{Message: strings.TrimSpace(message)})
}

func (r *Route) eta(entries []TimeEntry, payload *ErrorPayload) Eta {
	return Eta{
		No:          r.Query.No,
		Origin:      r.OriginName(),
		Destination: r.DestinationName(),
		StopName:    r.StopName(),
		Locale:      r.Query.Locale,
		Logo:        r.Logo(),
		Timestamp:   time.Now().In(HKT),
		Etas:        entries,
		Error:       payload,
	}
}
