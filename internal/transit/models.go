// Package transit defines the unified model for Hong Kong public transport
// routes and arrival predictions, independent of any single operator's API shape.
package transit

import (
	"fmt"
	"time"
)

// HKT is the fixed UTC+8 offset used by every upstream operator.
var HKT = time.FixedZone("HKT", 8*60*60)

// Locale selects the language of display strings.
type Locale string

const (
	LocaleTC Locale = "tc"
	LocaleEN Locale = "en"
)

// ParseLocale converts a caller-supplied string into a Locale.
func ParseLocale(s string) (Locale, error) {
	switch Locale(s) {
	case LocaleTC, LocaleEN:
		return Locale(s), nil
	}
	return "", fmt.Errorf("unknown locale %q", s)
}

// Text returns the locale's own display name.
func (l Locale) Text() string {
	if l == LocaleEN {
		return "English"
	}
	return "繁體中文"
}

// ISO returns the locale's ISO language tag.
func (l Locale) ISO() string {
	if l == LocaleEN {
		return "en_US"
	}
	return "zh_HK"
}

// Company identifies one of the six supported transit operators.
type Company string

const (
	KMB          Company = "kmb"
	MTRBus       Company = "mtr_bus"
	MTRLightRail Company = "mtr_lrt"
	MTRTrain     Company = "mtr_train"
	CTB          Company = "ctb"
	NLB          Company = "nlb"
)

// Companies returns every supported operator, in stable order.
func Companies() []Company {
	return []Company{KMB, MTRBus, MTRLightRail, MTRTrain, CTB, NLB}
}

// ParseCompany converts a caller-supplied string into a Company.
func ParseCompany(s string) (Company, error) {
	switch Company(s) {
	case KMB, MTRBus, MTRLightRail, MTRTrain, CTB, NLB:
		return Company(s), nil
	}
	return "", fmt.Errorf("unknown company %q", s)
}

// Text returns the operator's display name in the given locale.
func (c Company) Text(l Locale) string {
	if l == LocaleEN {
		switch c {
		case KMB:
			return "KMB"
		case MTRBus:
			return "MTR (Bus)"
		case MTRLightRail:
			return "MTR (Light Rail)"
		case MTRTrain:
			return "MTR"
		case CTB:
			return "City Bus"
		case NLB:
			return "New Lantao Bus"
		}
	}
	switch c {
	case KMB:
		return "九巴"
	case MTRBus:
		return "港鐵巴士"
	case MTRLightRail:
		return "輕鐵"
	case MTRTrain:
		return "港鐵"
	case CTB:
		return "城巴"
	case NLB:
		return "新大嶼山巴士"
	}
	return string(c)
}

// Logo returns the operator's logo resource name for the renderer.
func (c Company) Logo() string {
	return string(c) + ".bmp"
}

// Direction is the canonical direction of travel along a route.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// ParseDirection converts a caller-supplied string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Outbound, Inbound:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Initial returns the single-letter code ("O"/"I") used by the bus operators.
func (d Direction) Initial() string {
	if d == Inbound {
		return "I"
	}
	return "O"
}

// Text returns the direction's display name in the given locale.
func (d Direction) Text(l Locale) string {
	switch {
	case l == LocaleEN && d == Outbound:
		return "Outbound"
	case l == LocaleEN && d == Inbound:
		return "Inbound"
	case d == Outbound:
		return "去程"
	default:
		return "回程"
	}
}

// StopType classifies a stop's position within a bound.
type StopType string

const (
	StopOrigin      StopType = "orig"
	StopMidway      StopType = "stop"
	StopDestination StopType = "dest"
)

// Text returns the stop type's display name in the given locale.
func (t StopType) Text(l Locale) string {
	if l == LocaleEN {
		switch t {
		case StopOrigin:
			return "Origination"
		case StopDestination:
			return "Destination"
		default:
			return "Midway Stop"
		}
	}
	switch t {
	case StopOrigin:
		return "起點站"
	case StopDestination:
		return "終點站"
	default:
		return "中途站"
	}
}

// RouteQuery identifies one stop of one bound of one operator's route,
// together with the desired display language. It is fully caller-supplied
// and validated against the operator's catalog when a Route is built.
type RouteQuery struct {
	Company     Company   `json:"company"`
	No          string    `json:"no"`
	Direction   Direction `json:"direction"`
	StopID      string    `json:"stop_id"`
	ServiceType string    `json:"service_type"`
	Locale      Locale    `json:"locale"`
}

// Validate checks that every field carries a usable value.
func (q RouteQuery) Validate() error {
	if _, err := ParseCompany(string(q.Company)); err != nil {
		return err
	}
	if _, err := ParseDirection(string(q.Direction)); err != nil {
		return err
	}
	if _, err := ParseLocale(string(q.Locale)); err != nil {
		return err
	}
	if q.No == "" {
		return fmt.Errorf("route number is required")
	}
	if q.StopID == "" {
		return fmt.Errorf("stop id is required")
	}
	if q.ServiceType == "" {
		return fmt.Errorf("service type is required")
	}
	return nil
}

// Stop is one stop of a bound, with localized names keyed by Locale.
type Stop struct {
	ID   string            `json:"id"`
	Seq  int               `json:"seq"`
	Name map[Locale]string `json:"name"`
}

// Bound is one direction of a route under a single service type.
type Bound struct {
	ServiceType string `json:"service_type"`
	RouteID     string `json:"route_id"`
	Orig        Stop   `json:"orig"`
	Dest        Stop   `json:"dest"`
}

// RouteInfo holds every bound of a route, grouped by direction.
type RouteInfo struct {
	Outbound []Bound `json:"outbound"`
	Inbound  []Bound `json:"inbound"`
}

// Bounds returns the bounds travelling in the given direction.
func (r RouteInfo) Bounds(d Direction) []Bound {
	if d == Inbound {
		return r.Inbound
	}
	return r.Outbound
}

// Eta is the unified arrival prediction for one stop of one route.
// Exactly one of Etas and Error is populated.
type Eta struct {
	No          string        `json:"no"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	StopName    string        `json:"stop_name"`
	Locale      Locale        `json:"locale"`
	Logo        string        `json:"logo"`
	Timestamp   time.Time     `json:"timestamp"`
	Etas        []TimeEntry   `json:"etas,omitempty"`
	Error       *ErrorPayload `json:"error,omitempty"`
}

// TimeEntry is a single predicted arrival, ordered ascending by arrival time.
type TimeEntry struct {
	Destination string `json:"destination"`
	// IsArriving reports that the vehicle is in the vicinity of the stop.
	IsArriving bool `json:"is_arriving"`
	// IsScheduled reports that the prediction is timetable-based rather
	// than derived from live vehicle tracking.
	IsScheduled bool              `json:"is_scheduled"`
	Eta         *time.Time        `json:"eta,omitempty"`
	EtaMinute   *int              `json:"eta_minute,omitempty"`
	Remark      string            `json:"remark,omitempty"`
	Extras      map[string]string `json:"extras,omitempty"`
}

// ErrorPayload is a normal, expected "no prediction" outcome (end of
// service, no data, upstream error text). It is not a Go error: callers
// render it inline exactly like a prediction.
type ErrorPayload struct {
	Message string `json:"message"`
}
