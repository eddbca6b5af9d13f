package transit

import "context"

// Transport exposes one operator's route catalog through the unified model.
// Implementations cache catalog documents on disk and refetch them lazily
// when stale.
type Transport interface {
	// Company returns the operator this transport serves.
	Company() Company
	// RouteList returns every route of the operator keyed by route number.
	RouteList(ctx context.Context) (map[string]RouteInfo, error)
	// StopList returns the ordered stop sequence of one bound.
	StopList(ctx context.Context, no string, dir Direction, serviceType string) ([]Stop, error)
}

// EtaSource is a Transport that can also produce live arrival predictions.
type EtaSource interface {
	Transport
	// Etas fetches and normalizes the live predictions for the route's stop.
	// Expected "no prediction" conditions are returned inside the Eta as an
	// ErrorPayload, not as a Go error.
	Etas(ctx context.Context, route *Route) (Eta, error)
}

// PayloadKind selects one of the localized "no prediction" messages.
type PayloadKind string

const (
	PayloadAPIError       PayloadKind = "api-error"
	PayloadNoData         PayloadKind = "empty"
	PayloadEndOfService   PayloadKind = "eos"
	PayloadSpecialService PayloadKind = "ss-effect"
	PayloadStationClosed  PayloadKind = "closed"
)

// Message returns the localized text of a payload kind.
func Message(kind PayloadKind, l Locale) string {
	if l == LocaleEN {
		switch kind {
		case PayloadAPIError:
			return "API Error"
		case PayloadNoData:
			return "No Data"
		case PayloadEndOfService:
			return "Not in Service"
		case PayloadSpecialService:
			return "Special Service in Effect"
		case PayloadStationClosed:
			return "Station Closed"
		}
	}
	switch kind {
	case PayloadAPIError:
		return "API 錯誤"
	case PayloadNoData:
		return "沒有預報"
	case PayloadEndOfService:
		return "服務時間已過"
	case PayloadSpecialService:
		return "特別車務安排"
	case PayloadStationClosed:
		return "車站暫停服務"
	}
	return string(kind)
}
