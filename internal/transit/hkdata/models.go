package hkdata

import "encoding/json"

// envelope records whether the upstream returned a bare empty object.
// Several endpoints signal "bad parameters" with `{}` and HTTP 200, which
// the processors must classify differently from "valid but no data".
type envelope struct {
	empty bool
}

func (e *envelope) markEmpty(v bool) { e.empty = v }

// IsEmpty reports whether the response body was an empty JSON document.
func (e *envelope) IsEmpty() bool { return e.empty }

type emptiable interface {
	markEmpty(bool)
}

// --- KMB ---

// KmbRoute is one bound of a route from the KMB route enumeration.
type KmbRoute struct {
	Route       string `json:"route"`
	Bound       string `json:"bound"`
	ServiceType string `json:"service_type"`
	OrigEN      string `json:"orig_en"`
	OrigTC      string `json:"orig_tc"`
	DestEN      string `json:"dest_en"`
	DestTC      string `json:"dest_tc"`
}

// KmbRouteListResponse is the KMB route enumeration document.
type KmbRouteListResponse struct {
	envelope
	Data []KmbRoute `json:"data"`
}

// KmbRouteStop is one stop reference of a KMB bound.
type KmbRouteStop struct {
	Stop string `json:"stop"`
	Seq  string `json:"seq"`
}

// KmbRouteStopResponse is the KMB route-stop document.
type KmbRouteStopResponse struct {
	envelope
	Data []KmbRouteStop `json:"data"`
}

// KmbStopDetail carries the localized names of one KMB stop.
type KmbStopDetail struct {
	Stop   string `json:"stop"`
	NameTC string `json:"name_tc"`
	NameEN string `json:"name_en"`
}

// KmbStopResponse is the KMB stop detail document.
type KmbStopResponse struct {
	envelope
	Data KmbStopDetail `json:"data"`
}

// KmbEtaEntry is one prediction row from the KMB ETA endpoint. Eta is an
// ISO-8601 timestamp or empty when the operator only has a remark.
type KmbEtaEntry struct {
	Dir    string `json:"dir"`
	Seq    int    `json:"seq"`
	DestTC string `json:"dest_tc"`
	DestEN string `json:"dest_en"`
	Eta    string `json:"eta"`
	RmkTC  string `json:"rmk_tc"`
	RmkEN  string `json:"rmk_en"`
}

// KmbEtaResponse is the KMB ETA document. Data stays nil when the route
// has no prediction rows at all.
type KmbEtaResponse struct {
	envelope
	GeneratedTimestamp string        `json:"generated_timestamp"`
	Data               []KmbEtaEntry `json:"data"`
}

// --- MTR Bus ---

// MtrBusLocation is the live GPS fix of an MTR bus; a zero longitude means
// the prediction is timetable-based.
type MtrBusLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MtrBusArrival is one bus of an MTR Bus stop, with localized countdown
// texts and second-precision offsets relative to the schedule timestamp.
type MtrBusArrival struct {
	ArrivalTimeText       string         `json:"arrivalTimeText"`
	ArrivalTimeInSecond   string         `json:"arrivalTimeInSecond"`
	DepartureTimeText     string         `json:"departureTimeText"`
	DepartureTimeInSecond string         `json:"departureTimeInSecond"`
	BusLocation           MtrBusLocation `json:"busLocation"`
}

// MtrBusStop is one stop of the MTR Bus schedule response.
type MtrBusStop struct {
	BusStopID string          `json:"busStopId"`
	Bus       []MtrBusArrival `json:"bus"`
}

// MtrBusScheduleResponse is the MTR Bus schedule document.
// RouteStatusRemarkTitle is non-nil when the whole route carries a status
// banner (end of service, diversion).
type MtrBusScheduleResponse struct {
	envelope
	RouteStatusRemarkTitle *string      `json:"routeStatusRemarkTitle"`
	RouteStatusTime        string       `json:"routeStatusTime"`
	BusStop                []MtrBusStop `json:"busStop"`
}

// --- MTR Light Rail ---

// LrtArrival is one train of a light-rail platform.
type LrtArrival struct {
	RouteNo     string `json:"route_no"`
	DestCh      string `json:"dest_ch"`
	DestEn      string `json:"dest_en"`
	TimeCh      string `json:"time_ch"`
	TimeEn      string `json:"time_en"`
	Stop        int    `json:"stop"`
	TrainLength int    `json:"train_length"`
}

// LrtPlatform is one platform of a light-rail station.
type LrtPlatform struct {
	PlatformID       int          `json:"platform_id"`
	EndServiceStatus int          `json:"end_service_status"`
	RouteList        []LrtArrival `json:"route_list"`
}

// LrtScheduleResponse is the light-rail next-train document.
// RedAlertStatus is present (non-nil) only while a service alert is active.
type LrtScheduleResponse struct {
	envelope
	Status            int             `json:"status"`
	SystemTime        string          `json:"system_time"`
	PlatformList      []LrtPlatform   `json:"platform_list"`
	RedAlertStatus    json.RawMessage `json:"red_alert_status,omitempty"`
	RedAlertMessageCh string          `json:"red_alert_message_ch"`
	RedAlertMessageEn string          `json:"red_alert_message_en"`
}

// --- MTR heavy rail ---

// TrainArrival is one train of a heavy-rail station and direction.
type TrainArrival struct {
	Time string `json:"time"`
	Dest string `json:"dest"`
	Plat string `json:"plat"`
	Seq  string `json:"seq"`
}

// TrainStationData groups a station's predictions by travel direction.
type TrainStationData struct {
	Up   []TrainArrival `json:"UP"`
	Down []TrainArrival `json:"DOWN"`
}

// TrainScheduleResponse is the heavy-rail next-train document, keyed by
// "{LINE}-{STATION}". A zero Status with a URL means a special service
// arrangement is in effect; a zero Status mentioning suspension means the
// station is closed.
type TrainScheduleResponse struct {
	envelope
	Status   int                         `json:"status"`
	Message  string                      `json:"message"`
	URL      string                      `json:"url"`
	CurrTime string                      `json:"curr_time"`
	Data     map[string]TrainStationData `json:"data"`
}

// --- Citybus ---

// BravoRoute is one route of the Citybus route enumeration.
type BravoRoute struct {
	Route  string `json:"route"`
	OrigTC string `json:"orig_tc"`
	OrigEN string `json:"orig_en"`
	DestTC string `json:"dest_tc"`
	DestEN string `json:"dest_en"`
}

// BravoRouteListResponse is the Citybus route enumeration document.
type BravoRouteListResponse struct {
	envelope
	Data []BravoRoute `json:"data"`
}

// BravoRouteStop is one stop reference of a Citybus bound.
type BravoRouteStop struct {
	Stop string `json:"stop"`
	Seq  int    `json:"seq"`
}

// BravoRouteStopResponse is the Citybus route-stop document.
type BravoRouteStopResponse struct {
	envelope
	Data []BravoRouteStop `json:"data"`
}

// BravoStopDetail carries the localized names of one Citybus stop.
type BravoStopDetail struct {
	Stop   string `json:"stop"`
	NameTC string `json:"name_tc"`
	NameEN string `json:"name_en"`
}

// BravoStopResponse is the Citybus stop detail document.
type BravoStopResponse struct {
	envelope
	Data BravoStopDetail `json:"data"`
}

// BravoEtaEntry is one prediction row from the Citybus ETA endpoint. An
// empty Eta marks a schedule-only row that carries a remark instead.
type BravoEtaEntry struct {
	Dir    string `json:"dir"`
	Seq    int    `json:"seq"`
	DestTC string `json:"dest_tc"`
	DestEN string `json:"dest_en"`
	Eta    string `json:"eta"`
	RmkTC  string `json:"rmk_tc"`
	RmkEN  string `json:"rmk_en"`
}

// BravoEtaResponse is the Citybus ETA document.
type BravoEtaResponse struct {
	envelope
	GeneratedTimestamp string          `json:"generated_timestamp"`
	Data               []BravoEtaEntry `json:"data"`
}

// --- NLB ---

// NlbRoute is one route variant of the NLB enumeration. RouteID is numeric
// upstream but not consistently typed, hence json.Number.
type NlbRoute struct {
	RouteID   json.Number `json:"routeId"`
	RouteNo   string      `json:"routeNo"`
	RouteNameC string     `json:"routeName_c"`
	RouteNameE string     `json:"routeName_e"`
}

// NlbRouteListResponse is the NLB route enumeration document.
type NlbRouteListResponse struct {
	envelope
	Routes []NlbRoute `json:"routes"`
}

// NlbStop is one stop of an NLB route variant.
type NlbStop struct {
	StopID    string `json:"stopId"`
	StopNameC string `json:"stopName_c"`
	StopNameE string `json:"stopName_e"`
}

// NlbStopListResponse is the NLB stop list document.
type NlbStopListResponse struct {
	envelope
	Stops []NlbStop `json:"stops"`
}

// NlbArrival is one prediction row from the NLB ETA endpoint. Departed and
// NoGPS are "0"/"1" flags; a departed bus without GPS is still live-tracked.
type NlbArrival struct {
	EstimatedArrivalTime string `json:"estimatedArrivalTime"`
	Departed             string `json:"departed"`
	NoGPS                string `json:"noGPS"`
	RouteVariantName     string `json:"routeVariantName"`
}

// NlbEtaResponse is the NLB ETA document. Bad parameters yield `{}`.
type NlbEtaResponse struct {
	envelope
	EstimatedArrivals []NlbArrival `json:"estimatedArrivals"`
	Message           string       `json:"message"`
}
