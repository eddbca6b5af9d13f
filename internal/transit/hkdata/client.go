// Package hkdata is the thin client for the Hong Kong government transit
// open-data endpoints (data.gov.hk family). One method per operator
// endpoint; no caching, no retries beyond the injected HTTP client's own
// policy.
package hkdata

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/upstream"
)

// Default base URLs of the three upstream hosts.
const (
	DefaultEtabusBaseURL   = "https://data.etabus.gov.hk"
	DefaultRtBaseURL       = "https://rt.data.gov.hk"
	DefaultOpendataBaseURL = "https://opendata.mtr.com.hk"
)

// Config holds configuration for the open-data client.
type Config struct {
	// HTTPClient executes the requests. If nil, a resilient client with
	// defaults is used.
	HTTPClient upstream.Doer

	// Base URLs, overridable for tests. Empty fields use the defaults.
	EtabusBaseURL   string
	RtBaseURL       string
	OpendataBaseURL string

	// Registry receives per-operator success/failure records (optional).
	Registry *upstream.Registry

	// Logger for request tracing.
	Logger zerolog.Logger
}

// Client calls the government transit endpoints and decodes their payloads.
type Client struct {
	http         upstream.Doer
	etabusBase   string
	rtBase       string
	opendataBase string
	registry     *upstream.Registry
	logger       zerolog.Logger
}

// New creates an open-data client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = upstream.NewClient(upstream.DefaultClientConfig("hkdata"))
	}
	base := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return &Client{
		http:         httpClient,
		etabusBase:   base(cfg.EtabusBaseURL, DefaultEtabusBaseURL),
		rtBase:       base(cfg.RtBaseURL, DefaultRtBaseURL),
		opendataBase: base(cfg.OpendataBaseURL, DefaultOpendataBaseURL),
		registry:     cfg.Registry,
		logger:       cfg.Logger,
	}
}

// --- KMB (data.etabus.gov.hk) ---

// KmbEta fetches live predictions for a route and service type.
func (c *Client) KmbEta(ctx context.Context, route, serviceType string) (*KmbEtaResponse, error) {
	u := fmt.Sprintf("%s/v1/transport/kmb/route-eta/%s/%s", c.etabusBase, route, serviceType)
	out := &KmbEtaResponse{}
	return out, c.getJSON(ctx, transit.KMB, u, out)
}

// KmbRouteList fetches the route enumeration.
func (c *Client) KmbRouteList(ctx context.Context) (*KmbRouteListResponse, error) {
	out := &KmbRouteListResponse{}
	return out, c.getJSON(ctx, transit.KMB, c.etabusBase+"/v1/transport/kmb/route/", out)
}

// KmbRouteStopList fetches the stop references of one bound.
func (c *Client) KmbRouteStopList(ctx context.Context, route, direction, serviceType string) (*KmbRouteStopResponse, error) {
	u := fmt.Sprintf("%s/v1/transport/kmb/route-stop/%s/%s/%s", c.etabusBase, route, direction, serviceType)
	out := &KmbRouteStopResponse{}
	return out, c.getJSON(ctx, transit.KMB, u, out)
}

// KmbStopDetails fetches the localized names of one stop.
func (c *Client) KmbStopDetails(ctx context.Context, stopID string) (*KmbStopResponse, error) {
	u := fmt.Sprintf("%s/v1/transport/kmb/stop/%s", c.etabusBase, stopID)
	out := &KmbStopResponse{}
	return out, c.getJSON(ctx, transit.KMB, u, out)
}

// --- MTR Bus ---

// MtrBusSchedule fetches the live schedule of a route. The endpoint is the
// only POST in the family and localizes its texts server-side.
func (c *Client) MtrBusSchedule(ctx context.Context, route, language string) (*MtrBusScheduleResponse, error) {
	body, err := json.Marshal(map[string]string{"language": language, "routeName": route})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	out := &MtrBusScheduleResponse{}
	return out, c.postJSON(ctx, transit.MTRBus, c.rtBase+"/v1/transport/mtr/bus/getSchedule", body, out)
}

// MtrBusRoutes fetches the MTR Bus route CSV as records.
func (c *Client) MtrBusRoutes(ctx context.Context) ([][]string, error) {
	return c.getCSV(ctx, transit.MTRBus, c.opendataBase+"/data/mtr_bus_routes.csv")
}

// MtrBusStops fetches the MTR Bus stop CSV as records.
func (c *Client) MtrBusStops(ctx context.Context) ([][]string, error) {
	return c.getCSV(ctx, transit.MTRBus, c.opendataBase+"/data/mtr_bus_stops.csv")
}

// --- MTR Light Rail ---

// LrtSchedule fetches the next trains of a light-rail station.
func (c *Client) LrtSchedule(ctx context.Context, stationID string) (*LrtScheduleResponse, error) {
	q := url.Values{"station_id": {stationID}}
	u := c.rtBase + "/v1/transport/mtr/lrt/getSchedule?" + q.Encode()
	out := &LrtScheduleResponse{}
	return out, c.getJSON(ctx, transit.MTRLightRail, u, out)
}

// LrtRoutesAndStops fetches the light-rail routes-and-stops CSV as records.
func (c *Client) LrtRoutesAndStops(ctx context.Context) ([][]string, error) {
	return c.getCSV(ctx, transit.MTRLightRail, c.opendataBase+"/data/light_rail_routes_and_stops.csv")
}

// --- MTR heavy rail ---

// TrainSchedule fetches the next trains of a line and station.
func (c *Client) TrainSchedule(ctx context.Context, line, station, language string) (*TrainScheduleResponse, error) {
	q := url.Values{"line": {line}, "sta": {station}, "lang": {language}}
	u := c.rtBase + "/v1/transport/mtr/getSchedule.php?" + q.Encode()
	out := &TrainScheduleResponse{}
	return out, c.getJSON(ctx, transit.MTRTrain, u, out)
}

// TrainLinesAndStations fetches the heavy-rail lines-and-stations CSV as records.
func (c *Client) TrainLinesAndStations(ctx context.Context) ([][]string, error) {
	return c.getCSV(ctx, transit.MTRTrain, c.opendataBase+"/data/mtr_lines_and_stations.csv")
}

// --- Citybus ---

// BravoEta fetches live predictions for a stop and route. company is the
// operator code inside the Bravo platform ("ctb", historically "nwfb").
func (c *Client) BravoEta(ctx context.Context, company, stopID, route string) (*BravoEtaResponse, error) {
	u := fmt.Sprintf("%s/v1.1/transport/citybus-nwfb/eta/%s/%s/%s", c.rtBase, company, stopID, route)
	out := &BravoEtaResponse{}
	return out, c.getJSON(ctx, transit.CTB, u, out)
}

// BravoRouteList fetches the route enumeration of a Bravo operator.
func (c *Client) BravoRouteList(ctx context.Context, company string) (*BravoRouteListResponse, error) {
	u := fmt.Sprintf("%s/v2/transport/citybus/route/%s", c.rtBase, company)
	out := &BravoRouteListResponse{}
	return out, c.getJSON(ctx, transit.CTB, u, out)
}

// BravoRouteStopList fetches the stop references of one bound.
func (c *Client) BravoRouteStopList(ctx context.Context, company, route, direction string) (*BravoRouteStopResponse, error) {
	u := fmt.Sprintf("%s/v2/transport/citybus/route-stop/%s/%s/%s", c.rtBase, company, route, direction)
	out := &BravoRouteStopResponse{}
	return out, c.getJSON(ctx, transit.CTB, u, out)
}

// BravoStopDetails fetches the localized names of one stop.
func (c *Client) BravoStopDetails(ctx context.Context, stopID string) (*BravoStopResponse, error) {
	u := fmt.Sprintf("%s/v2/transport/citybus/stop/%s", c.rtBase, stopID)
	out := &BravoStopResponse{}
	return out, c.getJSON(ctx, transit.CTB, u, out)
}

// --- NLB ---

// NlbEta fetches live predictions for a route variant and stop.
func (c *Client) NlbEta(ctx context.Context, routeID, stopID, language string) (*NlbEtaResponse, error) {
	q := url.Values{
		"action":   {"estimatedArrivals"},
		"routeId":  {routeID},
		"stopId":   {stopID},
		"language": {language},
	}
	u := c.rtBase + "/v2/transport/nlb/stop.php?" + q.Encode()
	out := &NlbEtaResponse{}
	return out, c.getJSON(ctx, transit.NLB, u, out)
}

// NlbRouteList fetches the route variant enumeration.
func (c *Client) NlbRouteList(ctx context.Context) (*NlbRouteListResponse, error) {
	out := &NlbRouteListResponse{}
	return out, c.getJSON(ctx, transit.NLB, c.rtBase+"/v2/transport/nlb/route.php?action=list", out)
}

// NlbRouteStopList fetches the stop list of a route variant.
func (c *Client) NlbRouteStopList(ctx context.Context, routeID string) (*NlbStopListResponse, error) {
	u := fmt.Sprintf("%s/v2/transport/nlb/stop.php?action=list&routeId=%s", c.rtBase, routeID)
	out := &NlbStopListResponse{}
	return out, c.getJSON(ctx, transit.NLB, u, out)
}

// --- plumbing ---

func (c *Client) getJSON(ctx context.Context, company transit.Company, url string, out emptiable) error {
	raw, err := c.request(ctx, company, http.MethodGet, url, nil, "")
	if err != nil {
		return err
	}
	return decodeJSON(company, raw, out)
}

func (c *Client) postJSON(ctx context.Context, company transit.Company, url string, body []byte, out emptiable) error {
	raw, err := c.request(ctx, company, http.MethodPost, url, body, "application/json")
	if err != nil {
		return err
	}
	return decodeJSON(company, raw, out)
}

func (c *Client) getCSV(ctx context.Context, company transit.Company, url string) ([][]string, error) {
	raw, err := c.request(ctx, company, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		c.record(company, err)
		return nil, transit.NewError(company, "BAD_RESPONSE", "malformed CSV from "+url, transit.ErrUpstream)
	}
	return records, nil
}

func (c *Client) request(ctx context.Context, company transit.Company, method, url string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug().
		Str("company", string(company)).
		Str("method", method).
		Str("url", url).
		Msg("requesting upstream data")

	resp, err := c.http.Do(req)
	if err != nil {
		c.record(company, err)
		return nil, transit.NewError(company, "REQUEST_FAILED", "failed to reach "+url, transit.ErrUpstream)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(company, err)
		return nil, transit.NewError(company, "READ_FAILED", "reading response from "+url, transit.ErrUpstream)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := transit.NewError(company, fmt.Sprintf("HTTP_%d", resp.StatusCode),
			fmt.Sprintf("%s returned status %d", url, resp.StatusCode), transit.ErrUpstream)
		c.record(company, err)
		return nil, err
	}
	if c.registry != nil {
		c.registry.RecordSuccess(company)
	}
	return raw, nil
}

func (c *Client) record(company transit.Company, err error) {
	if c.registry != nil {
		c.registry.RecordFailure(company, err)
	}
}

func decodeJSON(company transit.Company, raw []byte, out emptiable) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return transit.NewError(company, "BAD_RESPONSE", "malformed JSON response", transit.ErrUpstream)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return transit.NewError(company, "BAD_RESPONSE", "unexpected JSON shape", transit.ErrUpstream)
	}
	out.markEmpty(len(probe) == 0)
	return nil
}
