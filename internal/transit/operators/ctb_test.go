package operators_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/operators"
)

func ctbQuery() transit.RouteQuery {
	return transit.RouteQuery{
		Company: transit.CTB, No: "8", Direction: transit.Outbound,
		StopID: "001351", ServiceType: "default", Locale: transit.LocaleEN,
	}
}

func ctbStops() []transit.Stop {
	return []transit.Stop{
		namedStop("001145", 1, "堅尼地城", "Kennedy Town"),
		namedStop("001351", 2, "正街", "Centre Street"),
		namedStop("002063", 3, "小西灣", "Siu Sai Wan"),
	}
}

func ctbRoutes() map[string]transit.RouteInfo {
	return map[string]transit.RouteInfo{
		"8": {Outbound: []transit.Bound{{
			RouteID:     "8_outbound_default",
			ServiceType: "default",
			Orig:        namedStop("001145", 1, "堅尼地城", "Kennedy Town"),
			Dest:        namedStop("002063", 3, "小西灣", "Siu Sai Wan"),
		}}},
	}
}

func newCtbRoute(t *testing.T, p *operators.Citybus) *transit.Route {
	t.Helper()
	route, err := transit.NewRoute(context.Background(), ctbQuery(), p)
	require.NoError(t, err)
	return route
}

func TestCitybus_Etas(t *testing.T) {
	anchor := time.Date(2026, 8, 25, 10, 0, 0, 0, transit.HKT)
	row := func(dir, eta, rmkEN string) map[string]any {
		return map[string]any{
			"co": "CTB", "route": "8", "dir": dir, "seq": 2, "stop": "001351",
			"dest_tc": "小西灣", "dest_en": "Siu Sai Wan",
			"eta": eta, "rmk_tc": "", "rmk_en": rmkEN,
		}
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.1/transport/citybus-nwfb/eta/ctb/001351/8", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"generated_timestamp": anchor.Format(time.RFC3339),
			"data": []map[string]any{
				row("O", anchor.Add(5*time.Minute).Format(time.RFC3339), ""),
				// opposite direction, must be skipped
				row("I", anchor.Add(2*time.Minute).Format(time.RFC3339), ""),
				row("O", anchor.Add(30*time.Second).Format(time.RFC3339), ""),
				// no prediction yet, scheduled departure
				row("O", "", "Scheduled"),
			},
		})
	}))
	defer server.Close()

	cache := testStore(t, transit.CTB)
	seedCatalog(t, cache, ctbRoutes(), ctbQuery(), ctbStops())
	p := operators.NewCitybus(testClient(server.URL), cache, zerolog.Nop())

	eta, err := p.Etas(context.Background(), newCtbRoute(t, p))
	require.NoError(t, err)
	require.Nil(t, eta.Error)
	require.Len(t, eta.Etas, 3)

	first := eta.Etas[0]
	assert.Equal(t, "Siu Sai Wan", first.Destination)
	assert.False(t, first.IsArriving)
	assert.Equal(t, 5, *first.EtaMinute)

	arriving := eta.Etas[1]
	assert.True(t, arriving.IsArriving)
	assert.Equal(t, 0, *arriving.EtaMinute)

	scheduled := eta.Etas[2]
	assert.True(t, scheduled.IsScheduled)
	assert.Nil(t, scheduled.Eta)
	assert.Nil(t, scheduled.EtaMinute)
	assert.Equal(t, "Scheduled", scheduled.Remark)
}

func TestCitybus_Etas_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"generated_timestamp": "2026-08-25T02:00:00+08:00",
			"data":                []any{},
		})
	}))
	defer server.Close()

	cache := testStore(t, transit.CTB)
	seedCatalog(t, cache, ctbRoutes(), ctbQuery(), ctbStops())
	p := operators.NewCitybus(testClient(server.URL), cache, zerolog.Nop())

	eta, err := p.Etas(context.Background(), newCtbRoute(t, p))
	require.NoError(t, err)
	require.NotNil(t, eta.Error)
	assert.Equal(t, "No Data", eta.Error.Message)
}

func TestCitybus_Etas_EmptyDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cache := testStore(t, transit.CTB)
	seedCatalog(t, cache, ctbRoutes(), ctbQuery(), ctbStops())
	p := operators.NewCitybus(testClient(server.URL), cache, zerolog.Nop())

	eta, err := p.Etas(context.Background(), newCtbRoute(t, p))
	require.NoError(t, err)
	require.NotNil(t, eta.Error)
	assert.Equal(t, "API Error", eta.Error.Message)
}

func TestCitybus_FetchRouteList_Shaping(t *testing.T) {
	stopNames := map[string][2]string{
		"001145": {"Kennedy Town", "堅尼地城"},
		"002063": {"Siu Sai Wan", "小西灣"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/transport/citybus/route/ctb", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"co": "CTB", "route": "8"}},
		})
	})
	mux.HandleFunc("/v2/transport/citybus/route-stop/ctb/8/outbound", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"stop": "001145", "seq": 1},
				{"stop": "001351", "seq": 2},
				{"stop": "002063", "seq": 3},
			},
		})
	})
	mux.HandleFunc("/v2/transport/citybus/route-stop/ctb/8/inbound", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})
	mux.HandleFunc("/v2/transport/citybus/stop/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/v2/transport/citybus/stop/"):]
		names := stopNames[id]
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"stop": id, "name_en": names[0], "name_tc": names[1]},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cache := testStore(t, transit.CTB)
	p := operators.NewCitybus(testClient(server.URL), cache, zerolog.Nop())

	routes, err := p.RouteList(context.Background())
	require.NoError(t, err)
	require.Contains(t, routes, "8")

	info := routes["8"]
	require.Len(t, info.Outbound, 1)
	assert.Empty(t, info.Inbound)

	out := info.Outbound[0]
	assert.Equal(t, "8_outbound_default", out.RouteID)
	assert.Equal(t, "001145", out.Orig.ID)
	assert.Equal(t, "Kennedy Town", out.Orig.Name[transit.LocaleEN])
	// The destination's details come from the last stop reference.
	assert.Equal(t, "002063", out.Dest.ID)
	assert.Equal(t, "小西灣", out.Dest.Name[transit.LocaleTC])
	assert.Equal(t, 3, out.Dest.Seq)
}

func TestCitybus_FetchStopList_NameFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/transport/citybus/route/ctb", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"co": "CTB", "route": "8"}},
		})
	})
	for _, dir := range []string{"outbound", "inbound"} {
		mux.HandleFunc(fmt.Sprintf("/v2/transport/citybus/route-stop/ctb/8/%s", dir), func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"stop": "001145", "seq": 1}},
			})
		})
	}
	mux.HandleFunc("/v2/transport/citybus/stop/001145", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"stop": "001145"}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cache := testStore(t, transit.CTB)
	p := operators.NewCitybus(testClient(server.URL), cache, zerolog.Nop())

	stops, err := p.StopList(context.Background(), "8", transit.Outbound, "default")
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "N/A", stops[0].Name[transit.LocaleEN])
	assert.Equal(t, "未有資料", stops[0].Name[transit.LocaleTC])
}
