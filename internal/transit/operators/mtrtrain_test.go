package operators_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/operators"
)

func trainQuery() transit.RouteQuery {
	return transit.RouteQuery{
		Company: transit.MTRTrain, No: "EAL", Direction: transit.Inbound,
		StopID: "SHT", ServiceType: "default", Locale: transit.LocaleEN,
	}
}

func trainStops() []transit.Stop {
	return []transit.Stop{
		namedStop("ADM", 1, "金鐘", "Admiralty"),
		namedStop("SHT", 5, "沙田", "Sha Tin"),
		namedStop("TAW", 6, "大圍", "Tai Wai"),
		namedStop("LOW", 12, "羅湖", "Lo Wu"),
	}
}

func trainRoutes() map[string]transit.RouteInfo {
	return map[string]transit.RouteInfo{
		"EAL": {Inbound: []transit.Bound{{
			RouteID:     "EAL_inbound_default",
			ServiceType: "default",
			Orig:        namedStop("ADM", 1, "金鐘", "Admiralty"),
			Dest:        namedStop("LOW", 12, "羅湖", "Lo Wu"),
		}}},
	}
}

func newTrainRoute(t *testing.T, p *operators.Train) *transit.Route {
	t.Helper()
	route, err := transit.NewRoute(context.Background(), trainQuery(), p)
	require.NoError(t, err)
	return route
}

func trainServer(t *testing.T, resp map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transport/mtr/getSchedule.php", r.URL.Path)
		assert.Equal(t, "EAL", r.URL.Query().Get("line"))
		assert.Equal(t, "SHT", r.URL.Query().Get("sta"))
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestTrain_Etas(t *testing.T) {
	server := trainServer(t, map[string]any{
		"status":    1,
		"curr_time": "2026-08-25 10:00:00",
		"data": map[string]any{
			"EAL-SHT": map[string]any{
				"UP": []map[string]any{
					{"time": "2026-08-25 10:01:00", "dest": "LOW", "plat": "1", "seq": "1"},
					{"time": "2026-08-25 10:08:30", "dest": "TAW", "plat": "1", "seq": "2"},
				},
				"DOWN": []map[string]any{
					{"time": "2026-08-25 10:02:00", "dest": "ADM", "plat": "2", "seq": "1"},
				},
			},
		},
	})
	defer server.Close()

	cache := testStore(t, transit.MTRTrain)
	seedCatalog(t, cache, trainRoutes(), trainQuery(), trainStops())
	p := operators.NewTrain(testClient(server.URL), cache, zerolog.Nop())

	eta, err := p.Etas(context.Background(), newTrainRoute(t, p))
	require.NoError(t, err)
	require.Nil(t, eta.Error)
	require.Len(t, eta.Etas, 2)

	// 60s out is inside the arriving window.
	first := eta.Etas[0]
	assert.Equal(t, "Lo Wu", first.Destination)
	assert.True(t, first.IsArriving)
	assert.Equal(t, 1, *first.EtaMinute)
	assert.Equal(t, "1", first.Extras["platform"])

	second := eta.Etas[1]
	assert.Equal(t, "Tai Wai", second.Destination)
	assert.False(t, second.IsArriving)
	assert.Equal(t, 8, *second.EtaMinute)
}

func TestTrain_Etas_DestinationCodeFallback(t *testing.T) {
	server := trainServer(t, map[string]any{
		"status":    1,
		"curr_time": "2026-08-25 10:00:00",
		"data": map[string]any{
			"EAL-SHT": map[string]any{
				"UP": []map[string]any{
					// Destination outside this route's stop list.
					{"time": "2026-08-25 10:05:00", "dest": "LMC", "plat": "1", "seq": "1"},
				},
			},
		},
	})
	defer server.Close()

	cache := testStore(t, transit.MTRTrain)
	seedCatalog(t, cache, trainRoutes(), trainQuery(), trainStops())
	p := operators.NewTrain(testClient(server.URL), cache, zerolog.Nop())

	eta, err := p.Etas(context.Background(), newTrainRoute(t, p))
	require.NoError(t, err)
	require.Len(t, eta.Etas, 1)
	assert.Equal(t, "LMC", eta.Etas[0].Destination)
}

func TestTrain_Etas_NoDirectionData(t *testing.T) {
	server := trainServer(t, map[string]any{
		"status":    1,
		"curr_time": "2026-08-25 10:00:00",
		"data": map[string]any{
			"EAL-SHT": map[string]any{
				"DOWN": []map[string]any{
					{"time": "2026-08-25 10:02:00", "dest": "ADM", "plat": "2", "seq": "1"},
				},
			},
		},
	})
	defer server.Close()

	cache := testStore(t, transit.MTRTrain)
	seedCatalog(t, cache, trainRoutes(), trainQuery(), trainStops())
	p := operators.NewTrain(testClient(server.URL), cache, zerolog.Nop())

	eta, err := p.Etas(context.Background(), newTrainRoute(t, p))
	require.NoError(t, err)
	require.NotNil(t, eta.Error)
	assert.Equal(t, "No Data", eta.Error.Message)
}

func TestTrain_Etas_Suspended(t *testing.T) {
	server := trainServer(t, map[string]any{
		"status":  0,
		"message": "Train services are suspended between Sha Tin and Tai Po Market",
	})
	defer server.Close()

	cache := testStore(t, transit.MTRTrain)
	seedCatalog(t, cache, trainRoutes(), trainQuery(), trainStops())
	p := operators.NewTrain(testClient(server.URL), cache, zerolog.Nop())

	eta, err := p.Etas(context.Background(), newTrainRoute(t, p))
	require.NoError(t, err)
	require.NotNil(t, eta.Error)
	assert.Equal(t, "Train services are suspended between Sha Tin and Tai Po Market", eta.Error.Message)
}

func TestTrain_Etas_SpecialService(t *testing.T) {
	server := trainServer(t, map[string]any{
		"status":  0,
		"message": "Please refer to the announcement",
		"url":     "https://www.mtr.com.hk/alert/alert_title_wap.html",
	})
	defer server.Close()

	cache := testStore(t, transit.MTRTrain)
	seedCatalog(t, cache, trainRoutes(), trainQuery(), trainStops())
	p := operators.NewTrain(testClient(server.URL), cache, zerolog.Nop())

	eta, err := p.Etas(context.Background(), newTrainRoute(t, p))
	require.NoError(t, err)
	require.NotNil(t, eta.Error)
	assert.Equal(t, "Special Service in Effect", eta.Error.Message)
}

func TestTrain_RouteListShaping_Branches(t *testing.T) {
	csv := "Line Code,Direction,Station Code,Station ID,Chinese Name,English Name,Sequence\n" +
		"EAL,UT,ADM,1,金鐘,Admiralty,1.00\n" +
		"EAL,UT,SHT,5,沙田,Sha Tin,2.00\n" +
		"EAL,UT,LOW,12,羅湖,Lo Wu,3.00\n" +
		"EAL,DT,LOW,12,羅湖,Lo Wu,1.00\n" +
		"EAL,DT,ADM,1,金鐘,Admiralty,2.00\n" +
		"EAL,LMC-UT,ADM,1,金鐘,Admiralty,1.00\n" +
		"EAL,LMC-UT,LMC,13,落馬洲,Lok Ma Chau,2.00\n" +
		",,,,,,\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/mtr_lines_and_stations.csv", r.URL.Path)
		w.Write([]byte(csv))
	}))
	defer server.Close()

	cache := testStore(t, transit.MTRTrain)
	p := operators.NewTrain(testClient(server.URL), cache, zerolog.Nop())

	routes, err := p.RouteList(context.Background())
	require.NoError(t, err)
	require.Contains(t, routes, "EAL")
	require.Contains(t, routes, "EAL-LMC")

	main := routes["EAL"]
	require.Len(t, main.Outbound, 1)
	require.Len(t, main.Inbound, 1)
	assert.Equal(t, "LOW", main.Outbound[0].Dest.ID)

	branch := routes["EAL-LMC"]
	require.Len(t, branch.Outbound, 1)
	assert.Equal(t, "LMC", branch.Outbound[0].Dest.ID)

	stops, err := p.StopList(context.Background(), "EAL-LMC", transit.Outbound, "default")
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "Lok Ma Chau", stops[1].Name[transit.LocaleEN])
}
