package catalog_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
)

func testRoutes() map[string]transit.RouteInfo {
	return map[string]transit.RouteInfo{
		"1A": {
			Outbound: []transit.Bound{{
				RouteID:     "1A_outbound_1",
				ServiceType: "1",
				Orig:        transit.Stop{ID: "A", Seq: 1, Name: map[transit.Locale]string{transit.LocaleEN: "Alpha"}},
				Dest:        transit.Stop{ID: "Z", Seq: 30, Name: map[transit.Locale]string{transit.LocaleEN: "Zulu"}},
			}},
		},
	}
}

func newStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.NewStore(t.TempDir(), transit.KMB, 30, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestRouteList_FetchesOnceThenMemoizes(t *testing.T) {
	s := newStore(t)
	calls := 0
	fetch := func(context.Context) (map[string]transit.RouteInfo, error) {
		calls++
		return testRoutes(), nil
	}

	for i := 0; i < 3; i++ {
		routes, err := s.RouteList(context.Background(), fetch)
		require.NoError(t, err)
		assert.Contains(t, routes, "1A")
	}
	assert.Equal(t, 1, calls)

	// The record survives on disk with its wrapper shape.
	raw, err := os.ReadFile(s.RouteListFile())
	require.NoError(t, err)
	var rec struct {
		LastUpdate string          `json:"last_update"`
		Data       json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &rec))
	_, err = time.Parse("2006-01-02T15:04:05", rec.LastUpdate)
	assert.NoError(t, err)
}

func TestRouteList_RefetchesWhenOutdated(t *testing.T) {
	s := newStore(t)

	stale := map[string]any{
		"last_update": time.Now().AddDate(0, 0, -45).Format("2006-01-02T15:04:05"),
		"data":        testRoutes(),
	}
	raw, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.RouteListFile(), raw, 0o644))

	calls := 0
	fetch := func(context.Context) (map[string]transit.RouteInfo, error) {
		calls++
		return testRoutes(), nil
	}
	_, err = s.RouteList(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRouteList_FreshDiskRecordSkipsFetch(t *testing.T) {
	s := newStore(t)

	fresh := map[string]any{
		"last_update": time.Now().Format("2006-01-02T15:04:05"),
		"data":        testRoutes(),
	}
	raw, err := json.Marshal(fresh)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.RouteListFile(), raw, 0o644))

	routes, err := s.RouteList(context.Background(), func(context.Context) (map[string]transit.RouteInfo, error) {
		t.Fatal("fetch should not be called for a fresh record")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Contains(t, routes, "1A")
}

func TestStopList_FileNaming(t *testing.T) {
	s := newStore(t)
	path := s.StopListFile("1a", transit.Outbound, "Default")
	assert.Equal(t, "1A-outbound-default.json", filepath.Base(path))
	assert.Equal(t, "routes", filepath.Base(filepath.Dir(path)))
}

func TestStopList_RoundTrip(t *testing.T) {
	s := newStore(t)
	stops := []transit.Stop{
		{ID: "A", Seq: 1, Name: map[transit.Locale]string{transit.LocaleEN: "Alpha"}},
		{ID: "B", Seq: 2, Name: map[transit.Locale]string{transit.LocaleEN: "Bravo"}},
	}

	calls := 0
	fetch := func(context.Context) ([]transit.Stop, error) {
		calls++
		return stops, nil
	}

	got, err := s.StopList(context.Background(), "1A", transit.Outbound, "1", fetch)
	require.NoError(t, err)
	assert.Equal(t, stops, got)

	// Second read comes from disk.
	got, err = s.StopList(context.Background(), "1A", transit.Outbound, "1", fetch)
	require.NoError(t, err)
	assert.Equal(t, stops, got)
	assert.Equal(t, 1, calls)
}

func TestRouteList_FetchErrorPropagates(t *testing.T) {
	s := newStore(t)
	wantErr := transit.NewError(transit.KMB, "REQUEST_FAILED", "down", transit.ErrUpstream)

	_, err := s.RouteList(context.Background(), func(context.Context) (map[string]transit.RouteInfo, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, transit.ErrUpstream)

	// No cache file is written on failure.
	_, statErr := os.Stat(s.RouteListFile())
	assert.True(t, os.IsNotExist(statErr))
}
