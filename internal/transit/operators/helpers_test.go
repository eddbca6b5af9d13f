package operators_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/etapaper/etapaper/internal/transit"
	"github.com/etapaper/etapaper/internal/transit/catalog"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
)

// testClient points every upstream host at one test server.
func testClient(serverURL string) *hkdata.Client {
	return hkdata.New(hkdata.Config{
		HTTPClient:      http.DefaultClient,
		EtabusBaseURL:   serverURL,
		RtBaseURL:       serverURL,
		OpendataBaseURL: serverURL,
		Logger:          zerolog.Nop(),
	})
}

func testStore(t *testing.T, company transit.Company) *catalog.Store {
	t.Helper()
	s, err := catalog.NewStore(t.TempDir(), company, 30, zerolog.Nop())
	require.NoError(t, err)
	return s
}

// seedCatalog writes a route list and one bound's stop list into the
// store so route resolution runs without upstream calls.
func seedCatalog(t *testing.T, s *catalog.Store, routes map[string]transit.RouteInfo, q transit.RouteQuery, stops []transit.Stop) {
	t.Helper()
	ctx := context.Background()

	_, err := s.RouteList(ctx, func(context.Context) (map[string]transit.RouteInfo, error) {
		return routes, nil
	})
	require.NoError(t, err)

	_, err = s.StopList(ctx, q.No, q.Direction, q.ServiceType, func(context.Context) ([]transit.Stop, error) {
		return stops, nil
	})
	require.NoError(t, err)
}

func namedStop(id string, seq int, tc, en string) transit.Stop {
	return transit.Stop{
		ID:  id,
		Seq: seq,
		Name: map[transit.Locale]string{
			transit.LocaleTC: tc,
			transit.LocaleEN: en,
		},
	}
}
