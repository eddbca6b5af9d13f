package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etapaper/etapaper/internal/upstream"
)

func fastConfig(name string) upstream.ClientConfig {
	cfg := upstream.DefaultClientConfig(name)
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	return cfg
}

func get(t *testing.T, c *upstream.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	return c.Do(req)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := get(t, upstream.NewClient(fastConfig("retry")), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_SurfacesLastResponseAfterExhaustion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := fastConfig("exhaust")
	cfg.MaxRetries = 2
	cfg.ReadyToTrip = func(gobreaker.Counts) bool { return false }

	resp, err := get(t, upstream.NewClient(cfg), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	// initial attempt plus two retries
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetry4xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := get(t, upstream.NewClient(fastConfig("clienterr")), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_OpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig("breaker")
	cfg.MaxRetries = 1
	cfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.TotalFailures >= 2
	}
	client := upstream.NewClient(cfg)

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, gobreaker.StateOpen, client.State())

	before := calls.Load()
	_, err = get(t, client, server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrCircuitOpen))
	assert.Equal(t, before, calls.Load())
}
