// Package catalog is the on-disk, read-through cache for operator route
// and stop documents. Catalog data changes rarely, so records are kept for
// a configurable number of days and refetched lazily on read.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/transit"
)

// DefaultThresholdDays is how long a cached record stays fresh.
const DefaultThresholdDays = 30

// timeLayout matches the second-precision, offset-free timestamps the
// cache files carry. The wrapper format is an on-disk contract.
const timeLayout = "2006-01-02T15:04:05"

// record wraps a cached document with its write timestamp.
type record[T any] struct {
	LastUpdate string `json:"last_update"`
	Data       T      `json:"data"`
}

// Store caches one operator's catalog documents under a private directory.
// The route list document is additionally memoized in process memory; stop
// list documents are re-read from disk on every call.
//
// Concurrent refreshes of the same key are not deduplicated: refetches are
// idempotent overwrites and staleness bounds their frequency. Writes use
// last-writer-wins with no file locking.
type Store struct {
	dir       string
	threshold int
	logger    zerolog.Logger

	mu     sync.Mutex
	routes *record[map[string]transit.RouteInfo]
}

// NewStore creates the cache directory for an operator and returns its store.
func NewStore(root string, company transit.Company, thresholdDays int, logger zerolog.Logger) (*Store, error) {
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}
	dir := filepath.Join(root, string(company))
	if err := os.MkdirAll(filepath.Join(dir, "routes"), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog dir: %w", err)
	}
	return &Store{dir: dir, threshold: thresholdDays, logger: logger}, nil
}

// RouteListFile returns the path of the route list document.
func (s *Store) RouteListFile() string {
	return filepath.Join(s.dir, "routes.json")
}

// StopListFile returns the path of one bound's stop list document.
func (s *Store) StopListFile(no string, dir transit.Direction, serviceType string) string {
	name := fmt.Sprintf("%s-%s-%s.json", strings.ToUpper(no), dir, strings.ToLower(serviceType))
	return filepath.Join(s.dir, "routes", name)
}

// RouteList returns the cached route list, refetching through fetch when
// the record is missing or older than the threshold. A fetch failure
// propagates; there is no fallback to serving stale data.
func (s *Store) RouteList(ctx context.Context, fetch func(context.Context) (map[string]transit.RouteInfo, error)) (map[string]transit.RouteInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.routes == nil {
		var rec record[map[string]transit.RouteInfo]
		if err := readRecord(s.RouteListFile(), &rec); err != nil {
			s.logger.Info().Str("file", s.RouteListFile()).Msg("route list cache missing, fetching")
			return s.refreshRouteList(ctx, fetch)
		}
		s.routes = &rec
	}

	if s.stale(s.routes.LastUpdate) {
		s.logger.Info().Str("file", s.RouteListFile()).Msg("route list cache outdated, fetching")
		return s.refreshRouteList(ctx, fetch)
	}
	return s.routes.Data, nil
}

func (s *Store) refreshRouteList(ctx context.Context, fetch func(context.Context) (map[string]transit.RouteInfo, error)) (map[string]transit.RouteInfo, error) {
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	rec := record[map[string]transit.RouteInfo]{LastUpdate: now(), Data: data}
	if err := writeRecord(s.RouteListFile(), rec); err != nil {
		return nil, err
	}
	s.routes = &rec
	return data, nil
}

// StopList returns one bound's cached stop list, refetching through fetch
// when the record is missing or older than the threshold.
func (s *Store) StopList(ctx context.Context, no string, dir transit.Direction, serviceType string, fetch func(context.Context) ([]transit.Stop, error)) ([]transit.Stop, error) {
	path := s.StopListFile(no, dir, serviceType)

	var rec record[[]transit.Stop]
	if err := readRecord(path, &rec); err == nil && !s.stale(rec.LastUpdate) {
		return rec.Data, nil
	}

	s.logger.Info().Str("file", path).Msg("stop list cache missing or outdated, fetching")
	stops, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := writeRecord(path, record[[]transit.Stop]{LastUpdate: now(), Data: stops}); err != nil {
		return nil, err
	}
	return stops, nil
}

// Invalidate drops the in-memory route list memo; the next read goes back
// to disk. Intended for tests and manual cache resets.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = nil
}

func (s *Store) stale(lastUpdate string) bool {
	t, err := time.ParseInLocation(timeLayout, lastUpdate, time.Local)
	if err != nil {
		return true
	}
	return int(time.Since(t).Hours()/24) > s.threshold
}

func now() string {
	return time.Now().Format(timeLayout)
}

func readRecord(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func writeRecord(path string, rec any) error {
	raw, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding catalog record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing catalog record: %w", err)
	}
	return nil
}
