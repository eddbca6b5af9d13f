// Package operators implements the six transit operators behind the
// transit.Transport and transit.EtaSource interfaces. Each operator turns
// its own upstream document shapes, direction codes and error signalling
// into the unified model; the catalog store and open-data client are
// injected so the quirk handling stays the only per-operator code.
package operators

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/etapaper/etapaper/internal/transit"
)

// catalogWorkers bounds the fan-out of the N+1 catalog detail calls.
const catalogWorkers = 8

// Localized fallbacks for stops the upstream enumerations leave unnamed.
const (
	nameFallbackEN = "N/A"
	nameFallbackTC = "未有資料"
)

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// localized picks the display text for the locale from a TC/EN pair.
func localized(l transit.Locale, tc, en string) string {
	if l == transit.LocaleEN {
		return en
	}
	return tc
}

// parseHK parses the timestamp formats the upstream APIs use: RFC 3339
// with offset, or a bare second-precision local time in HKT.
func parseHK(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", ts, transit.HKT); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", ts, transit.HKT)
}

// seqInt parses sequence numbers that arrive as "1", "1.00" or similar.
func seqInt(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func hasDigit(s string) bool {
	return strings.ContainsFunc(s, unicode.IsDigit)
}

// minutesUntil is the whole-minute countdown from anchor to at, truncated
// toward zero to match the upstream minute displays.
func minutesUntil(anchor, at time.Time) int {
	return int(at.Sub(anchor).Seconds() / 60)
}

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(i int) *int { return &i }

// runPool runs fn for indices [0, n) with bounded concurrency, preserving
// input order in the result slice. The first error cancels the remaining
// work and is returned.
func runPool[T any](ctx context.Context, workers, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]T, n)
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				v, err := fn(cctx, i)
				if err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				results[i] = v
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-cctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func routeNotExist(c transit.Company, no string) error {
	return transit.NewError(c, "ROUTE_NOT_EXIST", "route "+no+" is not in the catalog", transit.ErrRouteNotExist)
}

func serviceTypeNotExist(c transit.Company, serviceType string) error {
	return transit.NewError(c, "SERVICE_TYPE_NOT_EXIST", "no service type "+serviceType, transit.ErrServiceTypeNotExist)
}
