// Package worker runs the periodic bookmark refresh job that keeps
// downstream displays supplied with fresh predictions.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/etapaper/etapaper/internal/store"
	"github.com/etapaper/etapaper/internal/telemetry"
	"github.com/etapaper/etapaper/internal/transit"
)

// Sink receives one bookmark's refreshed predictions. Implementations
// push to whatever renders them, an e-paper frame buffer, a webhook, a
// message queue.
type Sink interface {
	Publish(ctx context.Context, bookmark store.Bookmark, eta transit.Eta) error
}

// EtaFetcher resolves a route query to predictions. *operators.Factory
// satisfies it.
type EtaFetcher interface {
	Etas(ctx context.Context, q transit.RouteQuery) (transit.Eta, error)
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Concurrency is the number of bookmarks fetched in parallel.
	// Default: 4.
	Concurrency int

	// Timeout bounds one bookmark's fetch plus publish.
	// Default: 30 seconds.
	Timeout time.Duration

	// LogRetention is how long refresh log rows are kept.
	// Default: 7 days.
	LogRetention time.Duration
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.LogRetention <= 0 {
		c.LogRetention = 7 * 24 * time.Hour
	}
	return c
}

// RefreshJob fetches predictions for every enabled bookmark and hands them
// to the sink.
type RefreshJob struct {
	config  RefreshConfig
	fetcher EtaFetcher
	store   *store.Store
	sink    Sink
	logger  zerolog.Logger

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(cfg RefreshConfig, fetcher EtaFetcher, st *store.Store, sink Sink, logger zerolog.Logger) *RefreshJob {
	outcomes, err := telemetry.Meter("worker").Int64Counter("refresh.bookmarks",
		metric.WithDescription("Bookmark refresh outcomes by status."))
	if err != nil {
		logger.Warn().Err(err).Msg("creating refresh counter")
	}
	return &RefreshJob{
		config:   cfg.withDefaults(),
		fetcher:  fetcher,
		store:    st,
		sink:     sink,
		logger:   logger,
		tracer:   telemetry.Tracer("worker"),
		outcomes: outcomes,
	}
}

// RefreshResult summarizes one job run.
type RefreshResult struct {
	JobID      string
	StartTime  time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Errors     []RefreshError
}

// RefreshError is one bookmark's failure within a run.
type RefreshError struct {
	BookmarkID string
	Company    transit.Company
	Error      string
}

// Run executes one refresh cycle over all enabled bookmarks.
func (j *RefreshJob) Run(ctx context.Context) (*RefreshResult, error) {
	result := &RefreshResult{
		JobID:     uuid.New().String(),
		StartTime: time.Now(),
	}

	ctx, span := j.tracer.Start(ctx, "refresh.run",
		trace.WithAttributes(attribute.String("job_id", result.JobID)))
	defer span.End()

	bookmarks, err := j.store.EnabledBookmarks(ctx)
	if err != nil {
		return nil, err
	}
	result.Total = len(bookmarks)

	j.logger.Info().
		Str("job_id", result.JobID).
		Int("bookmarks", len(bookmarks)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting bookmark refresh")

	type outcome struct {
		bookmark store.Bookmark
		err      error
		latency  time.Duration
	}

	jobs := make(chan store.Bookmark)
	outcomes := make(chan outcome, len(bookmarks))

	var wg sync.WaitGroup
	for w := 0; w < j.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				start := time.Now()
				err := j.refreshOne(ctx, b)
				outcomes <- outcome{bookmark: b, err: err, latency: time.Since(start)}
			}
		}()
	}

	for _, b := range bookmarks {
		jobs <- b
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		log := store.RefreshLog{
			JobID:      result.JobID,
			BookmarkID: o.bookmark.ID,
			Company:    o.bookmark.Query.Company,
			Status:     store.RefreshOK,
			Latency:    o.latency,
		}
		if o.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				BookmarkID: o.bookmark.ID,
				Company:    o.bookmark.Query.Company,
				Error:      o.err.Error(),
			})
			log.Status = store.RefreshError
			log.Message = o.err.Error()
			j.logger.Warn().
				Str("job_id", result.JobID).
				Str("bookmark_id", o.bookmark.ID).
				Str("company", string(o.bookmark.Query.Company)).
				Err(o.err).
				Msg("bookmark refresh failed")
		} else {
			result.Successful++
		}
		if j.outcomes != nil {
			j.outcomes.Add(ctx, 1, metric.WithAttributes(
				attribute.String("company", string(o.bookmark.Query.Company)),
				attribute.String("status", log.Status)))
		}
		if err := j.store.AppendRefreshLog(ctx, log); err != nil {
			j.logger.Error().Err(err).Msg("writing refresh log")
		}
	}

	if pruned, err := j.store.PruneRefreshLogs(ctx, j.config.LogRetention); err != nil {
		j.logger.Error().Err(err).Msg("pruning refresh logs")
	} else if pruned > 0 {
		j.logger.Debug().Int64("rows", pruned).Msg("pruned refresh logs")
	}

	result.Duration = time.Since(result.StartTime)
	span.SetAttributes(
		attribute.Int("bookmarks.total", result.Total),
		attribute.Int("bookmarks.failed", result.Failed))
	j.logger.Info().
		Str("job_id", result.JobID).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("bookmark refresh completed")
	return result, nil
}

func (j *RefreshJob) refreshOne(ctx context.Context, b store.Bookmark) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	eta, err := j.fetcher.Etas(ctx, b.Query)
	if err != nil {
		return err
	}
	return j.sink.Publish(ctx, b, eta)
}

// Runner drives the refresh job on a fixed interval until the context is
// cancelled. One cycle runs immediately at start.
type Runner struct {
	Job      *RefreshJob
	Interval time.Duration
	Logger   zerolog.Logger
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Job.Run(ctx); err != nil {
			r.Logger.Error().Err(err).Msg("refresh cycle failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
