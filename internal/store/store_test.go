package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etapaper/etapaper/internal/store"
	"github.com/etapaper/etapaper/internal/transit"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleQuery(no string) transit.RouteQuery {
	return transit.RouteQuery{
		Company: transit.KMB, No: no, Direction: transit.Outbound,
		StopID: "STOP1", ServiceType: "1", Locale: transit.LocaleTC,
	}
}

func TestBookmarks_CreateAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.CreateBookmark(ctx, sampleQuery("1A"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Ordering)
	assert.True(t, created.Enabled)

	got, err := s.GetBookmark(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, sampleQuery("1A"), got.Query)
	assert.True(t, got.Enabled)
}

func TestBookmarks_CreateRejectsInvalidQuery(t *testing.T) {
	s := newStore(t)

	q := sampleQuery("1A")
	q.StopID = ""
	_, err := s.CreateBookmark(context.Background(), q)
	assert.Error(t, err)

	list, err := s.ListBookmarks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBookmarks_OrderingGrows(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i, no := range []string{"1A", "6", "118"} {
		b, err := s.CreateBookmark(ctx, sampleQuery(no))
		require.NoError(t, err)
		assert.Equal(t, i+1, b.Ordering)
	}

	list, err := s.ListBookmarks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "1A", list[0].Query.No)
	assert.Equal(t, "118", list[2].Query.No)
}

func TestBookmarks_UpdateAndDisable(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.CreateBookmark(ctx, sampleQuery("1A"))
	require.NoError(t, err)

	q := sampleQuery("6")
	q.Locale = transit.LocaleEN
	updated, err := s.UpdateBookmark(ctx, created.ID, q, false)
	require.NoError(t, err)
	assert.Equal(t, "6", updated.Query.No)
	assert.Equal(t, transit.LocaleEN, updated.Query.Locale)
	assert.False(t, updated.Enabled)

	enabled, err := s.EnabledBookmarks(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	_, err = s.UpdateBookmark(ctx, "missing", q, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBookmarks_Delete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.CreateBookmark(ctx, sampleQuery("1A"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteBookmark(ctx, created.ID))
	_, err = s.GetBookmark(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteBookmark(ctx, created.ID), store.ErrNotFound)
}

func TestBookmarks_Reorder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var ids []string
	for _, no := range []string{"1A", "6", "118"} {
		b, err := s.CreateBookmark(ctx, sampleQuery(no))
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	require.NoError(t, s.ReorderBookmarks(ctx, []string{ids[2], ids[0], ids[1]}))

	list, err := s.ListBookmarks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "118", list[0].Query.No)
	assert.Equal(t, "1A", list[1].Query.No)
	assert.Equal(t, "6", list[2].Query.No)

	// Unknown ids roll the whole reorder back.
	err = s.ReorderBookmarks(ctx, []string{ids[0], "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err = s.ListBookmarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, "118", list[0].Query.No)
}

func TestRefreshLogs_AppendAndRecent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i, status := range []string{store.RefreshOK, store.RefreshError} {
		require.NoError(t, s.AppendRefreshLog(ctx, store.RefreshLog{
			JobID:      "job-1",
			BookmarkID: "bm-1",
			Company:    transit.KMB,
			Status:     status,
			Message:    "",
			Latency:    time.Duration(i+1) * 100 * time.Millisecond,
		}))
	}

	logs, err := s.RecentRefreshLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	// newest first
	assert.Equal(t, store.RefreshError, logs[0].Status)
	assert.Equal(t, 200*time.Millisecond, logs[0].Latency)
	assert.Equal(t, transit.KMB, logs[0].Company)

	logs, err = s.RecentRefreshLogs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRefreshLogs_Prune(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendRefreshLog(ctx, store.RefreshLog{
		JobID: "job-1", BookmarkID: "bm-1", Company: transit.KMB, Status: store.RefreshOK,
	}))

	// Fresh rows survive a generous retention window.
	pruned, err := s.PruneRefreshLogs(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	// A negative retention prunes everything written so far.
	pruned, err = s.PruneRefreshLogs(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	logs, err := s.RecentRefreshLogs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
