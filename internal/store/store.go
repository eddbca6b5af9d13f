// Package store persists bookmarked route queries and refresh job history
// in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/etapaper/etapaper/internal/transit"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a bookmark id does not exist.
var ErrNotFound = errors.New("bookmark not found")

// Bookmark is one saved route query plus its display ordering.
type Bookmark struct {
	ID        string
	Ordering  int
	Query     transit.RouteQuery
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefreshLog is one bookmark's outcome within a refresh job.
type RefreshLog struct {
	JobID      string
	BookmarkID string
	Company    transit.Company
	Status     string
	Message    string
	Latency    time.Duration
	CreatedAt  time.Time
}

// Refresh log statuses.
const (
	RefreshOK    = "ok"
	RefreshError = "error"
)

// Store wraps the SQLite database. SQLite allows one writer at a time, so
// the pool is pinned to a single connection.
type Store struct {
	db *sql.DB
}

// Open opens the database with WAL mode enabled and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal=WAL&_fk=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const bookmarkColumns = `id, ordering, company, route_no, direction, service_type, stop_id, locale, enabled, created_at, updated_at`

// ListBookmarks returns all bookmarks in display order.
func (s *Store) ListBookmarks(ctx context.Context) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks ORDER BY ordering, created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// EnabledBookmarks returns the bookmarks the refresh worker should serve,
// in display order.
func (s *Store) EnabledBookmarks(ctx context.Context) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE enabled = 1 ORDER BY ordering, created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// GetBookmark returns one bookmark by id.
func (s *Store) GetBookmark(ctx context.Context, id string) (Bookmark, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, id)
	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Bookmark{}, ErrNotFound
	}
	return b, err
}

// CreateBookmark validates and inserts a bookmark at the end of the
// display order, returning it with its generated id.
func (s *Store) CreateBookmark(ctx context.Context, q transit.RouteQuery) (Bookmark, error) {
	if err := q.Validate(); err != nil {
		return Bookmark{}, err
	}

	var next sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ordering) FROM bookmarks`).Scan(&next); err != nil {
		return Bookmark{}, fmt.Errorf("querying ordering: %w", err)
	}

	now := time.Now().UTC()
	b := Bookmark{
		ID:        uuid.New().String(),
		Ordering:  int(next.Int64) + 1,
		Query:     q,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookmarks (`+bookmarkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Ordering, string(q.Company), q.No, string(q.Direction), q.ServiceType,
		q.StopID, string(q.Locale), boolInt(b.Enabled), format(now), format(now))
	if err != nil {
		return Bookmark{}, fmt.Errorf("inserting bookmark: %w", err)
	}
	return b, nil
}

// UpdateBookmark replaces a bookmark's query and enabled flag.
func (s *Store) UpdateBookmark(ctx context.Context, id string, q transit.RouteQuery, enabled bool) (Bookmark, error) {
	if err := q.Validate(); err != nil {
		return Bookmark{}, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookmarks
		 SET company = ?, route_no = ?, direction = ?, service_type = ?, stop_id = ?, locale = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		string(q.Company), q.No, string(q.Direction), q.ServiceType, q.StopID,
		string(q.Locale), boolInt(enabled), format(now), id)
	if err != nil {
		return Bookmark{}, fmt.Errorf("updating bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Bookmark{}, ErrNotFound
	}
	return s.GetBookmark(ctx, id)
}

// DeleteBookmark removes a bookmark.
func (s *Store) DeleteBookmark(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderBookmarks rewrites the display order to match ids. Unknown ids
// are rejected; bookmarks missing from ids keep their relative order after
// the listed ones.
func (s *Store) ReorderBookmarks(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting reorder: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		res, err := tx.ExecContext(ctx,
			`UPDATE bookmarks SET ordering = ? WHERE id = ?`, i+1, id)
		if err != nil {
			return fmt.Errorf("reordering bookmark: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
	}
	return tx.Commit()
}

// AppendRefreshLog records one bookmark's outcome within a refresh job.
func (s *Store) AppendRefreshLog(ctx context.Context, l RefreshLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_logs (job_id, bookmark_id, company, status, message, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.JobID, l.BookmarkID, string(l.Company), l.Status, l.Message,
		l.Latency.Milliseconds(), format(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("inserting refresh log: %w", err)
	}
	return nil
}

// RecentRefreshLogs returns the latest log rows, newest first.
func (s *Store) RecentRefreshLogs(ctx context.Context, limit int) ([]RefreshLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, bookmark_id, company, status, message, latency_ms, created_at
		 FROM refresh_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying refresh logs: %w", err)
	}
	defer rows.Close()

	var logs []RefreshLog
	for rows.Next() {
		var (
			l         RefreshLog
			company   string
			latencyMS int64
			createdAt string
		)
		if err := rows.Scan(&l.JobID, &l.BookmarkID, &company, &l.Status,
			&l.Message, &latencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning refresh log: %w", err)
		}
		l.Company = transit.Company(company)
		l.Latency = time.Duration(latencyMS) * time.Millisecond
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// PruneRefreshLogs deletes log rows older than the retention window.
func (s *Store) PruneRefreshLogs(ctx context.Context, keep time.Duration) (int64, error) {
	cutoff := format(time.Now().UTC().Add(-keep))
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning refresh logs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row scanner) (Bookmark, error) {
	var (
		b                    Bookmark
		company, dir, locale string
		enabled              int
		createdAt, updatedAt string
	)
	err := row.Scan(&b.ID, &b.Ordering, &company, &b.Query.No, &dir,
		&b.Query.ServiceType, &b.Query.StopID, &locale, &enabled, &createdAt, &updatedAt)
	if err != nil {
		return Bookmark{}, err
	}
	b.Query.Company = transit.Company(company)
	b.Query.Direction = transit.Direction(dir)
	b.Query.Locale = transit.Locale(locale)
	b.Enabled = enabled != 0
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return b, nil
}

func format(t time.Time) string {
	return t.Format(time.RFC3339)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
