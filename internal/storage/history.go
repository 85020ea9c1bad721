package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// History archives finished days and flush attempts in SQLite.
type History struct {
	db *sql.DB

	upsertDay   *sql.Stmt
	insertFlush *sql.Stmt
}

// FlushRecord is one row of the flush log.
type FlushRecord struct {
	Timestamp time.Time
	Payloads  int
	OK        bool
	Detail    string
}

// OpenHistory opens (creating if needed) the history database at path and
// applies pending migrations.
func OpenHistory(ctx context.Context, path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// One connection keeps archive writes strictly ordered.
	db.SetMaxOpenConns(1)

	if err := NewMigrationRunner(db).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	h, err := NewHistory(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// SchemaVersion returns the highest applied migration version.
func (h *History) SchemaVersion(ctx context.Context) (int, error) {
	v, err := NewMigrationRunner(h.db).Version(ctx)
	if err != nil {
		return 0, fmt.Errorf("read history schema version: %w", err)
	}
	return v, nil
}

// NewHistory wraps an already-opened and migrated database.
func NewHistory(db *sql.DB) (*History, error) {
	h := &History{db: db}
	var err error

	h.upsertDay, err = db.Prepare(`
		INSERT INTO daily_summaries (day, minutes, keystrokes, lines_added, lines_removed, liveshare_minutes, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			minutes           = excluded.minutes,
			keystrokes        = excluded.keystrokes,
			lines_added       = excluded.lines_added,
			lines_removed     = excluded.lines_removed,
			liveshare_minutes = excluded.liveshare_minutes,
			archived_at       = excluded.archived_at,
			synced            = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare upsert day: %w", err)
	}

	h.insertFlush, err = db.Prepare(`INSERT INTO flush_log (ts, payloads, ok, detail) VALUES (?, ?, ?, ?)`)
	if err != nil {
		h.upsertDay.Close()
		return nil, fmt.Errorf("prepare insert flush: %w", err)
	}

	return h, nil
}

// ArchiveDay stores (or replaces) the totals of one finished day.
func (h *History) ArchiveDay(ctx context.Context, d DailySummary) error {
	if d.Day == "" {
		return errors.New("archive day: empty day")
	}
	if d.ArchivedAt.IsZero() {
		d.ArchivedAt = time.Now()
	}
	_, err := h.upsertDay.ExecContext(ctx,
		d.Day, d.Minutes, d.Keystrokes, d.LinesAdded, d.LinesRemoved, d.LiveshareMinutes,
		d.ArchivedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("archive day %s: %w", d.Day, err)
	}
	return nil
}

// Averages returns the mean daily totals over the most recent lastN
// archived days. With no archived days every average is 0.
func (h *History) Averages(ctx context.Context, lastN int) (Averages, error) {
	if lastN <= 0 {
		lastN = 30
	}
	var (
		a                             Averages
		minutes, keys, added, removed sql.NullFloat64
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(minutes), AVG(keystrokes), AVG(lines_added), AVG(lines_removed)
		FROM (SELECT * FROM daily_summaries ORDER BY day DESC LIMIT ?)
	`, lastN).Scan(&a.Days, &minutes, &keys, &added, &removed)
	if err != nil {
		return Averages{}, fmt.Errorf("average days: %w", err)
	}
	a.Minutes = minutes.Float64
	a.Keystrokes = keys.Float64
	a.LinesAdded = added.Float64
	a.LinesRemoved = removed.Float64
	return a, nil
}

// Days returns up to limit archived days, most recent first.
func (h *History) Days(ctx context.Context, limit int) ([]DailySummary, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT day, minutes, keystrokes, lines_added, lines_removed, liveshare_minutes, archived_at
		FROM daily_summaries ORDER BY day DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer rows.Close()

	days := []DailySummary{}
	for rows.Next() {
		var (
			d     DailySummary
			tsStr string
		)
		if err := rows.Scan(&d.Day, &d.Minutes, &d.Keystrokes, &d.LinesAdded, &d.LinesRemoved, &d.LiveshareMinutes, &tsStr); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		d.ArchivedAt, _ = parseTimestamp(tsStr)
		days = append(days, d)
	}
	return days, rows.Err()
}

// MarkSynced flags every archived day as uploaded.
func (h *History) MarkSynced(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, "UPDATE daily_summaries SET synced = 1 WHERE synced = 0"); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// Unsynced returns the number of archived days not yet uploaded.
func (h *History) Unsynced(ctx context.Context) (int, error) {
	var n int
	err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_summaries WHERE synced = 0").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unsynced: %w", err)
	}
	return n, nil
}

// RecordFlush appends one flush attempt to the log.
func (h *History) RecordFlush(ctx context.Context, r FlushRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	_, err := h.insertFlush.ExecContext(ctx, r.Timestamp.UTC().Format(time.RFC3339), r.Payloads, r.OK, r.Detail)
	if err != nil {
		return fmt.Errorf("record flush: %w", err)
	}
	return nil
}

// LastFlush returns the most recent flush attempt. The bool is false when
// the log is empty.
func (h *History) LastFlush(ctx context.Context) (FlushRecord, bool, error) {
	var (
		r     FlushRecord
		tsStr string
	)
	err := h.db.QueryRowContext(ctx,
		"SELECT ts, payloads, ok, detail FROM flush_log ORDER BY id DESC LIMIT 1",
	).Scan(&tsStr, &r.Payloads, &r.OK, &r.Detail)
	if errors.Is(err, sql.ErrNoRows) {
		return FlushRecord{}, false, nil
	}
	if err != nil {
		return FlushRecord{}, false, fmt.Errorf("last flush: %w", err)
	}
	r.Timestamp, _ = parseTimestamp(tsStr)
	return r, true, nil
}

// Close releases prepared statements and the database.
func (h *History) Close() error {
	for _, stmt := range []*sql.Stmt{h.upsertDay, h.insertFlush} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return h.db.Close()
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}
