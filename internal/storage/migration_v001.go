package storage

import "database/sql"

// migrateV001 creates the history schema: archived daily summaries and the
// flush log. Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS daily_summaries (
			day               TEXT PRIMARY KEY,
			minutes           REAL NOT NULL DEFAULT 0,
			keystrokes        REAL NOT NULL DEFAULT 0,
			lines_added       REAL NOT NULL DEFAULT 0,
			lines_removed     REAL NOT NULL DEFAULT 0,
			liveshare_minutes REAL NOT NULL DEFAULT 0,
			archived_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS flush_log (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			ts       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			payloads INTEGER NOT NULL DEFAULT 0,
			ok       BOOLEAN NOT NULL DEFAULT 0,
			detail   TEXT NOT NULL DEFAULT ''
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_flush_log_ts ON flush_log(ts)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// migrateV002 records which days were uploaded as part of a flush so the
// history listing can show unsynced days.
func migrateV002(tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE daily_summaries ADD COLUMN synced BOOLEAN NOT NULL DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS idx_daily_summaries_synced ON daily_summaries(synced)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
