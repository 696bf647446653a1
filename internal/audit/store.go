// Package audit keeps a local, append-only trail of the directory
// mutations issued from this machine. Recording is best-effort and a nil
// *Recorder is a valid no-op sink, so callers never have to guard.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// walCheckpointInterval is how often we checkpoint the WAL file to
// prevent unbounded growth during long console sessions.
const walCheckpointInterval = 5 * time.Minute

// Recorder is a SQLite-backed audit trail.
type Recorder struct {
	db        *sql.DB
	log       *slog.Logger
	stopCh    chan struct{} // signals background goroutines to stop
	stoppedCh chan struct{} // signals background goroutines have stopped
	closeOnce sync.Once     // ensures Close() is idempotent
	closeErr  error
}

// Open opens (or creates) the audit database at path. The parent
// directory is created if missing. The database is opened with WAL mode
// enabled.
func Open(path string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles concurrency better with single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}

	r := &Recorder{
		db:        db,
		log:       logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run audit migrations: %w", err)
	}

	go r.walCheckpointLoop()

	return r, nil
}

// Close closes the database connection. It is safe to call Close
// multiple times, and on a nil Recorder.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		close(r.stopCh)
		<-r.stoppedCh

		// Final checkpoint before closing to merge WAL into main db
		_, _ = r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		r.closeErr = r.db.Close()
	})
	return r.closeErr
}

// walCheckpointLoop periodically checkpoints the WAL file.
func (r *Recorder) walCheckpointLoop() {
	defer close(r.stoppedCh)

	ticker := time.NewTicker(walCheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				r.log.Warn("audit WAL checkpoint failed", "error", err)
			}
		}
	}
}

// migrate runs database migrations to ensure the schema is up to date.
func (r *Recorder) migrate(ctx context.Context) error {
	currentVersion := 0
	row := r.db.QueryRowContext(ctx, `
		SELECT version FROM schema_meta ORDER BY version DESC LIMIT 1
	`)
	if err := row.Scan(&currentVersion); err != nil {
		if err == sql.ErrNoRows || isTableNotFoundError(err) {
			currentVersion = 0
		} else {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{version: 1, sql: migrationV1},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		if _, err := r.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration v%d failed: %w", m.version, err)
		}

		_, err := r.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO schema_meta (version, applied_at_unix_ms)
			VALUES (?, ?)
		`, m.version, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// isTableNotFoundError checks if the error indicates a missing table.
func isTableNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table") ||
		strings.Contains(err.Error(), "does not exist")
}

// migrationV1 creates the initial schema.
const migrationV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_meta (
  version INTEGER PRIMARY KEY,
  applied_at_unix_ms INTEGER NOT NULL
);

-- Audit trail of directory mutations
CREATE TABLE IF NOT EXISTS audit_log (
  id TEXT PRIMARY KEY,
  recorded_at_unix_ms INTEGER NOT NULL,
  op TEXT NOT NULL,
  entity_id TEXT NOT NULL DEFAULT '',
  target_id TEXT NOT NULL DEFAULT '',
  request_id TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_recorded ON audit_log(recorded_at_unix_ms DESC);
CREATE INDEX IF NOT EXISTS idx_audit_op ON audit_log(op);
`
