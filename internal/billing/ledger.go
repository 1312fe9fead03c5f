package billing

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage (
	session_id  TEXT PRIMARY KEY,
	region      TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	bytes       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS usage_ended_at ON usage (ended_at);
`

// Ledger is a Reporter that persists usage records in a SQLite database
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the ledger at path
func OpenLedger(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Report records one session's usage. A second report for the same session
// replaces the first.
func (l *Ledger) Report(ctx context.Context, usage models.Usage) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO usage (session_id, region, state, started_at, ended_at, duration_ms, bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		usage.SessionID,
		usage.Region,
		string(usage.State),
		usage.StartedAt.UnixMilli(),
		usage.EndedAt.UnixMilli(),
		usage.Duration.Milliseconds(),
		usage.Bytes,
	)
	if err != nil {
		return fmt.Errorf("failed to record usage for %s: %w", usage.SessionID, err)
	}
	return nil
}

// Totals aggregates every recorded session
func (l *Ledger) Totals(ctx context.Context) (models.UsageTotals, error) {
	var totals models.UsageTotals
	var durationMs int64

	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(duration_ms), 0),
		        COALESCE(SUM(bytes), 0)
		 FROM usage`,
		string(models.StateFailed),
	).Scan(&totals.Sessions, &totals.Failed, &durationMs, &totals.Bytes)
	if err != nil {
		return totals, fmt.Errorf("failed to read usage totals: %w", err)
	}

	totals.Duration = time.Duration(durationMs) * time.Millisecond
	return totals, nil
}

// Recent returns the last n records, newest first
func (l *Ledger) Recent(ctx context.Context, n int) ([]models.Usage, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, region, state, started_at, ended_at, duration_ms, bytes
		 FROM usage ORDER BY ended_at DESC, session_id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}
	defer rows.Close()

	var records []models.Usage
	for rows.Next() {
		var (
			u                         models.Usage
			state                     string
			startedAt, endedAt, durMs int64
		)
		if err := rows.Scan(&u.SessionID, &u.Region, &state, &startedAt, &endedAt, &durMs, &u.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		u.State = models.SessionState(state)
		u.StartedAt = time.UnixMilli(startedAt)
		u.EndedAt = time.UnixMilli(endedAt)
		u.Duration = time.Duration(durMs) * time.Millisecond
		records = append(records, u)
	}
	return records, rows.Err()
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}
