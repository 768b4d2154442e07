// Package history keeps a local log of fetch runs in SQLite so operators
// can see when each area was last refreshed and how the runs went.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Entry is one recorded fetch run.
type Entry struct {
	ID        string        `json:"id"`
	Area      string        `json:"area"`
	Endpoint  string        `json:"endpoint"`
	Status    string        `json:"status"`
	Records   int           `json:"records"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Statuses for Entry.Status.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// AreaStats aggregates the log per area.
type AreaStats struct {
	Area       string    `json:"area"`
	Fetches    int       `json:"fetches"`
	Failures   int       `json:"failures"`
	LastStatus string    `json:"last_status"`
	LastCount  int       `json:"last_count"`
	LastFetch  time.Time `json:"last_fetch"`
}

// Log is the SQLite-backed fetch log.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the log database at path and configures WAL
// mode.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "history: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "history: exec %s", pragma)
		}
	}
	return &Log{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS fetch_log (
	id          TEXT PRIMARY KEY,
	area        TEXT NOT NULL,
	endpoint    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	records     INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetch_log_area ON fetch_log(area);
CREATE INDEX IF NOT EXISTS idx_fetch_log_created_at ON fetch_log(created_at);
`

func (l *Log) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "history: migrate")
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends one fetch run to the log. The entry's ID and CreatedAt
// are filled in when empty.
func (l *Log) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetch_log (id, area, endpoint, status, records, skipped, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Area, e.Endpoint, e.Status, e.Records, e.Skipped, e.Duration.Milliseconds(), e.Error, e.CreatedAt,
	)
	if err != nil {
		return Entry{}, eris.Wrapf(err, "history: insert entry for %s", e.Area)
	}
	return e, nil
}

// Recent returns the newest entries across all areas.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return l.query(ctx,
		`SELECT id, area, endpoint, status, records, skipped, duration_ms, error, created_at
		 FROM fetch_log ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// ByArea returns the newest entries for one area.
func (l *Log) ByArea(ctx context.Context, area string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return l.query(ctx,
		`SELECT id, area, endpoint, status, records, skipped, duration_ms, error, created_at
		 FROM fetch_log WHERE area = ? ORDER BY created_at DESC, id LIMIT ?`, area, limit)
}

// Stats aggregates the whole log per area, sorted by area name.
func (l *Log) Stats(ctx context.Context) ([]AreaStats, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT area, status, records, created_at
		 FROM fetch_log ORDER BY area, created_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "history: stats")
	}
	defer rows.Close()

	var out []AreaStats
	for rows.Next() {
		var (
			area, status string
			records      int
			createdAt    time.Time
		)
		if err := rows.Scan(&area, &status, &records, &createdAt); err != nil {
			return nil, eris.Wrap(err, "history: scan stats row")
		}

		// Rows arrive newest-first within each area, so the first row for
		// an area defines its last-run fields.
		if len(out) == 0 || out[len(out)-1].Area != area {
			out = append(out, AreaStats{
				Area:       area,
				LastStatus: status,
				LastCount:  records,
				LastFetch:  createdAt,
			})
		}
		s := &out[len(out)-1]
		s.Fetches++
		if status == StatusFailed {
			s.Failures++
		}
	}
	return out, eris.Wrap(rows.Err(), "history: stats iterate")
}

// Prune deletes all but the newest keep entries per area and returns how
// many rows were removed.
func (l *Log) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		keep = 50
	}
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM fetch_log WHERE id NOT IN (
			SELECT id FROM fetch_log f
			WHERE (SELECT COUNT(*) FROM fetch_log g
			       WHERE g.area = f.area AND (g.created_at > f.created_at
			          OR (g.created_at = f.created_at AND g.id > f.id))) < ?
		 )`, keep)
	if err != nil {
		return 0, eris.Wrap(err, "history: prune")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "history: prune rows affected")
}

func (l *Log) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "history: query entries")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			durationMS int64
		)
		err := rows.Scan(&e.ID, &e.Area, &e.Endpoint, &e.Status, &e.Records, &e.Skipped, &durationMS, &e.Error, &e.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "history: scan entry")
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "history: iterate entries")
}
