// internal/history/history.go
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run is one countdown as it ended.
type Run struct {
	ID        int64
	Outcome   string
	Total     time.Duration
	Remaining time.Duration
	StartedAt time.Time
	EndedAt   time.Time
}

// Elapsed is the part of the countdown that actually ran down.
func (r Run) Elapsed() time.Duration {
	return r.Total - r.Remaining
}

// Stats summarises the runs recorded in a period.
type Stats struct {
	Sessions  int
	Completed int
	Cancelled int
	Elapsed   time.Duration
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initTables() error {
	_, err := s.db.Exec(`
        CREATE TABLE IF NOT EXISTS runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            outcome TEXT NOT NULL,
            total_ms INTEGER NOT NULL,
            remaining_ms INTEGER NOT NULL,
            started_at INTEGER NOT NULL,
            ended_at INTEGER NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// Record appends run and fills in its ID.
func (s *Store) Record(ctx context.Context, run *Run) error {
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO runs (outcome, total_ms, remaining_ms, started_at, ended_at)
        VALUES (?, ?, ?, ?, ?)
    `, run.Outcome, run.Total.Milliseconds(), run.Remaining.Milliseconds(),
		run.StartedAt.UnixMilli(), run.EndedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	run.ID = id
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, outcome, total_ms, remaining_ms, started_at, ended_at
        FROM runs
        ORDER BY started_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                  Run
			totalMs, remainingMs int64
			startedAt, endedAt   int64
		)
		if err := rows.Scan(&run.ID, &run.Outcome, &totalMs, &remainingMs, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Total = time.Duration(totalMs) * time.Millisecond
		run.Remaining = time.Duration(remainingMs) * time.Millisecond
		run.StartedAt = time.UnixMilli(startedAt)
		run.EndedAt = time.UnixMilli(endedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats summarises the runs started at or after since.
func (s *Store) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	stats := &Stats{}
	var elapsedMs int64

	err := s.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN outcome = 'finished' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN outcome = 'cancelled' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(total_ms - remaining_ms), 0)
        FROM runs
        WHERE started_at >= ?
    `, since.UnixMilli()).Scan(&stats.Sessions, &stats.Completed, &stats.Cancelled, &elapsedMs)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	stats.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
