// Package audit is the settled-task audit log (SPEC_FULL.md DOMAIN STACK):
// a postgres-backed append record of tasks that have reached a terminal
// state (fulfilled or rejected). It never stores pending work and never
// resumes anything on restart — the pool's in-memory queues remain the
// only source of truth for what still needs to run. Grounded on the
// teacher's internal/db/postgres.go (connection setup, migrations) and
// internal/queue/database.go (claim/complete/fail query shape).
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Record is one settled task, written exactly once.
type Record struct {
	TaskID      string
	Method      string
	WorkerIndex int
	Attempt     int
	Success     bool
	ErrorKind   string
	ErrorMsg    string
	DurationMs  int64
	SettledAt   time.Time
}

// Log writes settled-task records to Postgres.
type Log struct {
	db *sql.DB
}

func Open(ctx context.Context, databaseURL string) (*Log, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping postgres: %w", err)
	}

	return &Log{db: db}, nil
}

func (l *Log) Close() error { return l.db.Close() }

// Migrate applies the audit schema from migrationsPath.
func (l *Log) Migrate(migrationsPath string) error {
	driver, err := postgres.WithInstance(l.db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+absPath, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Append records one settled task. Failures to write the audit trail are
// logged by the caller, never surfaced to the task's own promise — a
// missing audit row must not fail a task that actually succeeded.
func (l *Log) Append(ctx context.Context, r Record) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO task_audit
			(id, task_id, method, worker_index, attempt, success, error_kind, error_msg, duration_ms, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(), r.TaskID, r.Method, r.WorkerIndex, r.Attempt,
		r.Success, r.ErrorKind, r.ErrorMsg, r.DurationMs, r.SettledAt)
	return err
}

// RecentFailures returns the most recent failed tasks, newest first, for
// an admin-surface "recent errors" view.
func (l *Log) RecentFailures(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT task_id, method, worker_index, attempt, success, error_kind, error_msg, duration_ms, settled_at
		FROM task_audit
		WHERE success = false
		ORDER BY settled_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.TaskID, &r.Method, &r.WorkerIndex, &r.Attempt,
			&r.Success, &r.ErrorKind, &r.ErrorMsg, &r.DurationMs, &r.SettledAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
