package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB opens a Postgres pool and pings it. The DB is returned even when the
// ping fails so callers can decide whether to continue.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return &DB{Client: db}, db.PingContext(pingCtx)
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS timetable (
		id TEXT PRIMARY KEY,
		day TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL DEFAULT '',
		subject_id TEXT REFERENCES subjects (id) ON DELETE SET NULL,
		subject_code TEXT NOT NULL DEFAULT '',
		subject_title TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		teacher TEXT NOT NULL DEFAULT '',
		UNIQUE (day, start_time)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		date DATE NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('Present', 'Absent', 'Canceled')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, subject_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_logs_user_date_idx ON attendance_logs (user_id, date DESC)`,
	`CREATE TABLE IF NOT EXISTS change_logs (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		changes JSONB NOT NULL DEFAULT '{}'::jsonb,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_change_logs_changed_by ON change_logs (changed_by, timestamp DESC)`,
}

// Migrate creates the tables the service needs if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
