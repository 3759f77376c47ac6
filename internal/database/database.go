package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dbPath and applies the schema.
func Open(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	d := &Database{db: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return d, nil
}

// IsConnected checks if the connection is alive.
func (d *Database) IsConnected(ctx context.Context) bool {
	return d != nil && d.db != nil && d.db.PingContext(ctx) == nil
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raid_settings (
		guild_id TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL DEFAULT 0,
		action_type TEXT NOT NULL DEFAULT 'lockdown',
		join_threshold INTEGER NOT NULL DEFAULT 5,
		join_time_window_ms INTEGER NOT NULL DEFAULT 10000,
		account_age_days_min INTEGER NOT NULL DEFAULT 0,
		exempt_role_ids TEXT NOT NULL DEFAULT '[]',
		exempt_channel_ids TEXT NOT NULL DEFAULT '[]',
		alert_channel_id TEXT NOT NULL DEFAULT '',
		notify_role_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS raid_incidents (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		incident_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		action_taken TEXT NOT NULL,
		affected_member_ids TEXT NOT NULL DEFAULT '[]',
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_raid_incidents_guild_time ON raid_incidents(guild_id, timestamp DESC);

	CREATE TABLE IF NOT EXISTS lockdown_state (
		guild_id TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		locked_at INTEGER NOT NULL,
		snapshots TEXT NOT NULL DEFAULT '[]'
	);
	`

	_, err := d.db.Exec(schema)
	return err
}
