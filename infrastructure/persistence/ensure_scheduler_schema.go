package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var schedulerSchema = []string{
	`CREATE TABLE IF NOT EXISTS platform_connections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		connection_name TEXT NOT NULL DEFAULT '',
		account_id TEXT NOT NULL DEFAULT '',
		account_name TEXT NOT NULL DEFAULT '',
		access_token_ciphertext BYTEA NOT NULL,
		access_token_iv BYTEA NOT NULL,
		access_token_tag BYTEA NOT NULL,
		refresh_token_ciphertext BYTEA NULL,
		refresh_token_iv BYTEA NULL,
		refresh_token_tag BYTEA NULL,
		algorithm TEXT NOT NULL,
		expires_at TIMESTAMPTZ NULL,
		scopes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_tokens (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NULL,
		expires_at TIMESTAMPTZ NULL,
		scopes TEXT NOT NULL DEFAULT '',
		page_id TEXT NULL,
		page_name TEXT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS privacy_statuses (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		content_id TEXT NOT NULL,
		original_status TEXT NOT NULL,
		current_status TEXT NOT NULL,
		is_locked_by_user BOOLEAN NOT NULL DEFAULT FALSE,
		was_hidden_by_user BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, platform, content_id)
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_operations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		kind TEXT NOT NULL,
		fires_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		error TEXT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_scheduled_operations_pending
		ON scheduled_operations (user_id, platform, kind) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS ix_scheduled_operations_status_fires
		ON scheduled_operations (status, fires_at)`,
	`CREATE TABLE IF NOT EXISTS history_entries (
		id TEXT PRIMARY KEY,
		operation_id TEXT NULL UNIQUE,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		action TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		affected_items INTEGER NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL,
		error TEXT NULL,
		item_errors JSONB NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_history_entries_user_time
		ON history_entries (user_id, occurred_at DESC)`,
}

// EnsureSchedulerSchema creates the scheduler tables and adds columns introduced after the first release.
// Safe to call at startup.
func EnsureSchedulerSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, ddl := range schedulerSchema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("scheduler schema: %w", err)
		}
	}

	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"platform_connections", "key_version", "ALTER TABLE platform_connections ADD COLUMN key_version INTEGER NOT NULL DEFAULT 1"},
		{"platform_connections", "lookup_hash", "ALTER TABLE platform_connections ADD COLUMN lookup_hash TEXT NOT NULL DEFAULT ''"},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
