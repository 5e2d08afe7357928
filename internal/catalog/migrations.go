package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureSchema creates the base tables if they don't exist yet, then runs
// every additive migration unconditionally. Each migration probes
// PRAGMA table_info before altering, so re-running against an
// already-migrated database is a no-op — the same idiom viant-agently's
// sqlite service uses for its conversation schema.
func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS mcp_sources (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			path_or_url TEXT NOT NULL,
			trust TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create mcp_sources: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS mcp_tools (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			command TEXT,
			args TEXT NOT NULL DEFAULT '[]',
			env TEXT NOT NULL DEFAULT '{}',
			capabilities TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			ping_ms INTEGER,
			last_error TEXT,
			config_json TEXT NOT NULL DEFAULT '{}',
			config_hash TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create mcp_tools: %w", err)
	}

	if err := applyMigrations(ctx, s.db); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_mcp_tools_source_name ON mcp_tools(source_id, name)`); err != nil {
		return fmt.Errorf("create name index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_mcp_tools_source_identifier ON mcp_tools(source_id, identifier)`); err != nil {
		return fmt.Errorf("create identifier index: %w", err)
	}
	return nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	steps := []func(context.Context, *sql.DB) error{
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_sources", "last_synced_at", "TEXT")
		},
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_sources", "read_only", "INTEGER NOT NULL DEFAULT 0")
		},
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_tools", "identifier", "TEXT")
		},
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_tools", "pending_config_json", "TEXT")
		},
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_tools", "pending_config_hash", "TEXT")
		},
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_tools", "conflict_status", "TEXT NOT NULL DEFAULT 'none'")
		},
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_tools", "read_only", "INTEGER NOT NULL DEFAULT 0")
		},
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_tools", "is_new", "INTEGER NOT NULL DEFAULT 1")
		},
		func(ctx context.Context, db *sql.DB) error {
			return ensureColumn(ctx, db, "mcp_tools", "env_config", "TEXT NOT NULL DEFAULT '[]'")
		},
	}
	for _, step := range steps {
		if err := step(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

func tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// ensureColumn adds column to table with the given declaration if it is
// not already present. Safe to call repeatedly.
func ensureColumn(ctx context.Context, db *sql.DB, table, column, decl string) error {
	exists, err := tableExists(ctx, db, table)
	if err != nil {
		return fmt.Errorf("check table %s: %w", table, err)
	}
	if !exists {
		return nil
	}
	has, err := columnExists(ctx, db, table, column)
	if err != nil {
		return fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	if has {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}
