package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS mapping_queue (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					merchant_raw TEXT NOT NULL,
					ticker_hint TEXT,
					status TEXT NOT NULL,
					proposal_ticker TEXT,
					proposal_category TEXT,
					proposal_confidence REAL,
					proposal_method TEXT,
					proposal_reasoning TEXT,
					decided_by TEXT,
					decided_at DATETIME,
					decision_notes TEXT,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_mapping_queue_status ON mapping_queue(status)`,
				`CREATE INDEX idx_mapping_queue_tenant ON mapping_queue(tenant_id)`,

				`CREATE TABLE IF NOT EXISTS resolver_rules (
					pattern TEXT PRIMARY KEY,
					ticker TEXT NOT NULL,
					category TEXT,
					confidence REAL NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS roundup_entries (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					original_amount TEXT NOT NULL,
					delta TEXT NOT NULL,
					fee TEXT NOT NULL,
					total_debit TEXT NOT NULL,
					status TEXT NOT NULL,
					sweep_batch_id TEXT,
					swept_at DATETIME,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_roundup_entries_user ON roundup_entries(user_id)`,

				`CREATE TABLE IF NOT EXISTS roundup_preferences (
					user_id TEXT PRIMARY KEY,
					fixed_amount TEXT NOT NULL,
					enabled INTEGER NOT NULL DEFAULT 1,
					updated_at DATETIME NOT NULL
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Track rule provenance and usage",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE resolver_rules ADD COLUMN source TEXT NOT NULL DEFAULT 'SYSTEM'`,
				`ALTER TABLE resolver_rules ADD COLUMN use_count INTEGER NOT NULL DEFAULT 0`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index round-up entries for sweep queries",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_roundup_entries_user_status ON roundup_entries(user_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_roundup_entries_batch ON roundup_entries(sweep_batch_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
