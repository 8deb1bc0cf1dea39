package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// schemaVersion is the current expected schema version.
const schemaVersion = 2

type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of schema migrations. Each is applied
// exactly once, tracked in the schema_version table.
var migrations = []migration{
	{
		Version:     1,
		Description: "base schema: invocations, audit_log",
		SQL: `
		CREATE TABLE IF NOT EXISTS invocations (
			id          TEXT PRIMARY KEY,
			hostname    TEXT NOT NULL,
			capability  TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			detail      TEXT,
			duration_ms INTEGER DEFAULT 0,
			started_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_invocations_time ON invocations(started_at);

		CREATE TABLE IF NOT EXISTS audit_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			action      TEXT NOT NULL,
			tool_name   TEXT,
			hostname    TEXT,
			command     TEXT,
			result      TEXT,
			details     TEXT,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(created_at);
		`,
	},
	{
		Version:     2,
		Description: "per-host lookup indexes",
		SQL: `
		CREATE INDEX IF NOT EXISTS idx_invocations_host ON invocations(hostname, started_at);
		CREATE INDEX IF NOT EXISTS idx_audit_host ON audit_log(hostname, created_at);
		`,
	},
}

// RunMigrations applies all pending schema migrations.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	currentVersion := 0
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		logger.Info("applying migration",
			"version", m.Version,
			"description", m.Description,
		)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			logger.Warn("migration SQL partially failed, retrying per statement",
				"version", m.Version,
				"err", err,
			)
			if err := applyMigrationStatements(db, m, logger); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
				m.Version, m.Description,
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("record migration v%d: %w", m.Version, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit migration v%d: %w", m.Version, err)
			}
		}

		logger.Info("migration applied", "version", m.Version)
	}

	return nil
}

// applyMigrationStatements applies each SQL statement individually, ignoring
// "duplicate column" or "already exists" errors.
func applyMigrationStatements(db *sql.DB, m migration, logger *slog.Logger) error {
	for _, stmt := range splitSQL(m.SQL) {
		if _, err := db.Exec(stmt); err != nil {
			msg := strings.ToLower(err.Error())
			if strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists") {
				logger.Debug("migration statement skipped (already applied)", "stmt_prefix", truncate(stmt, 60))
				continue
			}
			return fmt.Errorf("migration v%d statement failed: %w\nSQL: %s", m.Version, err, truncate(stmt, 200))
		}
	}

	if _, err := db.Exec(
		"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("record migration v%d: %w", m.Version, err)
	}
	return nil
}

// splitSQL splits a multi-statement SQL string on semicolons.
func splitSQL(sql string) []string {
	var result []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// GetSchemaVersion returns the current schema version from the database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err != nil {
		return 0, nil // no table => version 0
	}

	var version int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
