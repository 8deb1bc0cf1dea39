// Package audit keeps a sqlite journal of device invocations and run_command
// policy decisions.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"netmcp/internal/device"
	"netmcp/internal/domain"

	_ "modernc.org/sqlite"
)

const defaultLimit = 20

// Record is one journaled invocation.
type Record struct {
	ID         string
	Hostname   string
	Capability string
	Outcome    string
	Detail     string
	Duration   time.Duration
	Started    time.Time
}

// Decision is one journaled policy decision.
type Decision struct {
	domain.AuditEntry
	Created time.Time
}

// Store implements device.Observer and security.AuditLogger on SQLite.
type Store struct {
	device.NopObserver

	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Completed journals inv. Write failures are logged, never returned to the
// dispatcher.
func (s *Store) Completed(ctx context.Context, inv domain.Invocation) {
	if err := s.Record(ctx, inv); err != nil {
		s.logger.Error("audit journal write failed", "id", inv.ID, "hostname", inv.Hostname, "err", err)
	}
}

func (s *Store) Record(ctx context.Context, inv domain.Invocation) error {
	detail := ""
	if inv.Err != nil {
		detail = inv.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, hostname, capability, outcome, detail, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Hostname, string(inv.Capability), inv.Outcome(), detail,
		inv.Duration.Milliseconds(), inv.Started.UnixNano(),
	)
	return err
}

func (s *Store) LogAudit(ctx context.Context, entry domain.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, tool_name, hostname, command, result, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Action, entry.ToolName, entry.Hostname, entry.Command, entry.Result, entry.Details,
		time.Now().UnixNano(),
	)
	return err
}

// Recent returns up to limit invocations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hostname, capability, outcome, COALESCE(detail, ''), duration_ms, started_at
		 FROM invocations ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var durationMS, started int64
		if err := rows.Scan(&r.ID, &r.Hostname, &r.Capability, &r.Outcome, &r.Detail, &durationMS, &started); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Started = time.Unix(0, started)
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecentDecisions returns up to limit policy decisions, newest first.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, COALESCE(tool_name, ''), COALESCE(hostname, ''), COALESCE(command, ''),
		        COALESCE(result, ''), COALESCE(details, ''), created_at
		 FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		var created int64
		if err := rows.Scan(&d.Action, &d.ToolName, &d.Hostname, &d.Command, &d.Result, &d.Details, &created); err != nil {
			return nil, err
		}
		d.Created = time.Unix(0, created)
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
