package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"netmcp/internal/config"
	"netmcp/internal/device"
	"netmcp/internal/domain"
	"netmcp/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ device.Observer      = (*Store)(nil)
	_ security.AuditLogger = (*Store)(nil)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "audit.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func invocation(id, host string, capability domain.Capability, started time.Time, err error) domain.Invocation {
	return domain.Invocation{
		ID:         id,
		Hostname:   host,
		Capability: capability,
		Started:    started,
		Duration:   1500 * time.Millisecond,
		Err:        err,
	}
}

func TestStore_CompletedAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Completed(ctx, invocation("a", "r1", domain.CapFacts, base, nil))
	s.Completed(ctx, invocation("b", "r2", domain.CapPing, base.Add(time.Second),
		fmt.Errorf("%w: r2: auth failed", domain.ErrConnection)))

	records, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, "r2", records[0].Hostname)
	assert.Equal(t, "ping", records[0].Capability)
	assert.Equal(t, "connection", records[0].Outcome)
	assert.Contains(t, records[0].Detail, "auth failed")
	assert.Equal(t, 1500*time.Millisecond, records[0].Duration)
	assert.True(t, records[0].Started.Equal(base.Add(time.Second)))

	assert.Equal(t, "a", records[1].ID)
	assert.Equal(t, "ok", records[1].Outcome)
	assert.Empty(t, records[1].Detail)
}

func TestStore_RecentLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 30; i++ {
		require.NoError(t, s.Record(ctx, invocation(fmt.Sprintf("id-%02d", i), "r1", domain.CapFacts,
			base.Add(time.Duration(i)*time.Millisecond), nil)))
	}

	records, err := s.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "id-29", records[0].ID)

	records, err = s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, defaultLimit)
}

func TestStore_DuplicateIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inv := invocation("same", "r1", domain.CapFacts, time.Now(), nil)
	require.NoError(t, s.Record(ctx, inv))
	assert.Error(t, s.Record(ctx, inv))

	// Completed swallows the failure.
	s.Completed(ctx, inv)
}

func TestStore_LogAuditAndRecentDecisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LogAudit(ctx, domain.AuditEntry{
		Action: "command_allowed", ToolName: "run_command", Hostname: "r1",
		Command: "show version", Result: "allowed", Details: "whitelist match",
	}))
	require.NoError(t, s.LogAudit(ctx, domain.AuditEntry{
		Action: "command_blocked", ToolName: "run_command", Hostname: "r1",
		Command: "reload", Result: "blocked", Details: "blacklist match: reload",
	}))

	decisions, err := s.RecentDecisions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "command_blocked", decisions[0].Action)
	assert.Equal(t, "reload", decisions[0].Command)
	assert.Equal(t, "r1", decisions[0].Hostname)
	assert.False(t, decisions[0].Created.IsZero())
	assert.Equal(t, "show version", decisions[1].Command)
}

func TestStore_WithSecurityEngine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg := config.SecurityConfig{DefaultPolicy: "allow", Blacklist: []string{"reload"}, AuditLog: true}
	engine, err := security.NewEngine(cfg, s, testLogger())
	require.NoError(t, err)

	action, err := engine.Check(ctx, "edge1", "reload in 5")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBlock, action)

	decisions, err := s.RecentDecisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "edge1", decisions[0].Hostname)
	assert.Equal(t, "blocked", decisions[0].Result)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	s, err := NewStore(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, invocation("persist", "r1", domain.CapInterfaces, time.Now(), nil)))
	require.NoError(t, s.Close())

	s, err = NewStore(path, testLogger())
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persist", records[0].ID)
}

func TestStore_CloseNil(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}

// --- migrations ---

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrations_FreshDB(t *testing.T) {
	db := testDB(t)
	require.NoError(t, RunMigrations(db, testLogger()))

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, RunMigrations(db, testLogger()))
	require.NoError(t, RunMigrations(db, testLogger()))

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestRunMigrations_CreatesExpectedTables(t *testing.T) {
	db := testDB(t)
	require.NoError(t, RunMigrations(db, testLogger()))

	for _, table := range []string{"invocations", "audit_log", "schema_version"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s missing", table)
	}
}

func TestRunMigrations_RecoversPartialSchema(t *testing.T) {
	db := testDB(t)
	// The invocations table predates the version table.
	_, err := db.Exec(`CREATE TABLE invocations (id TEXT PRIMARY KEY, hostname TEXT NOT NULL, capability TEXT NOT NULL,
		outcome TEXT NOT NULL, detail TEXT, duration_ms INTEGER DEFAULT 0, started_at INTEGER NOT NULL)`)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, testLogger()))
	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestGetSchemaVersion_NoTable(t *testing.T) {
	version, err := GetSchemaVersion(testDB(t))
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestSplitSQL(t *testing.T) {
	got := splitSQL("CREATE TABLE a (x INT);\n\n  CREATE INDEX i ON a(x);  ;")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
