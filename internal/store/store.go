// Package store implements the sqlite-backed persistence layer spec.md §6
// describes: sessions, responses, and audit_log tables, tenant-partitioned
// lookup, and server-issued response ids.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/silverfisk/rants/internal/audit"
	"github.com/silverfisk/rants/internal/orchestrator"
	"github.com/silverfisk/rants/internal/transcript"
)

// Store is the sqlite-backed implementation of orchestrator.Store and
// audit.Sink.
type Store struct {
	db *sql.DB
}

// Config controls where the sqlite file lives (spec.md §6 state{sqlite_path}).
type Config struct {
	Path string
}

// Open creates (or reuses) the sqlite database at cfg.Path and ensures its
// schema exists. modernc.org/sqlite is a pure-Go driver registered under the
// name "sqlite" (not "sqlite3" — mattn/go-sqlite3's cgo driver uses that
// name; with the wrong one here sql.Open would return an "unknown driver"
// error).
func Open(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			parent_id TEXT,
			depth INTEGER NOT NULL DEFAULT 0,
			transcript_json TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS responses (
			response_id TEXT NOT NULL,
			session_id TEXT,
			parent_response_id TEXT,
			tenant_id TEXT NOT NULL,
			created_at REAL NOT NULL,
			transcript_json TEXT NOT NULL,
			PRIMARY KEY (response_id, tenant_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_tenant ON responses(tenant_id)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			audit_id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at REAL NOT NULL,
			entry_json TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Migrate is the public entry point the `migrate` CLI subcommand calls; the
// schema is also applied by Open itself, so this mainly exists to let
// operators provision a database file ahead of first request.
func (s *Store) Migrate() error {
	return s.migrate()
}

// LoadPreviousSteps implements orchestrator.Store: joint lookup on
// (response_id, tenant_id) so a cross-tenant read returns "not found"
// (spec.md §3's tenant partitioning invariant), not an error.
func (s *Store) LoadPreviousSteps(ctx context.Context, responseID, tenantID string) ([]transcript.Step, bool, error) {
	var transcriptJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT transcript_json FROM responses WHERE response_id = ? AND tenant_id = ?`,
		responseID, tenantID,
	).Scan(&transcriptJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load previous response: %w", err)
	}

	var t transcript.CanonicalTranscript
	if err := json.Unmarshal([]byte(transcriptJSON), &t); err != nil {
		return nil, false, fmt.Errorf("decode previous transcript: %w", err)
	}
	return t.Steps, true, nil
}

// SaveResponse implements orchestrator.Store: persists the completed
// transcript under the server-issued response id and tenant.
func (s *Store) SaveResponse(ctx context.Context, resp *orchestrator.ResponseObject, t *transcript.CanonicalTranscript, tenantID string) error {
	transcriptJSON, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses (response_id, session_id, parent_response_id, tenant_id, created_at, transcript_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		resp.ID, nil, resp.PreviousResponseID, tenantID, resp.CreatedAt, string(transcriptJSON),
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

// SaveChildSession records a task-spawned child transcript's parent/depth
// bookkeeping (supplemented feature: audit/debugging only, does not affect
// orchestration semantics).
func (s *Store) SaveChildSession(ctx context.Context, sessionID, parentID string, depth int, t *transcript.CanonicalTranscript) error {
	transcriptJSON, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal child transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (session_id, parent_id, depth, transcript_json) VALUES (?, ?, ?, ?)`,
		sessionID, parentID, depth, string(transcriptJSON),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Append implements audit.Sink: writes one entry to audit_log.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	entryJSON, err := audit.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (created_at, entry_json) VALUES (?, ?)`,
		entry.Timestamp, string(entryJSON),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
