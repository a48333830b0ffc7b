package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverfisk/rants/internal/audit"
	"github.com/silverfisk/rants/internal/orchestrator"
	"github.com/silverfisk/rants/internal/transcript"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadPreviousSteps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := &transcript.CanonicalTranscript{User: "hi", Steps: []transcript.Step{{GeneratorOutput: "hello"}}}
	resp := &orchestrator.ResponseObject{ID: "resp_1", CreatedAt: 100}
	require.NoError(t, s.SaveResponse(ctx, resp, tr, "tenant-a"))

	steps, found, err := s.LoadPreviousSteps(ctx, "resp_1", "tenant-a")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, steps, 1)
	assert.Equal(t, "hello", steps[0].GeneratorOutput)
}

func TestLoadPreviousStepsNotFound(t *testing.T) {
	s := openTestStore(t)
	steps, found, err := s.LoadPreviousSteps(context.Background(), "resp_missing", "tenant-a")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, steps)
}

func TestLoadPreviousStepsEnforcesTenantIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := &transcript.CanonicalTranscript{User: "hi", Steps: []transcript.Step{{GeneratorOutput: "secret"}}}
	resp := &orchestrator.ResponseObject{ID: "resp_1", CreatedAt: 100}
	require.NoError(t, s.SaveResponse(ctx, resp, tr, "tenant-a"))

	_, found, err := s.LoadPreviousSteps(ctx, "resp_1", "tenant-b")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestAppendAuditEntry(t *testing.T) {
	s := openTestStore(t)
	entry := audit.Entry{
		TenantID:   "tenant-a",
		ResponseID: "resp_1",
		ToolCalls:  []transcript.ToolCall{{Tool: "bash"}},
		Timestamp:  100,
	}
	require.NoError(t, s.Append(context.Background(), entry))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSaveChildSession(t *testing.T) {
	s := openTestStore(t)
	tr := &transcript.CanonicalTranscript{User: "sub task"}
	require.NoError(t, s.SaveChildSession(context.Background(), "sess_1", "resp_parent", 1, tr))

	var depth int
	require.NoError(t, s.db.QueryRow(`SELECT depth FROM sessions WHERE session_id = ?`, "sess_1").Scan(&depth))
	assert.Equal(t, 1, depth)
}
