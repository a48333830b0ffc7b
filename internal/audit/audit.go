// Package audit implements the append-only tool-activity log spec.md §3
// describes: one AuditEntry per orchestrator step whose tool_calls or
// tool_results list is non-empty.
package audit

import (
	"context"
	"encoding/json"

	"github.com/silverfisk/rants/internal/transcript"
)

// Entry is one audit record (spec.md §3 AuditEntry).
type Entry struct {
	TenantID    string                  `json:"tenant_id"`
	ResponseID  string                  `json:"response_id"`
	ToolCalls   []transcript.ToolCall   `json:"tool_calls"`
	ToolResults []transcript.ToolResult `json:"tool_results"`
	Timestamp   float64                 `json:"timestamp"`
}

// Sink persists audit entries. Store implementations (internal/store)
// satisfy this by writing through to the audit_log table.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Marshal serializes an entry as the store's audit_log.entry_json column
// expects.
func Marshal(entry Entry) ([]byte, error) {
	return json.Marshal(entry)
}
