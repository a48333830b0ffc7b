// Package placeholder implements the tools that exist only so the
// registry's schema surface stays stable across deployments:
// codesearch/skill/batch/invalid/todo_read/todo_write/task (spec.md §4.3;
// the websearch placeholder lives in internal/webtool). Each returns a fixed "<kind> not configured" error or an
// empty default; task's registry entry is a no-op because the orchestrator
// intercepts `task` calls before they ever reach the registry (spec.md
// §4.5) — it is only registered so Schemas() advertises it to the
// tool-compiler model.
package placeholder

import (
	"context"

	"github.com/silverfisk/rants/internal/tools"
)

func notConfigured(kind string) tools.Executor {
	return func(_ context.Context, _ *tools.Context, _ map[string]any) tools.Result {
		return tools.ErrorResult(kind + " not configured")
	}
}

// Codesearch is a placeholder executor.
var Codesearch = notConfigured("codesearch")

// Skill is a placeholder executor.
var Skill = notConfigured("skill")

// Batch is a placeholder executor.
var Batch = notConfigured("batch")

// Invalid is a placeholder executor; it always fails, matching a tool
// explicitly named "invalid" in the standard roster.
var Invalid = notConfigured("invalid")

// TodoRead returns an empty todo list by default.
func TodoRead(_ context.Context, _ *tools.Context, _ map[string]any) tools.Result {
	return tools.OKResult(map[string]any{"todos": []any{}})
}

// TodoWrite acknowledges a todo write without persisting it.
func TodoWrite(_ context.Context, _ *tools.Context, _ map[string]any) tools.Result {
	return tools.OKResult(map[string]any{"ok": true})
}

// Task is the registry's no-op stand-in for the `task` tool. The
// orchestrator always intercepts `task` calls before dispatch; this
// executor only runs if something bypasses that interception, which is
// itself a configuration bug, so it reports one.
func Task(_ context.Context, _ *tools.Context, _ map[string]any) tools.Result {
	return tools.ErrorResult("task must be handled by the orchestrator")
}
