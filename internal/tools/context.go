package tools

import (
	"log/slog"
	"net/http"
	"time"
)

// Context bundles the config every executor needs, passed (as a pointer) into
// each Executor call rather than captured in a closure at registry-build
// time (spec.md §9 design note).
type Context struct {
	WorkspaceRoot    string
	ToolOutputMaxBytes int
	WebfetchMaxBytes   int
	DefaultBashTimeout time.Duration
	HTTPClient         *http.Client
	Logger             *slog.Logger

	// Depth/MaxDepth support the task tool, which the
	// orchestrator intercepts rather than dispatching through the registry
	// (spec.md §4.5); they are carried here only so other tools can report
	// the current recursion depth in diagnostics.
	Depth    int
	MaxDepth int
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
