// Package bashtool implements the sandboxed `bash` tool: run a shell
// command with a millisecond timeout and an optional sandboxed working
// directory, per spec.md §4.3.
package bashtool

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/silverfisk/rants/internal/tools"
	"github.com/silverfisk/rants/internal/tools/sandbox"
)

const defaultTimeoutMillis = 120_000

// Run implements the `bash` executor.
func Run(ctx context.Context, tc *tools.Context, params map[string]any) tools.Result {
	command, _ := params["command"].(string)
	if strings.TrimSpace(command) == "" {
		return tools.ErrorResult("command is required")
	}

	timeoutMillis := defaultTimeoutMillis
	if v, ok := params["timeout"]; ok {
		if n, ok := asInt(v); ok && n > 0 {
			timeoutMillis = n
		}
	}

	workdir := tc.WorkspaceRoot
	if raw, ok := params["workdir"].(string); ok && strings.TrimSpace(raw) != "" {
		resolved, err := (sandbox.Resolver{Root: tc.WorkspaceRoot}).Resolve(raw)
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		workdir = resolved
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMillis)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = workdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if runCtx.Err() == context.DeadlineExceeded {
			exitCode = -1
		} else {
			return tools.ErrorResult(err.Error())
		}
	}

	maxBytes := tc.ToolOutputMaxBytes
	if maxBytes <= 0 {
		maxBytes = 200_000
	}

	return tools.OKResult(map[string]any{
		"exit_code": exitCode,
		"stdout":    truncateUTF8(stdout.String(), maxBytes),
		"stderr":    truncateUTF8(stderr.String(), maxBytes),
	})
}

// truncateUTF8 truncates s to at most maxBytes bytes without splitting a
// multi-byte rune.
func truncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
