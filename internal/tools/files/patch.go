package files

import (
	"context"
	"os"
	"strings"

	"github.com/silverfisk/rants/internal/patchapply"
	"github.com/silverfisk/rants/internal/tools"
)

// Patch implements the `patch` tool (spec.md §4.4): apply a restricted
// unified-diff patch to one or more workspace files.
func Patch(_ context.Context, tc *tools.Context, params map[string]any) tools.Result {
	patchText, _ := params["patch"].(string)
	if strings.TrimSpace(patchText) == "" {
		return tools.ErrorResult("patch_error: patch is required")
	}

	results, err := patchapply.Apply(resolver(tc), patchText,
		func(path string) (string, error) {
			data, err := os.ReadFile(path)
			return string(data), err
		},
		func(path, content string) error {
			return os.WriteFile(path, []byte(content), 0o644)
		},
	)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}

	out := make([]any, 0, len(results))
	for _, r := range results {
		entry := map[string]any{"file": r.File, "ok": r.OK}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		out = append(out, entry)
	}
	return tools.OKResult(map[string]any{"results": out})
}
