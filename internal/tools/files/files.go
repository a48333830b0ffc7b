// Package files implements the workspace-sandboxed filesystem tools:
// read, write, edit, multiedit, ls, glob, grep. Each resolves its path
// through internal/tools/sandbox before touching disk, per spec.md §4.3.
package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/silverfisk/rants/internal/tools"
	"github.com/silverfisk/rants/internal/tools/sandbox"
)

func resolver(tc *tools.Context) sandbox.Resolver {
	return sandbox.Resolver{Root: tc.WorkspaceRoot}
}

func sandboxError(err error) tools.Result {
	return tools.ErrorResult(fmt.Sprintf("%s: escapes workspace root", err.Error()))
}

// Read implements the `read` tool: return text as "NNNNN| line" per line,
// numbered offset+1.. (spec.md §4.3).
func Read(_ context.Context, tc *tools.Context, params map[string]any) tools.Result {
	path, _ := params["filePath"].(string)
	if strings.TrimSpace(path) == "" {
		return tools.ErrorResult("filePath is required")
	}
	offset := intParam(params, "offset", 0)
	limit := intParam(params, "limit", 2000)
	if offset < 0 {
		return tools.ErrorResult("offset must be >= 0")
	}
	if limit <= 0 {
		limit = 2000
	}

	resolved, err := resolver(tc).Resolve(path)
	if err != nil {
		return sandboxError(err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("read file: %v", err))
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var out strings.Builder
	end := offset + limit
	if end > len(lines) {
		end = len(lines)
	}
	for i := offset; i < end; i++ {
		fmt.Fprintf(&out, "%05d| %s\n", i+1, lines[i])
	}

	return tools.OKResult(map[string]any{
		"file":           out.String(),
		"lines_returned": max0(end - offset),
		"total_lines":    len(lines),
	})
}

// Write implements the `write` tool: create parent directories as needed,
// overwrite the target file.
func Write(_ context.Context, tc *tools.Context, params map[string]any) tools.Result {
	path, _ := params["filePath"].(string)
	content, _ := params["content"].(string)
	if strings.TrimSpace(path) == "" {
		return tools.ErrorResult("filePath is required")
	}

	resolved, err := resolver(tc).Resolve(path)
	if err != nil {
		return sandboxError(err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return tools.ErrorResult(fmt.Sprintf("create directory: %v", err))
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return tools.ErrorResult(fmt.Sprintf("write file: %v", err))
	}
	return tools.OKResult(map[string]any{"filePath": path, "bytesWritten": len(content)})
}

// Edit implements the `edit` tool: exact single-occurrence replacement
// unless replaceAll is set, per spec.md §4.3.
func Edit(_ context.Context, tc *tools.Context, params map[string]any) tools.Result {
	path, _ := params["filePath"].(string)
	oldString, _ := params["oldString"].(string)
	newString, _ := params["newString"].(string)
	replaceAll, _ := params["replaceAll"].(bool)
	if strings.TrimSpace(path) == "" {
		return tools.ErrorResult("filePath is required")
	}
	if oldString == "" {
		return tools.ErrorResult("oldString is required")
	}

	resolved, err := resolver(tc).Resolve(path)
	if err != nil {
		return sandboxError(err)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("read file: %v", err))
	}

	updated, count, err := applyReplace(string(data), oldString, newString, replaceAll)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return tools.ErrorResult(fmt.Sprintf("write file: %v", err))
	}
	return tools.OKResult(map[string]any{"filePath": path, "replacements": count})
}

func applyReplace(content, oldString, newString string, replaceAll bool) (string, int, error) {
	count := strings.Count(content, oldString)
	if replaceAll {
		if count < 1 {
			return "", 0, fmt.Errorf("oldString not found")
		}
		return strings.ReplaceAll(content, oldString, newString), count, nil
	}
	if count != 1 {
		return "", 0, fmt.Errorf("oldString must occur exactly once, found %d", count)
	}
	return strings.Replace(content, oldString, newString, 1), 1, nil
}

// MultiEdit implements `multiedit`: apply an ordered list of edits against
// an in-memory copy of the file, writing only once at the end so a failure
// partway through never persists a partial result (spec.md §4.3).
func MultiEdit(_ context.Context, tc *tools.Context, params map[string]any) tools.Result {
	path, _ := params["filePath"].(string)
	if strings.TrimSpace(path) == "" {
		return tools.ErrorResult("filePath is required")
	}
	rawEdits, _ := params["edits"].([]any)
	if len(rawEdits) == 0 {
		return tools.ErrorResult("edits is required")
	}

	resolved, err := resolver(tc).Resolve(path)
	if err != nil {
		return sandboxError(err)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("read file: %v", err))
	}

	content := string(data)
	total := 0
	for i, raw := range rawEdits {
		edit, ok := raw.(map[string]any)
		if !ok {
			return tools.ErrorResult(fmt.Sprintf("edits[%d] is not an object", i))
		}
		oldString, _ := edit["oldString"].(string)
		newString, _ := edit["newString"].(string)
		replaceAll, _ := edit["replaceAll"].(bool)
		if oldString == "" {
			return tools.ErrorResult(fmt.Sprintf("edits[%d].oldString is required", i))
		}
		updated, count, err := applyReplace(content, oldString, newString, replaceAll)
		if err != nil {
			return tools.ErrorResult(fmt.Sprintf("edits[%d]: %v", i, err))
		}
		content = updated
		total += count
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return tools.ErrorResult(fmt.Sprintf("write file: %v", err))
	}
	return tools.OKResult(map[string]any{"filePath": path, "replacements": total})
}

// LS implements the `ls` tool: list entries of a sandboxed directory.
func LS(_ context.Context, tc *tools.Context, params map[string]any) tools.Result {
	path, _ := params["path"].(string)
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	resolved, err := resolver(tc).Resolve(path)
	if err != nil {
		return sandboxError(err)
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("read dir: %v", err))
	}
	names := make([]any, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return tools.OKResult(map[string]any{"entries": names})
}

// Glob implements the `glob` tool: recursive shell-style pattern matching
// under an optional sandboxed base, returning matches relative to the
// workspace root.
func Glob(_ context.Context, tc *tools.Context, params map[string]any) tools.Result {
	pattern, _ := params["pattern"].(string)
	if strings.TrimSpace(pattern) == "" {
		return tools.ErrorResult("pattern is required")
	}
	base, _ := params["path"].(string)
	if strings.TrimSpace(base) == "" {
		base = "."
	}

	baseResolved, err := resolver(tc).Resolve(base)
	if err != nil {
		return sandboxError(err)
	}
	rootResolved, err := resolver(tc).Resolve(".")
	if err != nil {
		return sandboxError(err)
	}

	var matches []string
	err = filepath.WalkDir(baseResolved, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(baseResolved, p)
		if err != nil {
			return nil
		}
		ok, err := filepath.Match(pattern, rel)
		if err == nil && ok {
			relRoot, err := filepath.Rel(rootResolved, p)
			if err == nil {
				matches = append(matches, filepath.ToSlash(relRoot))
			}
		}
		return nil
	})
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("walk: %v", err))
	}
	sort.Strings(matches)
	matchesAny := make([]any, len(matches))
	for i, m := range matches {
		matchesAny[i] = m
	}
	return tools.OKResult(map[string]any{"matches": matchesAny})
}

// Grep implements the `grep` tool: regex search with an optional include
// glob filter, returning {file (relative), line (1-based), text} entries in
// traversal order.
func Grep(_ context.Context, tc *tools.Context, params map[string]any) tools.Result {
	pattern, _ := params["pattern"].(string)
	if strings.TrimSpace(pattern) == "" {
		return tools.ErrorResult("pattern is required")
	}
	include, _ := params["include"].(string)
	base, _ := params["path"].(string)
	if strings.TrimSpace(base) == "" {
		base = "."
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("invalid pattern: %v", err))
	}

	baseResolved, err := resolver(tc).Resolve(base)
	if err != nil {
		return sandboxError(err)
	}
	rootResolved, err := resolver(tc).Resolve(".")
	if err != nil {
		return sandboxError(err)
	}

	var matches []any
	err = filepath.WalkDir(baseResolved, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if include != "" {
			if ok, err := filepath.Match(include, d.Name()); err != nil || !ok {
				return nil
			}
		}
		f, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer f.Close()

		relRoot, err := filepath.Rel(rootResolved, p)
		if err != nil {
			return nil
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Text()
			if re.MatchString(text) {
				matches = append(matches, map[string]any{
					"file": filepath.ToSlash(relRoot),
					"line": line,
					"text": text,
				})
			}
		}
		return nil
	})
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("walk: %v", err))
	}
	return tools.OKResult(map[string]any{"results": matches})
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return def
		}
		return int(i)
	default:
		return def
	}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
