// Package patchapply implements the restricted unified-diff grammar of
// spec.md §4.4: a `*** Begin Patch` / `*** Update File: <path>` / hunk-body /
// `*** End Patch` format, deliberately narrower than a full unified diff.
package patchapply

import (
	"fmt"
	"strings"

	"github.com/silverfisk/rants/internal/tools/sandbox"
)

const (
	beginMarker  = "*** Begin Patch"
	updateMarker = "*** Update File: "
	endMarker    = "*** End Patch"
)

// FileResult reports the outcome of applying one file's section.
type FileResult struct {
	File string
	OK   bool
	Err  error
}

// section is one `*** Update File:` block's raw hunk-body lines.
type section struct {
	path  string
	lines []string
}

// Apply parses patchText and applies each file section against the
// workspace, returning one FileResult per section in order.
func Apply(resolver sandbox.Resolver, patchText string, readFile func(string) (string, error), writeFile func(string, string) error) ([]FileResult, error) {
	sections, err := parse(patchText)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(sections))
	for _, sec := range sections {
		resolved, err := resolver.Resolve(sec.path)
		if err != nil {
			results = append(results, FileResult{File: sec.path, OK: false, Err: err})
			continue
		}
		original, err := readFile(resolved)
		if err != nil {
			results = append(results, FileResult{File: sec.path, OK: false, Err: err})
			continue
		}
		updated, err := applySection(original, sec.lines)
		if err != nil {
			results = append(results, FileResult{File: sec.path, OK: false, Err: err})
			continue
		}
		if err := writeFile(resolved, updated); err != nil {
			results = append(results, FileResult{File: sec.path, OK: false, Err: err})
			continue
		}
		results = append(results, FileResult{File: sec.path, OK: true})
	}
	return results, nil
}

// parse splits patchText into ordered file sections. A missing
// `*** Begin Patch` header is a patch_error.
func parse(patchText string) ([]section, error) {
	lines := strings.Split(patchText, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != beginMarker {
		return nil, fmt.Errorf("patch_error: missing %q header", beginMarker)
	}

	var sections []section
	var current *section
	for _, line := range lines[1:] {
		trimmed := strings.TrimRight(line, "\r")
		switch {
		case trimmed == endMarker:
			if current != nil {
				sections = append(sections, *current)
				current = nil
			}
		case strings.HasPrefix(trimmed, updateMarker):
			if current != nil {
				sections = append(sections, *current)
			}
			path := strings.TrimSpace(strings.TrimPrefix(trimmed, updateMarker))
			current = &section{path: path}
		default:
			if current != nil {
				current.lines = append(current.lines, trimmed)
			}
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("patch_error: no %q sections found", updateMarker)
	}
	return sections, nil
}

// applySection applies one file's hunk-body lines against its original
// content. Lines starting with "@@" are hunk markers and are skipped; "+"
// lines insert (minus the prefix); "-" lines delete (advance the source
// index without emitting); a blank line or anything else is context
// (emitted verbatim, source index advances). Trailing source lines beyond
// the consumed prefix are appended verbatim, per spec.md §4.4.
func applySection(original string, hunkLines []string) (string, error) {
	srcLines := strings.Split(original, "\n")
	hadTrailingNewline := strings.HasSuffix(original, "\n")
	if hadTrailingNewline && len(srcLines) > 0 && srcLines[len(srcLines)-1] == "" {
		srcLines = srcLines[:len(srcLines)-1]
	}

	var out []string
	srcIdx := 0
	for _, line := range hunkLines {
		switch {
		case strings.HasPrefix(line, "@@"):
			continue
		case strings.HasPrefix(line, "+"):
			out = append(out, line[1:])
		case strings.HasPrefix(line, "-"):
			srcIdx++
		default:
			if srcIdx < len(srcLines) {
				out = append(out, srcLines[srcIdx])
			} else {
				out = append(out, line)
			}
			srcIdx++
		}
	}
	if srcIdx < len(srcLines) {
		out = append(out, srcLines[srcIdx:]...)
	}

	result := strings.Join(out, "\n")
	if hadTrailingNewline {
		result += "\n"
	}
	return result, nil
}
