// Package toolcompiler turns a generator's free-text tool intent into a list
// of structured tool calls (spec.md §4.2): a two-stage parse that tries
// strict JSON first, then falls back to scanning for
// <start_function_call>...<end_function_call> sentinels.
package toolcompiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/silverfisk/rants/internal/transcript"
)

// ErrCompile is returned (wrapped) when no tool call could be parsed out of
// the given text.
var ErrCompile = fmt.Errorf("compiler_error")

const (
	startSentinel = "<start_function_call>"
	endSentinel   = "<end_function_call>"
	callPrefix    = "call:"
)

// Compile parses text into a list of tool calls, trying a strict JSON
// `{"tool_calls": [...]}` shape first and falling back to sentinel-delimited
// function-call blocks.
func Compile(text string) ([]transcript.ToolCall, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty tool intent", ErrCompile)
	}

	if calls, ok := parseJSON(trimmed); ok {
		return calls, nil
	}

	calls := parseSentinels(text)
	if len(calls) == 0 {
		return nil, fmt.Errorf("%w: no parseable tool call found", ErrCompile)
	}
	return calls, nil
}

// parseJSON implements stage 1: decode as JSON; if it is an object with a
// "tool_calls" array, keep the array entries that decode as objects
// (filtered to objects only, per spec), converting each to a
// transcript.ToolCall. An entry missing a string "tool" name is kept with an
// empty Tool so execute's unknown-tool path classifies it, rather than being
// silently dropped here. The second return value is false when the text
// does not even parse as a JSON object with a tool_calls array (so the
// caller should fall through to stage 2), as distinct from parsing fine but
// yielding a legitimately empty (possibly zero-length) list of calls.
func parseJSON(text string) ([]transcript.ToolCall, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	rawCalls, ok := obj["tool_calls"].([]any)
	if !ok {
		return nil, false
	}

	calls := make([]transcript.ToolCall, 0, len(rawCalls))
	for _, rc := range rawCalls {
		m, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["tool"].(string)
		params, _ := m["parameters"].(map[string]any)
		if params == nil {
			params = map[string]any{}
		}
		calls = append(calls, transcript.ToolCall{Tool: name, Parameters: params})
	}
	return calls, true
}

// parseSentinels implements stage 2: scan line by line for
// <start_function_call> ... <end_function_call> blocks. Each block's inner
// text is split on its first "{": everything before is the (optionally
// "call:"-prefixed) tool name, everything from the "{" onward is the JSON
// parameters object.
func parseSentinels(text string) []transcript.ToolCall {
	var calls []transcript.ToolCall
	lines := strings.Split(text, "\n")

	var inBlock bool
	var block strings.Builder
	for _, line := range lines {
		switch {
		case strings.Contains(line, startSentinel):
			inBlock = true
			block.Reset()
			rest := line[strings.Index(line, startSentinel)+len(startSentinel):]
			if strings.Contains(rest, endSentinel) {
				rest = rest[:strings.Index(rest, endSentinel)]
				if call, ok := parseBlock(rest); ok {
					calls = append(calls, call)
				}
				inBlock = false
			} else {
				block.WriteString(rest)
			}
		case inBlock && strings.Contains(line, endSentinel):
			block.WriteString("\n")
			block.WriteString(line[:strings.Index(line, endSentinel)])
			if call, ok := parseBlock(block.String()); ok {
				calls = append(calls, call)
			}
			inBlock = false
		case inBlock:
			block.WriteString("\n")
			block.WriteString(line)
		}
	}
	return calls
}

func parseBlock(inner string) (transcript.ToolCall, bool) {
	inner = strings.TrimSpace(inner)
	braceIdx := strings.Index(inner, "{")
	if braceIdx < 0 {
		return transcript.ToolCall{}, false
	}
	name := strings.TrimSpace(inner[:braceIdx])
	name = strings.TrimPrefix(name, callPrefix)
	name = strings.TrimSpace(name)
	if name == "" {
		return transcript.ToolCall{}, false
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(inner[braceIdx:]), &params); err != nil {
		return transcript.ToolCall{}, false
	}
	return transcript.ToolCall{Tool: name, Parameters: params}, true
}
