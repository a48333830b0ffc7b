// Package rlm implements the "Recursive Language Model" engine: the
// generator wrapper spec.md §4.1 describes — endpoint selection, the
// single upstream call, and the TOOL_INTENT: marker parse.
package rlm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/silverfisk/rants/internal/transcript"
	"github.com/silverfisk/rants/internal/upstream"
)

// Endpoint describes one configured upstream model endpoint (spec.md §6
// models{...}).
type Endpoint struct {
	Name         string
	Provider     string
	BaseURL      string
	Model        string
	APIKey       string
	Capabilities []string
	Parameters   map[string]any
}

func (e Endpoint) hasCapability(cap string) bool {
	for _, c := range e.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Endpoints bundles the model endpoints the engine may select between.
type Endpoints struct {
	Generator       Endpoint
	ToolCompiler     Endpoint
	CodeInterpreter *Endpoint
	Vision          *Endpoint
}

// ErrConfiguration is wrapped into errors raised for missing/misconfigured
// endpoints (spec.md §4.2's configuration_error).
var ErrConfiguration = fmt.Errorf("configuration_error")

// Output is the parsed result of one generate() call.
type Output struct {
	Text       string
	ToolIntent *string
}

// Engine wraps one upstream call into generate(transcript) -> Output.
type Engine struct {
	client    upstream.Client
	endpoints Endpoints
}

// New builds an Engine bound to the given upstream client and endpoint set.
func New(client upstream.Client, endpoints Endpoints) *Engine {
	return &Engine{client: client, endpoints: endpoints}
}

// systemPrompt is the fixed instruction the generator is given: emit only
// user-facing text, and append a TOOL_INTENT: line when a tool is needed
// (spec.md §4.1).
const systemPrompt = "You are a helpful assistant. Respond to the user with plain, user-facing text only. " +
	"Never emit structured JSON or function-call syntax. " +
	"If you need to use a tool to answer, end your response with exactly one line: " +
	"\"TOOL_INTENT: <plain English description of what you need done>\". " +
	"Omit that line entirely when no tool is needed."

// InitializeTranscript builds a transcript with a stable tool_schema_digest
// computed once over the given schemas (spec.md §4.1, §3).
func InitializeTranscript(system, user string, toolSchemas []transcript.ToolSchema) (*transcript.CanonicalTranscript, error) {
	digest, err := transcript.SchemaDigest(toolSchemas)
	if err != nil {
		return nil, fmt.Errorf("compute tool schema digest: %w", err)
	}
	sys := system
	if sys == "" {
		sys = systemPrompt
	}
	return &transcript.CanonicalTranscript{
		System:           sys,
		User:             user,
		ToolSchemaDigest: digest,
	}, nil
}

// AppendStep appends a step to the transcript (spec.md §4.1).
func AppendStep(t *transcript.CanonicalTranscript, output Output, calls []transcript.ToolCall, results []transcript.ToolResult) error {
	return t.AppendStep(transcript.Step{
		GeneratorOutput: output.Text,
		ToolIntent:      output.ToolIntent,
		ToolCalls:       calls,
		ToolResults:     results,
	})
}

// selectEndpoint implements spec.md §4.1's priority order: vision if the
// transcript shows vision signals and a vision endpoint is configured; else
// code_interpreter if configured and capable of "code"; else generator.
func (e *Engine) selectEndpoint(t *transcript.CanonicalTranscript) Endpoint {
	if e.endpoints.Vision != nil && t.HasVisionSignal() {
		return *e.endpoints.Vision
	}
	if e.endpoints.CodeInterpreter != nil && e.endpoints.CodeInterpreter.hasCapability("code") {
		return *e.endpoints.CodeInterpreter
	}
	return e.endpoints.Generator
}

// Generate selects an endpoint, posts the transcript, and parses the
// response per spec.md §4.1.
func (e *Engine) Generate(ctx context.Context, t *transcript.CanonicalTranscript) (Output, error) {
	endpoint := e.selectEndpoint(t)

	inputPayload, err := json.Marshal(map[string]any{
		"system":     t.System,
		"transcript": t,
	})
	if err != nil {
		return Output{}, fmt.Errorf("marshal generate input: %w", err)
	}

	payload := map[string]any{
		"model": endpoint.Model,
		"input": string(inputPayload),
	}
	for k, v := range endpoint.Parameters {
		payload[k] = v
	}

	headers := map[string]string{}
	if endpoint.APIKey != "" {
		headers["Authorization"] = "Bearer " + endpoint.APIKey
	}

	resp, err := e.client.PostJSON(ctx, endpoint.BaseURL, "/responses", payload, headers)
	if err != nil {
		return Output{}, err
	}

	text := extractOutputText(resp.Data)
	return parseGeneratorText(text), nil
}

// extractOutputText walks output[*] for the first item with type=="message",
// returning its first content entry with type=="output_text" (spec.md §9).
func extractOutputText(data map[string]any) string {
	outputs, _ := data["output"].([]any)
	for _, item := range outputs {
		obj, ok := item.(map[string]any)
		if !ok || obj["type"] != "message" {
			continue
		}
		content, _ := obj["content"].([]any)
		for _, c := range content {
			cObj, ok := c.(map[string]any)
			if !ok || cObj["type"] != "output_text" {
				continue
			}
			text, _ := cObj["text"].(string)
			return text
		}
	}
	return ""
}

// CompileIntent calls the configured tool_compiler endpoint (spec.md §4.2).
// Its capabilities must include "tool_compilation"; absent that, it fails
// with ErrConfiguration. It returns the raw extracted output text for
// internal/toolcompiler to parse.
func (e *Engine) CompileIntent(ctx context.Context, t *transcript.CanonicalTranscript, toolSchemas []transcript.ToolSchema, toolIntent string) (string, error) {
	if !e.endpoints.ToolCompiler.hasCapability("tool_compilation") {
		return "", fmt.Errorf("%w: tool_compiler endpoint missing tool_compilation capability", ErrConfiguration)
	}

	inputPayload, err := json.Marshal(map[string]any{
		"tool_schemas": toolSchemas,
		"transcript":   t,
		"tool_intent":  toolIntent,
	})
	if err != nil {
		return "", fmt.Errorf("marshal compile input: %w", err)
	}

	payload := map[string]any{
		"model": e.endpoints.ToolCompiler.Model,
		"input": string(inputPayload),
	}
	for k, v := range e.endpoints.ToolCompiler.Parameters {
		payload[k] = v
	}

	headers := map[string]string{}
	if e.endpoints.ToolCompiler.APIKey != "" {
		headers["Authorization"] = "Bearer " + e.endpoints.ToolCompiler.APIKey
	}

	resp, err := e.client.PostJSON(ctx, e.endpoints.ToolCompiler.BaseURL, "/responses", payload, headers)
	if err != nil {
		return "", err
	}
	return extractOutputText(resp.Data), nil
}

const toolIntentMarker = "TOOL_INTENT:"

// parseGeneratorText splits on the last occurrence of the TOOL_INTENT:
// marker: everything before (right-trimmed) is text, everything after
// (trimmed) is the tool intent, nil if empty (spec.md §4.1).
func parseGeneratorText(raw string) Output {
	idx := strings.LastIndex(raw, toolIntentMarker)
	if idx < 0 {
		return Output{Text: raw}
	}
	text := strings.TrimRight(raw[:idx], " \t\n\r")
	intent := strings.TrimSpace(raw[idx+len(toolIntentMarker):])
	if intent == "" {
		return Output{Text: text}
	}
	return Output{Text: text, ToolIntent: &intent}
}
