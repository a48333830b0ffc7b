// Package orchestrator implements the iterative generate/compile/execute
// loop spec.md §4.5 describes: the system's core, everything else in this
// module exists to serve it.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/silverfisk/rants/internal/audit"
	"github.com/silverfisk/rants/internal/metrics"
	"github.com/silverfisk/rants/internal/rlm"
	"github.com/silverfisk/rants/internal/toolcompiler"
	"github.com/silverfisk/rants/internal/tools"
	"github.com/silverfisk/rants/internal/transcript"
)

// Generator is the subset of the RLM engine the orchestrator drives.
type Generator interface {
	Generate(ctx context.Context, t *transcript.CanonicalTranscript) (rlm.Output, error)
	CompileIntent(ctx context.Context, t *transcript.CanonicalTranscript, toolSchemas []transcript.ToolSchema, toolIntent string) (string, error)
}

// ToolRegistry is the subset of tools.Registry the orchestrator drives.
type ToolRegistry interface {
	Schemas() []transcript.ToolSchema
	Execute(ctx context.Context, tc *tools.Context, name string, params map[string]any) tools.Result
}

// Store is the persistence contract the orchestrator depends on (spec.md
// §6's sessions/responses tables, scoped here to what the loop needs).
type Store interface {
	LoadPreviousSteps(ctx context.Context, responseID, tenantID string) ([]transcript.Step, bool, error)
	SaveResponse(ctx context.Context, resp *ResponseObject, t *transcript.CanonicalTranscript, tenantID string) error
	SaveChildSession(ctx context.Context, sessionID, parentID string, depth int, t *transcript.CanonicalTranscript) error
}

// Limits bundles the bounds spec.md §6's limits{} config section names.
type Limits struct {
	MaxToolIterations  int
	MaxWallclockSeconds float64
	MaxDepth           int
}

// Request is one turn's input, already validated by the HTTP surface.
type Request struct {
	Model              string
	System             string
	User               string
	ToolSchemas        []transcript.ToolSchema // caller-supplied; empty means "use the registry's"
	ToolChoice         any
	ToolsEcho          any
	ExecuteTools       bool
	PreviousResponseID string
	TenantID           string
}

// Orchestrator wires together the generator, tool registry, and store to
// run spec.md §4.5's loop.
type Orchestrator struct {
	Generator Generator
	Registry  ToolRegistry
	Store     Store
	Audit     audit.Sink
	Limits    Limits
	ToolCtx   tools.Context

	// now returns the current time; overridable in tests.
	now func() time.Time
}

// New builds an Orchestrator. now defaults to time.Now.
func New(gen Generator, reg ToolRegistry, store Store, sink audit.Sink, limits Limits, toolCtx tools.Context) *Orchestrator {
	return &Orchestrator{
		Generator: gen,
		Registry:  reg,
		Store:     store,
		Audit:     sink,
		Limits:    limits,
		ToolCtx:   toolCtx,
		now:       time.Now,
	}
}

func newResponseID() string {
	return "resp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Run executes one full turn per spec.md §4.5 and returns the completed
// response together with its transcript. If the context is cancelled
// mid-turn, no partial transcript is persisted (spec.md §5).
func (o *Orchestrator) Run(ctx context.Context, req Request) (*ResponseObject, *transcript.CanonicalTranscript, error) {
	toolSchemas := req.ToolSchemas
	if len(toolSchemas) == 0 {
		toolSchemas = o.Registry.Schemas()
	}

	t, err := rlm.InitializeTranscript(req.System, req.User, toolSchemas)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize transcript: %w", err)
	}

	if req.PreviousResponseID != "" {
		steps, found, err := o.Store.LoadPreviousSteps(ctx, req.PreviousResponseID, req.TenantID)
		if err != nil {
			return nil, nil, fmt.Errorf("load previous transcript: %w", err)
		}
		if found {
			t.Steps = steps
		}
	}

	responseID := newResponseID()
	createdAt := float64(o.now().Unix())
	resp := newResponse(responseID, req.Model, req.PreviousResponseID, req.User, req.ToolChoice, req.ToolsEcho, createdAt)

	deadline := o.now().Add(time.Duration(o.Limits.MaxWallclockSeconds * float64(time.Second)))
	hasWallclockLimit := o.Limits.MaxWallclockSeconds > 0

	var textBuf strings.Builder
	maxIterations := o.Limits.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		output, err := o.Generator.Generate(ctx, t)
		if err != nil {
			return nil, nil, err
		}
		textBuf.WriteString(output.Text)

		var toolCalls []transcript.ToolCall
		var toolResults []transcript.ToolResult

		metrics.OrchestratorIterations.WithLabelValues(fmt.Sprintf("%v", output.ToolIntent != nil)).Inc()

		if output.ToolIntent != nil {
			toolCalls, err = o.compile(ctx, t, toolSchemas, *output.ToolIntent)
			if err != nil {
				return nil, nil, err
			}
			if req.ExecuteTools {
				toolResults = o.execute(ctx, t, toolCalls, req, responseID)
			}
		}

		if err := rlm.AppendStep(t, output, toolCalls, toolResults); err != nil {
			return nil, nil, fmt.Errorf("append step: %w", err)
		}

		if (len(toolCalls) > 0 || len(toolResults) > 0) && o.Audit != nil {
			entry := audit.Entry{
				TenantID:    req.TenantID,
				ResponseID:  responseID,
				ToolCalls:   toolCalls,
				ToolResults: toolResults,
				Timestamp:   float64(o.now().Unix()),
			}
			if err := o.Audit.Append(ctx, entry); err != nil {
				return nil, nil, fmt.Errorf("append audit entry: %w", err)
			}
		}

		terminal := output.ToolIntent == nil || !req.ExecuteTools
		if hasWallclockLimit && o.now().After(deadline) {
			terminal = true
		}
		if terminal {
			break
		}
	}

	resp.setText(textBuf.String())
	resp.Status = StatusCompleted
	resp.CompletedAt = float64(o.now().Unix())

	if err := o.Store.SaveResponse(ctx, resp, t, req.TenantID); err != nil {
		return nil, nil, fmt.Errorf("save response: %w", err)
	}

	return resp, t, nil
}

// compile calls the tool_compiler endpoint and parses its text output into
// structured tool calls (spec.md §4.2).
func (o *Orchestrator) compile(ctx context.Context, t *transcript.CanonicalTranscript, toolSchemas []transcript.ToolSchema, toolIntent string) ([]transcript.ToolCall, error) {
	text, err := o.Generator.CompileIntent(ctx, t, toolSchemas, toolIntent)
	if err != nil {
		return nil, err
	}
	calls, err := toolcompiler.Compile(text)
	if err != nil {
		return nil, err
	}
	return calls, nil
}

// execute dispatches each compiled call sequentially (spec.md §5: no
// parallel tool dispatch within a step), intercepting `task` calls for
// bounded-depth recursion (spec.md §4.5).
func (o *Orchestrator) execute(ctx context.Context, t *transcript.CanonicalTranscript, calls []transcript.ToolCall, req Request, responseID string) []transcript.ToolResult {
	results := make([]transcript.ToolResult, 0, len(calls))
	for _, call := range calls {
		if call.Tool == "" {
			results = append(results, transcript.ToolResult{Tool: call.Tool, OK: false, Output: map[string]any{"error": "unknown tool"}})
			continue
		}
		if call.Tool == "task" {
			results = append(results, o.runTask(ctx, t, call, req, responseID))
			continue
		}
		res := o.Registry.Execute(ctx, &o.ToolCtx, call.Tool, call.Parameters)
		outcome := "ok"
		if !res.OK {
			outcome = "error"
		}
		metrics.ToolExecutions.WithLabelValues(call.Tool, outcome).Inc()
		results = append(results, transcript.ToolResult{Tool: call.Tool, OK: res.OK, Output: res.Output})
	}
	return results
}

// runTask implements spec.md §4.5's task-tool interception: a single
// bounded-depth child generate+append_step, no further recursion. The child
// transcript is persisted under the parent response id and its depth
// (SPEC_FULL.md §4.9's child-session bookkeeping); a persistence failure is
// logged but never fails the parent turn, since this bookkeeping is
// audit/debugging-only and does not affect orchestration semantics.
func (o *Orchestrator) runTask(ctx context.Context, t *transcript.CanonicalTranscript, call transcript.ToolCall, req Request, responseID string) transcript.ToolResult {
	depth := intParam(call.Parameters, "depth", 1)
	if depth >= o.Limits.MaxDepth {
		return transcript.ToolResult{Tool: "task", OK: false, Output: map[string]any{"error": "max depth exceeded"}}
	}

	prompt := stringParam(call.Parameters, "prompt")
	if prompt == "" {
		prompt = stringParam(call.Parameters, "description")
	}
	if prompt == "" {
		prompt = lastToolIntent(t)
	}
	if prompt == "" {
		prompt = lastGeneratorOutput(t)
	}

	child, err := rlm.InitializeTranscript("", prompt, nil)
	if err != nil {
		return transcript.ToolResult{Tool: "task", OK: false, Output: map[string]any{"error": err.Error()}}
	}

	output, err := o.Generator.Generate(ctx, child)
	if err != nil {
		return transcript.ToolResult{Tool: "task", OK: false, Output: map[string]any{"error": err.Error()}}
	}
	if err := rlm.AppendStep(child, output, nil, nil); err != nil {
		return transcript.ToolResult{Tool: "task", OK: false, Output: map[string]any{"error": err.Error()}}
	}

	sessionID := "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := o.Store.SaveChildSession(ctx, sessionID, responseID, depth, child); err != nil {
		logger := o.ToolCtx.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("save child session failed", "session_id", sessionID, "parent_id", responseID, "error", err)
	}

	return transcript.ToolResult{Tool: "task", OK: true, Output: map[string]any{"summary": output.Text}}
}

func lastToolIntent(t *transcript.CanonicalTranscript) string {
	for i := len(t.Steps) - 1; i >= 0; i-- {
		if t.Steps[i].ToolIntent != nil {
			return *t.Steps[i].ToolIntent
		}
	}
	return ""
}

func lastGeneratorOutput(t *transcript.CanonicalTranscript) string {
	if len(t.Steps) == 0 {
		return ""
	}
	return t.Steps[len(t.Steps)-1].GeneratorOutput
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
	default:
		return def
	}
}

func stringParam(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
