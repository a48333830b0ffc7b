package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverfisk/rants/internal/audit"
	"github.com/silverfisk/rants/internal/rlm"
	"github.com/silverfisk/rants/internal/tools"
	"github.com/silverfisk/rants/internal/transcript"
)

// stubGenerator drives canned Generate/CompileIntent outputs in sequence.
type stubGenerator struct {
	outputs      []rlm.Output
	genCalls     int
	compileText  string
	compileErr   error
	compileCalls int
}

func (g *stubGenerator) Generate(_ context.Context, _ *transcript.CanonicalTranscript) (rlm.Output, error) {
	out := g.outputs[g.genCalls]
	if g.genCalls < len(g.outputs)-1 {
		g.genCalls++
	}
	return out, nil
}

func (g *stubGenerator) CompileIntent(_ context.Context, _ *transcript.CanonicalTranscript, _ []transcript.ToolSchema, _ string) (string, error) {
	g.compileCalls++
	return g.compileText, g.compileErr
}

type stubRegistry struct {
	schemas []transcript.ToolSchema
	execute func(name string, params map[string]any) tools.Result
}

func (r *stubRegistry) Schemas() []transcript.ToolSchema { return r.schemas }

func (r *stubRegistry) Execute(_ context.Context, _ *tools.Context, name string, params map[string]any) tools.Result {
	if r.execute != nil {
		return r.execute(name, params)
	}
	return tools.OKResult(map[string]any{})
}

type stubStore struct {
	steps        []transcript.Step
	found        bool
	loadErr      error
	saved        *ResponseObject
	savedErr     error
	childParents []string
	childDepths  []int
}

func (s *stubStore) LoadPreviousSteps(_ context.Context, _, _ string) ([]transcript.Step, bool, error) {
	return s.steps, s.found, s.loadErr
}

func (s *stubStore) SaveResponse(_ context.Context, resp *ResponseObject, _ *transcript.CanonicalTranscript, _ string) error {
	s.saved = resp
	return s.savedErr
}

func (s *stubStore) SaveChildSession(_ context.Context, _, parentID string, depth int, _ *transcript.CanonicalTranscript) error {
	s.childParents = append(s.childParents, parentID)
	s.childDepths = append(s.childDepths, depth)
	return nil
}

type stubAudit struct {
	entries []audit.Entry
}

func (a *stubAudit) Append(_ context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func TestRunHappyPathNoToolIntent(t *testing.T) {
	gen := &stubGenerator{outputs: []rlm.Output{{Text: "hello there"}}}
	store := &stubStore{}
	o := New(gen, &stubRegistry{}, store, nil, Limits{MaxToolIterations: 5}, tools.Context{})

	resp, tr, err := o.Run(context.Background(), Request{Model: "m", User: "hi", ExecuteTools: true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, "hello there", resp.Text())
	assert.Equal(t, "hello there", transcriptText(tr))
	assert.Equal(t, 0, gen.compileCalls)
	assert.Same(t, resp, store.saved)
}

func TestRunExecutesToolThenTerminates(t *testing.T) {
	intent := "list files"
	gen := &stubGenerator{
		outputs:     []rlm.Output{{Text: "let me check", ToolIntent: &intent}, {Text: "done"}},
		compileText: `{"tool_calls":[{"tool":"bash","parameters":{"command":"ls"}}]}`,
	}
	reg := &stubRegistry{execute: func(name string, _ map[string]any) tools.Result {
		assert.Equal(t, "bash", name)
		return tools.OKResult(map[string]any{"stdout": "a.txt\n"})
	}}
	store := &stubStore{}
	o := New(gen, reg, store, nil, Limits{MaxToolIterations: 5}, tools.Context{})

	resp, tr, err := o.Run(context.Background(), Request{Model: "m", User: "hi", ExecuteTools: true})
	require.NoError(t, err)
	assert.Equal(t, "let me checkdone", resp.Text())
	require.Len(t, tr.Steps, 2)
	require.Len(t, tr.Steps[0].ToolResults, 1)
	assert.True(t, tr.Steps[0].ToolResults[0].OK)
}

func TestRunToolUseWithoutExecution(t *testing.T) {
	intent := "list files"
	gen := &stubGenerator{
		outputs:     []rlm.Output{{Text: "let me check", ToolIntent: &intent}},
		compileText: `{"tool_calls":[{"tool":"bash","parameters":{"command":"ls"}}]}`,
	}
	store := &stubStore{}
	o := New(gen, &stubRegistry{}, store, nil, Limits{MaxToolIterations: 5}, tools.Context{})

	resp, tr, err := o.Run(context.Background(), Request{Model: "m", User: "hi", ExecuteTools: false})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	require.Len(t, tr.Steps, 1)
	require.Len(t, tr.Steps[0].ToolCalls, 1)
	assert.Empty(t, tr.Steps[0].ToolResults)
}

func TestRunSandboxEscapeSurfacesAsToolError(t *testing.T) {
	intent := "read a file outside the workspace"
	gen := &stubGenerator{
		outputs:     []rlm.Output{{Text: "ok", ToolIntent: &intent}, {Text: "done"}},
		compileText: `{"tool_calls":[{"tool":"read","parameters":{"path":"../../etc/passwd"}}]}`,
	}
	reg := &stubRegistry{execute: func(string, map[string]any) tools.Result {
		return tools.ErrorResult("path escapes workspace root")
	}}
	store := &stubStore{}
	o := New(gen, reg, store, nil, Limits{MaxToolIterations: 5}, tools.Context{})

	_, tr, err := o.Run(context.Background(), Request{Model: "m", User: "hi", ExecuteTools: true})
	require.NoError(t, err)
	require.Len(t, tr.Steps[0].ToolResults, 1)
	assert.False(t, tr.Steps[0].ToolResults[0].OK)
	assert.Contains(t, tr.Steps[0].ToolResults[0].Output["error"], "escapes workspace")
}

func TestRunRecursiveTaskAtDepthCapFails(t *testing.T) {
	intent := "delegate"
	gen := &stubGenerator{
		outputs:     []rlm.Output{{Text: "ok", ToolIntent: &intent}, {Text: "done"}},
		compileText: `{"tool_calls":[{"tool":"task","parameters":{"depth":2,"prompt":"sub task"}}]}`,
	}
	store := &stubStore{}
	o := New(gen, &stubRegistry{}, store, nil, Limits{MaxToolIterations: 5, MaxDepth: 2}, tools.Context{})

	_, tr, err := o.Run(context.Background(), Request{Model: "m", User: "hi", ExecuteTools: true})
	require.NoError(t, err)
	require.Len(t, tr.Steps[0].ToolResults, 1)
	assert.False(t, tr.Steps[0].ToolResults[0].OK)
	assert.Equal(t, "max depth exceeded", tr.Steps[0].ToolResults[0].Output["error"])
}

func TestRunRecursiveTaskUnderDepthCapSucceeds(t *testing.T) {
	intent := "delegate"
	gen := &stubGenerator{
		outputs:     []rlm.Output{{Text: "ok", ToolIntent: &intent}, {Text: "done"}},
		compileText: `{"tool_calls":[{"tool":"task","parameters":{"depth":1,"prompt":"sub task"}}]}`,
	}
	store := &stubStore{}
	o := New(gen, &stubRegistry{}, store, nil, Limits{MaxToolIterations: 5, MaxDepth: 2}, tools.Context{})

	resp, tr, err := o.Run(context.Background(), Request{Model: "m", User: "hi", ExecuteTools: true})
	require.NoError(t, err)
	require.Len(t, tr.Steps[0].ToolResults, 1)
	assert.True(t, tr.Steps[0].ToolResults[0].OK)
	assert.Equal(t, "done", tr.Steps[0].ToolResults[0].Output["summary"])

	require.Len(t, store.childParents, 1)
	assert.Equal(t, resp.ID, store.childParents[0])
	assert.Equal(t, 1, store.childDepths[0])
}

func TestRunCrossTenantIsolationNotFound(t *testing.T) {
	gen := &stubGenerator{outputs: []rlm.Output{{Text: "hi"}}}
	store := &stubStore{found: false}
	o := New(gen, &stubRegistry{}, store, nil, Limits{MaxToolIterations: 5}, tools.Context{})

	_, tr, err := o.Run(context.Background(), Request{
		Model: "m", User: "hi", ExecuteTools: true,
		PreviousResponseID: "resp_other_tenant", TenantID: "tenant-b",
	})
	require.NoError(t, err)
	assert.Len(t, tr.Steps, 1) // store reported not-found; no prior steps loaded
}

func TestRunPropagatesGeneratorError(t *testing.T) {
	boom := errors.New("upstream exploded")
	gen := &erroringGenerator{err: boom}
	o := New(gen, &stubRegistry{}, &stubStore{}, nil, Limits{MaxToolIterations: 5}, tools.Context{})

	_, _, err := o.Run(context.Background(), Request{Model: "m", User: "hi"})
	assert.ErrorIs(t, err, boom)
}

type erroringGenerator struct{ err error }

func (g *erroringGenerator) Generate(context.Context, *transcript.CanonicalTranscript) (rlm.Output, error) {
	return rlm.Output{}, g.err
}

func (g *erroringGenerator) CompileIntent(context.Context, *transcript.CanonicalTranscript, []transcript.ToolSchema, string) (string, error) {
	return "", nil
}

func TestRunRecordsAuditEntryWhenToolsInvolved(t *testing.T) {
	intent := "list files"
	gen := &stubGenerator{
		outputs:     []rlm.Output{{Text: "ok", ToolIntent: &intent}, {Text: "done"}},
		compileText: `{"tool_calls":[{"tool":"bash","parameters":{"command":"ls"}}]}`,
	}
	sink := &stubAudit{}
	o := New(gen, &stubRegistry{}, &stubStore{}, sink, Limits{MaxToolIterations: 5}, tools.Context{})

	_, _, err := o.Run(context.Background(), Request{Model: "m", User: "hi", ExecuteTools: true, TenantID: "tenant-a"})
	require.NoError(t, err)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "tenant-a", sink.entries[0].TenantID)
}
