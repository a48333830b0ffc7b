package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaDigestStableUnderReordering(t *testing.T) {
	a := []ToolSchema{
		{Name: "bash", Schema: json.RawMessage(`{"type":"object"}`)},
		{Name: "read", Schema: json.RawMessage(`{"type":"object"}`)},
	}
	b := []ToolSchema{a[1], a[0]}

	digestA, err := SchemaDigest(a)
	require.NoError(t, err)
	digestB, err := SchemaDigest(b)
	require.NoError(t, err)

	assert.Equal(t, digestA, digestB)
}

func TestSchemaDigestChangesOnRename(t *testing.T) {
	original := []ToolSchema{{Name: "bash", Schema: json.RawMessage(`{"type":"object"}`)}}
	renamed := []ToolSchema{{Name: "shell", Schema: json.RawMessage(`{"type":"object"}`)}}

	d1, err := SchemaDigest(original)
	require.NoError(t, err)
	d2, err := SchemaDigest(renamed)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestAppendStepRejectsMismatchedResults(t *testing.T) {
	tr := &CanonicalTranscript{User: "hi"}
	err := tr.AppendStep(Step{
		GeneratorOutput: "ok",
		ToolCalls:       []ToolCall{{Tool: "bash"}},
		ToolResults:     []ToolResult{{Tool: "bash"}, {Tool: "bash"}},
	})
	assert.Error(t, err)
	assert.Empty(t, tr.Steps)
}

func TestAppendStepAllowsEmptyResults(t *testing.T) {
	tr := &CanonicalTranscript{User: "hi"}
	err := tr.AppendStep(Step{
		GeneratorOutput: "ok",
		ToolCalls:       []ToolCall{{Tool: "bash"}},
	})
	require.NoError(t, err)
	require.Len(t, tr.Steps, 1)
}

func TestHasVisionSignal(t *testing.T) {
	cases := []struct {
		name string
		tr   CanonicalTranscript
		want bool
	}{
		{"user mentions image", CanonicalTranscript{User: "describe this IMAGE"}, true},
		{"user mentions img", CanonicalTranscript{User: "see img.png"}, true},
		{"step output mentions image", CanonicalTranscript{User: "hi", Steps: []Step{{GeneratorOutput: "here's an image"}}}, true},
		{"no signal", CanonicalTranscript{User: "hello there"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.tr.HasVisionSignal())
		})
	}
}

func TestFinalTextConcatenatesInOrder(t *testing.T) {
	tr := CanonicalTranscript{Steps: []Step{
		{GeneratorOutput: "Hello, "},
		{GeneratorOutput: "world!"},
	}}
	assert.Equal(t, "Hello, world!", tr.FinalText())
}

func TestStepTerminal(t *testing.T) {
	intent := "do a thing"
	assert.True(t, Step{}.Terminal())
	assert.False(t, Step{ToolIntent: &intent}.Terminal())
}
