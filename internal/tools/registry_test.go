package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopExecutor(_ context.Context, _ *Context, _ map[string]any) Result {
	return OKResult(nil)
}

func allExecutors() StandardExecutors {
	return StandardExecutors{
		Bash: noopExecutor, Read: noopExecutor, Write: noopExecutor, Edit: noopExecutor,
		MultiEdit: noopExecutor, Patch: noopExecutor, LS: noopExecutor, Glob: noopExecutor,
		Grep: noopExecutor, Webfetch: noopExecutor, Websearch: noopExecutor,
		Codesearch: noopExecutor, TodoRead: noopExecutor, TodoWrite: noopExecutor,
		Task: noopExecutor, Skill: noopExecutor, Batch: noopExecutor, Invalid: noopExecutor,
	}
}

func TestBuildStandardRegistryRegistersFullRosterInOrder(t *testing.T) {
	reg, err := BuildStandardRegistry(allExecutors())
	require.NoError(t, err)

	want := []string{
		"bash", "read", "write", "edit", "multiedit", "patch", "ls", "glob", "grep",
		"webfetch", "websearch", "codesearch", "todo_read", "todo_write", "task",
		"skill", "batch", "invalid",
	}
	assert.Equal(t, want, reg.Names())
}

func TestBuildStandardRegistrySkipsToolsWithNilExecutor(t *testing.T) {
	ex := allExecutors()
	ex.Websearch = nil
	ex.Codesearch = nil

	reg, err := BuildStandardRegistry(ex)
	require.NoError(t, err)

	_, ok := reg.Get("websearch")
	assert.False(t, ok)
	_, ok = reg.Get("codesearch")
	assert.False(t, ok)
	_, ok = reg.Get("bash")
	assert.True(t, ok)
}

func TestBuildStandardRegistryBashSchemaRequiresCommand(t *testing.T) {
	reg, err := BuildStandardRegistry(allExecutors())
	require.NoError(t, err)

	assert.Error(t, reg.ValidateParams("bash", map[string]any{}))
	assert.NoError(t, reg.ValidateParams("bash", map[string]any{"command": "ls"}))
}
