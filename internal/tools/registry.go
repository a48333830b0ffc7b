package tools

import "encoding/json"

// schema is a small helper for inlining JSON Schema object literals below.
func schema(s string) json.RawMessage { return json.RawMessage(s) }

// StandardExecutors supplies the executors for the standard roster named
// in spec.md §4.3: bash, read, write, edit, multiedit, patch, ls, glob,
// grep, webfetch, websearch, codesearch, todo_read, todo_write, task,
// skill, batch, invalid. Executors are supplied by the caller (internal/
// bashtool, internal/tools/files, internal/webtool, internal/tools/
// placeholder) to avoid an import cycle between this package and theirs.
type StandardExecutors struct {
	Bash       Executor
	Read       Executor
	Write      Executor
	Edit       Executor
	MultiEdit  Executor
	Patch      Executor
	LS         Executor
	Glob       Executor
	Grep       Executor
	Webfetch   Executor
	Websearch  Executor
	Codesearch Executor
	TodoRead   Executor
	TodoWrite  Executor
	Task       Executor
	Skill      Executor
	Batch      Executor
	Invalid    Executor
}

// BuildStandardRegistry registers the standard tool roster, in the
// insertion order spec.md §4.3 lists, and returns the populated registry.
func BuildStandardRegistry(ex StandardExecutors) (*Registry, error) {
	reg := NewRegistry()
	defs := []Definition{
		{
			Name:        "bash",
			Description: "Run a shell command inside the sandboxed workspace.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"command": {"type": "string", "description": "Shell command to run."},
					"timeout": {"type": "integer", "description": "Timeout in milliseconds (default 120000).", "minimum": 1},
					"workdir": {"type": "string", "description": "Working directory, relative to the workspace."}
				},
				"required": ["command"]
			}`),
			Run: ex.Bash,
		},
		{
			Name:        "read",
			Description: "Read a file from the workspace with optional line offset/limit.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"filePath": {"type": "string"},
					"offset": {"type": "integer", "minimum": 0},
					"limit": {"type": "integer", "minimum": 1}
				},
				"required": ["filePath"]
			}`),
			Run: ex.Read,
		},
		{
			Name:        "write",
			Description: "Write content to a file in the workspace, creating parent directories and overwriting any existing content.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"filePath": {"type": "string"},
					"content": {"type": "string"}
				},
				"required": ["filePath", "content"]
			}`),
			Run: ex.Write,
		},
		{
			Name:        "edit",
			Description: "Replace an exact string occurrence in a file.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"filePath": {"type": "string"},
					"oldString": {"type": "string"},
					"newString": {"type": "string"},
					"replaceAll": {"type": "boolean"}
				},
				"required": ["filePath", "oldString", "newString"]
			}`),
			Run: ex.Edit,
		},
		{
			Name:        "multiedit",
			Description: "Apply an ordered list of exact-string edits to a file atomically.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"filePath": {"type": "string"},
					"edits": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"oldString": {"type": "string"},
								"newString": {"type": "string"},
								"replaceAll": {"type": "boolean"}
							},
							"required": ["oldString", "newString"]
						}
					}
				},
				"required": ["filePath", "edits"]
			}`),
			Run: ex.MultiEdit,
		},
		{
			Name:        "patch",
			Description: "Apply a restricted unified-diff patch to one or more workspace files.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"patch": {"type": "string"}
				},
				"required": ["patch"]
			}`),
			Run: ex.Patch,
		},
		{
			Name:        "ls",
			Description: "List entries of a sandboxed directory.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string"}
				}
			}`),
			Run: ex.LS,
		},
		{
			Name:        "glob",
			Description: "Recursive shell-style pattern matching under an optional sandboxed base.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string"},
					"path": {"type": "string"}
				},
				"required": ["pattern"]
			}`),
			Run: ex.Glob,
		},
		{
			Name:        "grep",
			Description: "Regex search with an optional include glob filter.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string"},
					"include": {"type": "string"},
					"path": {"type": "string"}
				},
				"required": ["pattern"]
			}`),
			Run: ex.Grep,
		},
		{
			Name:        "webfetch",
			Description: "Fetch a URL over HTTP GET.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"url": {"type": "string"}
				},
				"required": ["url"]
			}`),
			Run: ex.Webfetch,
		},
		{
			Name:        "websearch",
			Description: "Search the web (not configured in this deployment).",
			Schema:      schema(`{"type": "object", "properties": {"query": {"type": "string"}}}`),
			Run:         ex.Websearch,
		},
		{
			Name:        "codesearch",
			Description: "Search code across repositories (not configured in this deployment).",
			Schema:      schema(`{"type": "object", "properties": {"query": {"type": "string"}}}`),
			Run:         ex.Codesearch,
		},
		{
			Name:        "todo_read",
			Description: "Read the current todo list.",
			Schema:      schema(`{"type": "object"}`),
			Run:         ex.TodoRead,
		},
		{
			Name:        "todo_write",
			Description: "Write the todo list.",
			Schema:      schema(`{"type": "object", "properties": {"todos": {"type": "array"}}}`),
			Run:         ex.TodoWrite,
		},
		{
			Name:        "task",
			Description: "Spawn a bounded-depth child session with its own prompt.",
			Schema: schema(`{
				"type": "object",
				"properties": {
					"prompt": {"type": "string"},
					"description": {"type": "string"},
					"depth": {"type": "integer", "minimum": 0}
				}
			}`),
			Run: ex.Task,
		},
		{
			Name:        "skill",
			Description: "Invoke a named skill (not configured in this deployment).",
			Schema:      schema(`{"type": "object", "properties": {"name": {"type": "string"}}}`),
			Run:         ex.Skill,
		},
		{
			Name:        "batch",
			Description: "Run multiple tool calls as one logical unit (not configured in this deployment).",
			Schema:      schema(`{"type": "object", "properties": {"calls": {"type": "array"}}}`),
			Run:         ex.Batch,
		},
		{
			Name:        "invalid",
			Description: "Always fails; exists to exercise the unknown/invalid tool path.",
			Schema:      schema(`{"type": "object"}`),
			Run:         ex.Invalid,
		},
	}

	for _, def := range defs {
		if def.Run == nil {
			continue
		}
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
