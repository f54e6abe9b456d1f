package stream

import (
	"strings"
	"testing"
)

// === NormalizeToolName ===

func TestNormalizeToolName(t *testing.T) {
	tests := []struct {
		raw  string
		want CanonicalTool
	}{
		{"Bash", ToolExec},
		{"bash", ToolExec},
		{"shell", ToolExec},
		{"Write", ToolWriteFile},
		{"create_file", ToolWriteFile},
		{"update_files", ToolWriteFile},
		{"Edit", ToolEditFile},
		{"apply_diff", ToolEditFile},
		{"Read", ToolReadFile},
		{"Grep", ToolSearch},
		{"Glob", ToolSearch},
		{"Task", ToolDelegate},
		{"WebFetch", ToolWebFetch},
		{"memory_search", ToolMemory},
		{"SomethingNew", ToolUnknown},
		{"", ToolUnknown},
	}
	for _, tt := range tests {
		if got := NormalizeToolName(tt.raw); got != tt.want {
			t.Errorf("NormalizeToolName(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

// === ClassifyBeforeTool ===

func TestClassifyBeforeTool_NeverNil(t *testing.T) {
	// Even a completely empty event must still narrate something.
	payload := ClassifyBeforeTool(NormalizedToolEvent{ToolName: "", Phase: PhaseBefore})
	if payload == nil {
		t.Fatal("ClassifyBeforeTool returned nil")
	}
	if payload.Thought == nil {
		t.Fatal("payload has no thought")
	}
	if payload.Status != StatusWorking {
		t.Errorf("status = %q, want working", payload.Status)
	}
	if !strings.HasPrefix(payload.Thought.Content, "Using: ") {
		t.Errorf("generic narration expected, got %q", payload.Thought.Content)
	}
}

func TestClassifyBeforeTool_Narrations(t *testing.T) {
	tests := []struct {
		name        string
		event       NormalizedToolEvent
		wantType    ThoughtType
		wantContent string
	}{
		{
			name: "read",
			event: NormalizedToolEvent{
				ToolName: "Read",
				Phase:    PhaseBefore,
				Params:   map[string]any{"file_path": "/src/app/main.go"},
			},
			wantType:    ThoughtObservation,
			wantContent: "Reading: main.go",
		},
		{
			name: "write",
			event: NormalizedToolEvent{
				ToolName: "Write",
				Phase:    PhaseBefore,
				Params:   map[string]any{"file_path": "/src/app/index.ts"},
			},
			wantType:    ThoughtDecision,
			wantContent: "Writing: index.ts",
		},
		{
			name: "bash with description",
			event: NormalizedToolEvent{
				ToolName: "Bash",
				Phase:    PhaseBefore,
				Params:   map[string]any{"command": "npm test", "description": "Run the test suite"},
			},
			wantType:    ThoughtTool,
			wantContent: "Running: Run the test suite",
		},
		{
			name: "bash without description",
			event: NormalizedToolEvent{
				ToolName: "Bash",
				Phase:    PhaseBefore,
				Params:   map[string]any{"command": "ls -la"},
			},
			wantType:    ThoughtTool,
			wantContent: "Running: ls -la",
		},
		{
			name: "grep",
			event: NormalizedToolEvent{
				ToolName: "Grep",
				Phase:    PhaseBefore,
				Params:   map[string]any{"pattern": "func main"},
			},
			wantType:    ThoughtObservation,
			wantContent: "Searching: func main",
		},
		{
			name: "task",
			event: NormalizedToolEvent{
				ToolName: "Task",
				Phase:    PhaseBefore,
				Params:   map[string]any{"description": "explore the codebase"},
			},
			wantType:    ThoughtReasoning,
			wantContent: "Delegating: explore the codebase",
		},
		{
			name: "web fetch",
			event: NormalizedToolEvent{
				ToolName: "WebFetch",
				Phase:    PhaseBefore,
				Params:   map[string]any{"url": "https://example.com"},
			},
			wantType:    ThoughtContext,
			wantContent: "Fetching: https://example.com",
		},
		{
			name: "unknown tool",
			event: NormalizedToolEvent{
				ToolName: "CustomTool",
				Phase:    PhaseBefore,
			},
			wantType:    ThoughtTool,
			wantContent: "Using: CustomTool",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := ClassifyBeforeTool(tt.event)
			if payload == nil || payload.Thought == nil {
				t.Fatal("expected payload with thought")
			}
			if payload.Thought.Type != tt.wantType {
				t.Errorf("type = %q, want %q", payload.Thought.Type, tt.wantType)
			}
			if payload.Thought.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", payload.Thought.Content, tt.wantContent)
			}
			if payload.Status != StatusWorking {
				t.Errorf("status = %q, want working", payload.Status)
			}
		})
	}
}

func TestClassifyBeforeTool_Priority(t *testing.T) {
	tests := []struct {
		tool string
		want ThoughtPriority
	}{
		{"Task", PriorityHeadline},
		{"Bash", PriorityWorking},
		{"Write", PriorityWorking},
		{"Read", PriorityDetail},
		{"Grep", PriorityDetail},
		{"Mystery", PriorityWorking},
	}
	for _, tt := range tests {
		payload := ClassifyBeforeTool(NormalizedToolEvent{ToolName: tt.tool, Phase: PhaseBefore})
		if payload.Thought.Priority != tt.want {
			t.Errorf("%s: priority = %q, want %q", tt.tool, payload.Thought.Priority, tt.want)
		}
	}
}

// === ClassifyAfterTool ===

func TestClassifyAfterTool_WriteEmitsObservationAndCode(t *testing.T) {
	payload := ClassifyAfterTool(NormalizedToolEvent{
		ToolName: "Write",
		Phase:    PhaseAfter,
		Params: map[string]any{
			"file_path": "/app/server.go",
			"content":   "package main\n",
		},
	})
	if payload == nil {
		t.Fatal("expected payload for write")
	}
	if payload.Thought == nil || payload.Thought.Type != ThoughtObservation {
		t.Fatalf("want observation thought, got %+v", payload.Thought)
	}
	if payload.Code == nil {
		t.Fatal("want code payload")
	}
	if payload.Code.Language != "go" {
		t.Errorf("language = %q, want go", payload.Code.Language)
	}
	if payload.Code.Action != "write" {
		t.Errorf("action = %q, want write", payload.Code.Action)
	}
	if payload.Stats == nil || payload.Stats.Files != 1 {
		t.Errorf("want files delta of 1, got %+v", payload.Stats)
	}
}

func TestClassifyAfterTool_EditEmitsDiff(t *testing.T) {
	payload := ClassifyAfterTool(NormalizedToolEvent{
		ToolName: "Edit",
		Phase:    PhaseAfter,
		Params: map[string]any{
			"file_path":  "/app/index.ts",
			"old_string": "const a = 1",
			"new_string": "const a = 2",
		},
	})
	if payload == nil || payload.Diff == nil {
		t.Fatal("expected diff payload for edit")
	}
	if len(payload.Diff.Hunks) != 1 {
		t.Fatalf("want 1 hunk, got %d", len(payload.Diff.Hunks))
	}
	hunk := payload.Diff.Hunks[0]
	if len(hunk.Removed) != 1 || hunk.Removed[0] != "const a = 1" {
		t.Errorf("removed = %v", hunk.Removed)
	}
	if len(hunk.Added) != 1 || hunk.Added[0] != "const a = 2" {
		t.Errorf("added = %v", hunk.Added)
	}
	if payload.Code == nil || payload.Code.Action != "edit" {
		t.Errorf("legacy code payload missing or wrong action: %+v", payload.Code)
	}
}

func TestClassifyAfterTool_ExecEmitsTerminalTail(t *testing.T) {
	payload := ClassifyAfterTool(NormalizedToolEvent{
		ToolName: "Bash",
		Phase:    PhaseAfter,
		Params:   map[string]any{"command": "go version"},
		Result:   "go version go1.24.2 linux/amd64",
	})
	if payload == nil {
		t.Fatal("expected payload for exec")
	}
	if !payload.TerminalAppend {
		t.Error("exec output must append, not replace")
	}
	if len(payload.Terminal) != 2 {
		t.Fatalf("want input+output lines, got %d", len(payload.Terminal))
	}
	if payload.Terminal[0].Content != "$ go version" {
		t.Errorf("input line = %q", payload.Terminal[0].Content)
	}
	if payload.Stats == nil || payload.Stats.Commands != 1 {
		t.Errorf("want commands delta of 1, got %+v", payload.Stats)
	}
}

func TestClassifyAfterTool_QuietToolsReturnNil(t *testing.T) {
	for _, tool := range []string{"Read", "Grep", "WebFetch", "Unknown"} {
		payload := ClassifyAfterTool(NormalizedToolEvent{
			ToolName: tool,
			Phase:    PhaseAfter,
			Result:   "some ordinary result",
		})
		if payload != nil {
			t.Errorf("%s: want nil payload, got %+v", tool, payload)
		}
	}
}

func TestClassifyAfterTool_ErrorForcesConfusion(t *testing.T) {
	// Any tool category: an error in the result overrides the mapping.
	for _, tool := range []string{"Bash", "Write", "Read", "NoSuchTool"} {
		payload := ClassifyAfterTool(NormalizedToolEvent{
			ToolName: tool,
			Phase:    PhaseAfter,
			Params:   map[string]any{"command": "make", "file_path": "/app/x.go", "content": "x"},
			Result:   "Error: compilation failed\nexit code 2",
		})
		if payload == nil {
			t.Fatalf("%s: want payload for error result", tool)
		}
		if payload.Thought == nil || payload.Thought.Type != ThoughtConfusion {
			t.Errorf("%s: want confusion thought, got %+v", tool, payload.Thought)
		}
		if payload.Error == nil {
			t.Errorf("%s: want structured error info", tool)
		}
	}
}

func TestClassifyAfterTool_StructuredResultErrorDetected(t *testing.T) {
	payload := ClassifyAfterTool(NormalizedToolEvent{
		ToolName: "Read",
		Phase:    PhaseAfter,
		Params:   map[string]any{"file_path": "/missing.txt"},
		Result:   map[string]any{"error": "ENOENT: no such file or directory"},
	})
	if payload == nil || payload.Thought == nil || payload.Thought.Type != ThoughtConfusion {
		t.Fatalf("want confusion for structured error result, got %+v", payload)
	}
	if payload.Error.File != "/missing.txt" {
		t.Errorf("error file = %q", payload.Error.File)
	}
}

func TestDetectError_CleanResultIsNil(t *testing.T) {
	if info := detectError(NormalizedToolEvent{Result: "all good\n3 tests passed"}); info != nil {
		t.Errorf("clean output flagged as error: %+v", info)
	}
	if info := detectError(NormalizedToolEvent{Result: nil}); info != nil {
		t.Errorf("nil result flagged as error: %+v", info)
	}
}

// === Payload.Normalize ===

func TestPayloadNormalize(t *testing.T) {
	appendTrue := true
	p := Payload{LegacyAgentID: "legacy", LegacyTerminalAppend: &appendTrue}
	p.Normalize("nex")
	if p.AgentID != "legacy" {
		t.Errorf("agent id = %q, want legacy", p.AgentID)
	}
	if !p.TerminalAppend {
		t.Error("terminalAppend alias not folded")
	}

	empty := Payload{}
	empty.Normalize("nex")
	if empty.AgentID != "nex" {
		t.Errorf("default agent id = %q, want nex", empty.AgentID)
	}
}
