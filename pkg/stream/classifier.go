package stream

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Tool classification engine.
//
// Normalizes agent-specific tool names to canonical forms and produces
// Payload fragments for before/after tool events.
//
// Supported agents:
//   - Claude Code: Bash, Write, Edit, Read, Grep, Glob, Task, WebFetch, WebSearch
//   - OpenClaw:    exec, write_file, edit_file, read_file, search, grep, glob, browser, web_fetch, web_search
//   - Gemini CLI:  shell, write, read, search (mapped via NormalizeToolName)
//   - Codex CLI:   shell, create_file, apply_diff, read_file

// CanonicalTool is the closed set of tool categories the classifier narrates.
type CanonicalTool string

const (
	ToolExec      CanonicalTool = "exec"
	ToolWriteFile CanonicalTool = "write_file"
	ToolEditFile  CanonicalTool = "edit_file"
	ToolReadFile  CanonicalTool = "read_file"
	ToolSearch    CanonicalTool = "search"
	ToolBrowser   CanonicalTool = "browser"
	ToolWebFetch  CanonicalTool = "web_fetch"
	ToolWebSearch CanonicalTool = "web_search"
	ToolMemory    CanonicalTool = "memory"
	ToolDelegate  CanonicalTool = "delegate"
	ToolUnknown   CanonicalTool = "unknown"
)

var toolNameMap = map[string]CanonicalTool{
	// Claude Code
	"bash":      ToolExec,
	"write":     ToolWriteFile,
	"edit":      ToolEditFile,
	"read":      ToolReadFile,
	"grep":      ToolSearch,
	"glob":      ToolSearch,
	"task":      ToolDelegate,
	"webfetch":  ToolWebFetch,
	"websearch": ToolWebSearch,
	// OpenClaw
	"exec":          ToolExec,
	"write_file":    ToolWriteFile,
	"edit_file":     ToolEditFile,
	"read_file":     ToolReadFile,
	"search":        ToolSearch,
	"browser":       ToolBrowser,
	"web_fetch":     ToolWebFetch,
	"web_search":    ToolWebSearch,
	"memory_search": ToolMemory,
	"memory_get":    ToolMemory,
	// Codex CLI
	"shell":       ToolExec,
	"create_file": ToolWriteFile,
	"apply_diff":  ToolEditFile,
	// Gemini CLI
	"update_files": ToolWriteFile,
}

// NormalizeToolName maps a vendor tool name to its canonical category.
// Unrecognized names map to ToolUnknown, never an error — the contract is
// that every event can be narrated.
func NormalizeToolName(raw string) CanonicalTool {
	if canonical, ok := toolNameMap[strings.ToLower(raw)]; ok {
		return canonical
	}
	return ToolUnknown
}

// priorityFor assigns visual priority based on canonical tool and phase.
func priorityFor(canonical CanonicalTool, phase ToolPhase) ThoughtPriority {
	if phase == PhaseAfter {
		return PriorityDetail
	}
	switch canonical {
	case ToolDelegate:
		return PriorityHeadline
	case ToolExec, ToolWriteFile, ToolEditFile:
		return PriorityWorking
	case ToolReadFile, ToolSearch, ToolMemory:
		return PriorityDetail
	default:
		return PriorityWorking
	}
}

// ClassifyBeforeTool converts a "before" tool event into a payload carrying a
// present-tense narration and a working status. It never returns nil: an
// unrecognized (or empty) tool name falls back to a generic "Using: ..."
// narration — completeness of narration beats precision.
func ClassifyBeforeTool(event NormalizedToolEvent) *Payload {
	canonical := NormalizeToolName(event.ToolName)
	params := event.Params
	meta := map[string]any{"tool": event.ToolName}
	priority := priorityFor(canonical, PhaseBefore)

	var thought Thought

	switch canonical {
	case ToolExec:
		cmd := strParam(params, "command")
		label := strParam(params, "description")
		if label == "" {
			label = Truncate(cmd, 120)
		}
		if label == "" {
			label = "running command"
		}
		meta["command"] = Truncate(cmd, MaxArgLen)
		thought = Thought{Type: ThoughtTool, Content: "Running: " + label, Priority: priority, Metadata: meta}

	case ToolWriteFile:
		path := resolvePath(params)
		meta["file"] = path
		thought = Thought{Type: ThoughtDecision, Content: "Writing: " + ShortPath(path), Priority: priority, Metadata: meta}

	case ToolEditFile:
		path := resolvePath(params)
		meta["file"] = path
		thought = Thought{Type: ThoughtDecision, Content: "Editing: " + ShortPath(path), Priority: priority, Metadata: meta}

	case ToolReadFile:
		path := resolvePath(params)
		meta["file"] = path
		thought = Thought{Type: ThoughtObservation, Content: "Reading: " + ShortPath(path), Priority: priority, Metadata: meta}

	case ToolSearch:
		pattern := strParam(params, "pattern")
		if pattern == "" {
			pattern = strParam(params, "query")
		}
		meta["pattern"] = pattern
		thought = Thought{Type: ThoughtObservation, Content: "Searching: " + Truncate(pattern, MaxArgLen), Priority: priority, Metadata: meta}

	case ToolBrowser:
		action := strParam(params, "action")
		if action == "" {
			action = "browse"
		}
		target := strParam(params, "targetUrl")
		if target == "" {
			target = strParam(params, "url")
		}
		content := "Browser: " + action
		if target != "" {
			content += " " + target
		}
		thought = Thought{Type: ThoughtContext, Content: content, Priority: priority, Metadata: meta}

	case ToolWebFetch:
		thought = Thought{Type: ThoughtContext, Content: "Fetching: " + strParam(params, "url"), Priority: priority, Metadata: meta}

	case ToolWebSearch:
		thought = Thought{Type: ThoughtContext, Content: "Searching web: " + Truncate(strParam(params, "query"), MaxArgLen), Priority: priority, Metadata: meta}

	case ToolMemory:
		thought = Thought{Type: ThoughtContext, Content: "Recalling: " + Truncate(strParam(params, "query"), MaxArgLen), Priority: priority, Metadata: meta}

	case ToolDelegate:
		desc := strParam(params, "description")
		if desc == "" {
			desc = strParam(params, "prompt")
		}
		thought = Thought{Type: ThoughtReasoning, Content: "Delegating: " + Truncate(desc, MaxArgLen), Priority: priority, Metadata: meta}

	default:
		name := event.ToolName
		if name == "" {
			name = "tool"
		}
		thought = Thought{Type: ThoughtTool, Content: "Using: " + name, Priority: priority, Metadata: meta}
	}

	return &Payload{Thought: &thought, Status: StatusWorking}
}

// ClassifyAfterTool converts an "after" tool event into a payload, or nil
// when the completed call deserves no viewer-facing narration. Errors in the
// result always override the category mapping and force a confusion-typed
// thought carrying the error text.
func ClassifyAfterTool(event NormalizedToolEvent) *Payload {
	canonical := NormalizeToolName(event.ToolName)
	params := event.Params
	errInfo := detectError(event)

	var payload *Payload

	switch canonical {
	case ToolWriteFile:
		path := resolvePath(params)
		fname := ShortPath(path)
		payload = &Payload{
			Thought: &Thought{
				Type:     ThoughtObservation,
				Content:  Truncate("Wrote "+fname, MaxSummaryLen),
				Priority: PriorityDetail,
				Metadata: map[string]any{"tool": event.ToolName, "file": path},
			},
			Code: &Code{
				Filename: fname,
				Language: Language(fname),
				Content:  Truncate(strParam(params, "content"), MaxCodeLen),
				Action:   "write",
			},
			Stats: &Stats{Files: 1},
		}

	case ToolEditFile:
		path := resolvePath(params)
		fname := ShortPath(path)
		oldStr := strParam(params, "old_string")
		newStr := strParam(params, "new_string")

		diff := &Diff{
			Filename: fname,
			Language: Language(fname),
			Hunks: []DiffHunk{{
				Start:   0,
				Removed: strings.Split(oldStr, "\n"),
				Added:   strings.Split(newStr, "\n"),
			}},
		}

		// Legacy unified-style rendering kept for older watch surfaces.
		var legacy strings.Builder
		legacy.WriteString("--- " + fname + "\n")
		for _, line := range strings.Split(oldStr, "\n") {
			legacy.WriteString("- " + line + "\n")
		}
		for _, line := range strings.Split(newStr, "\n") {
			legacy.WriteString("+ " + line + "\n")
		}

		payload = &Payload{
			Thought: &Thought{
				Type:     ThoughtObservation,
				Content:  Truncate("Edited "+fname, MaxSummaryLen),
				Priority: PriorityDetail,
				Metadata: map[string]any{"tool": event.ToolName, "file": path},
			},
			Code: &Code{
				Filename: fname,
				Language: Language(fname),
				Content:  Truncate(legacy.String(), MaxCodeLen),
				Action:   "edit",
			},
			Diff:  diff,
			Stats: &Stats{Files: 1},
		}

	case ToolExec:
		cmd := strParam(params, "command")
		output := Truncate(event.Result, MaxTerminalLen)

		lines := []TerminalLine{{Type: "input", Content: "$ " + cmd}}
		if strings.TrimSpace(output) != "" {
			lines = append(lines, TerminalLine{Type: "output", Content: output})
		}
		payload = &Payload{
			Terminal:       lines,
			TerminalAppend: true,
			Stats:          &Stats{Commands: 1},
		}

	default:
		if errInfo == nil {
			return nil
		}
		payload = &Payload{}
	}

	if errInfo != nil {
		payload.Error = errInfo
		payload.Thought = &Thought{
			Type:     ThoughtConfusion,
			Content:  Truncate(errInfo.Message, MaxSummaryLen),
			Priority: PriorityWorking,
			Metadata: map[string]any{"tool": event.ToolName},
		}
	}
	return payload
}

var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)error:`),
	regexp.MustCompile(`Error: `),
	regexp.MustCompile(`ENOENT`),
	regexp.MustCompile(`EACCES`),
	regexp.MustCompile(`(?i)failed`),
	regexp.MustCompile(`(?i)exit code [1-9]`),
	regexp.MustCompile(`(?i)command not found`),
	regexp.MustCompile(`(?i)compilation failed`),
	regexp.MustCompile(`(?i)type error`),
	regexp.MustCompile(`(?i)syntax error`),
}

var errorLinePattern = regexp.MustCompile(`(?i)error|ENOENT|EACCES|failed|exit code`)

// detectError inspects a tool result for common failure signatures and
// extracts a structured error, or nil when the result looks healthy.
func detectError(event NormalizedToolEvent) *ErrorInfo {
	if event.Result == nil {
		return nil
	}

	var resultStr string
	if s, ok := event.Result.(string); ok {
		resultStr = s
	} else if encoded, err := json.Marshal(event.Result); err == nil {
		resultStr = string(encoded)
	} else {
		return nil
	}

	hasError := false
	for _, pattern := range errorPatterns {
		if pattern.MatchString(resultStr) {
			hasError = true
			break
		}
	}
	if !hasError {
		return nil
	}

	lines := strings.Split(resultStr, "\n")
	errorLine := lines[0]
	for _, line := range lines {
		if errorLinePattern.MatchString(line) {
			errorLine = line
			break
		}
	}
	if errorLine == "" {
		errorLine = "Unknown error"
	}

	info := &ErrorInfo{
		Message: Truncate(errorLine, MaxPromptLen),
		Stack:   Truncate(resultStr, 2000),
	}
	if file := resolvePath(event.Params); file != "unknown" {
		info.File = file
	}
	return info
}

func strParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if val, ok := params[key].(string); ok {
		return val
	}
	return ""
}

func resolvePath(params map[string]any) string {
	for _, key := range []string{"file_path", "path", "filename"} {
		if val := strParam(params, key); val != "" {
			return val
		}
	}
	return "unknown"
}
