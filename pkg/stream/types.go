// Package stream holds the canonical types for Kulti streaming.
//
// Single source of truth for all streaming payloads. Every adapter
// (Claude Code, Gemini CLI, OpenClaw, watcher) and the state server build on
// these shapes; nothing here does I/O.
package stream

// ThoughtType classifies a unit of narration. The watch surface renders each
// type with a distinct style, so the set is closed.
type ThoughtType string

const (
	ThoughtGeneral     ThoughtType = "general"     // default thinking
	ThoughtReasoning   ThoughtType = "reasoning"   // why the agent is doing something
	ThoughtDecision    ThoughtType = "decision"    // a choice that was made
	ThoughtObservation ThoughtType = "observation" // something the agent noticed
	ThoughtEvaluation  ThoughtType = "evaluation"  // weighing options
	ThoughtContext     ThoughtType = "context"     // loading context
	ThoughtTool        ThoughtType = "tool"        // using a tool
	ThoughtPrompt      ThoughtType = "prompt"      // a prompt being crafted or received
	ThoughtConfusion   ThoughtType = "confusion"   // the agent hit something it doesn't understand
)

// ThoughtPriority is the visual importance of a thought on the watch surface.
type ThoughtPriority string

const (
	PriorityHeadline ThoughtPriority = "headline"
	PriorityWorking  ThoughtPriority = "working"
	PriorityDetail   ThoughtPriority = "detail"
)

// IsFinal reports whether a thought type closes out the current line of
// thinking. The state server clears the in-flight thinking text when a final
// thought arrives instead of replacing it.
func (t ThoughtType) IsFinal() bool {
	return t == ThoughtObservation || t == ThoughtEvaluation
}

// Thought is one typed unit of narration. ID and Timestamp are assigned by
// the state server on merge; producers leave them empty.
type Thought struct {
	ID        string          `json:"id,omitempty"`
	Type      ThoughtType     `json:"type"`
	Content   string          `json:"content"`
	Priority  ThoughtPriority `json:"priority,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Status is the coarse agent lifecycle state shown to viewers.
type Status string

const (
	StatusOffline  Status = "offline"
	StatusStarting Status = "starting"
	StatusWorking  Status = "working"
	StatusThinking Status = "thinking"
	StatusPaused   Status = "paused"
	StatusLive     Status = "live"
	StatusDone     Status = "done"
)

// ValidStatus reports whether s is a member of the closed status set.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOffline, StatusStarting, StatusWorking, StatusThinking, StatusPaused, StatusLive, StatusDone:
		return true
	}
	return false
}

// TerminalLine is one line of streamed terminal activity.
type TerminalLine struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Code is a streamed file write or edit.
type Code struct {
	Filename  string `json:"filename"`
	Language  string `json:"language"`
	Content   string `json:"content"`
	Action    string `json:"action"` // write, edit, delete
	Timestamp string `json:"timestamp,omitempty"`
}

// DiffHunk is a single hunk in a structured diff.
type DiffHunk struct {
	Start   int      `json:"start"`
	Removed []string `json:"removed"`
	Added   []string `json:"added"`
}

// Diff is a structured diff for edit operations.
type Diff struct {
	Filename string     `json:"filename"`
	Language string     `json:"language"`
	Hunks    []DiffHunk `json:"hunks"`
}

// Task is the agent's current task headline.
type Task struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Goal is a session goal declared by the agent.
type Goal struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Milestone marks progress within a session.
type Milestone struct {
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ErrorInfo is a structured error event for debug viewers.
type ErrorInfo struct {
	Message          string `json:"message"`
	File             string `json:"file,omitempty"`
	Line             int    `json:"line,omitempty"`
	Stack            string `json:"stack,omitempty"`
	RecoveryStrategy string `json:"recovery_strategy,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
}

// Preview points at the agent's live preview deployment.
type Preview struct {
	URL    string `json:"url,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Stats carries monotonic activity counters. On the wire these are deltas:
// callers send increments and the server adds them, never the reverse.
type Stats struct {
	Files    int `json:"files,omitempty"`
	Commands int `json:"commands,omitempty"`
}

// Payload is the wire message from producers to the state server: a sparse
// patch against one agent's state, not a snapshot. Zero-valued fields are
// omitted and leave the corresponding state untouched.
type Payload struct {
	AgentID        string         `json:"agent_id,omitempty"`
	Status         Status         `json:"status,omitempty"`
	Task           *Task          `json:"task,omitempty"`
	Thought        *Thought       `json:"thought,omitempty"`
	Thinking       *string        `json:"thinking,omitempty"`
	Terminal       []TerminalLine `json:"terminal,omitempty"`
	TerminalAppend bool           `json:"terminal_append,omitempty"`
	Code           *Code          `json:"code,omitempty"`
	Diff           *Diff          `json:"diff,omitempty"`
	Goal           *Goal          `json:"goal,omitempty"`
	Milestone      *Milestone     `json:"milestone,omitempty"`
	Error          *ErrorInfo     `json:"error,omitempty"`
	Preview        *Preview       `json:"preview,omitempty"`
	Stats          *Stats         `json:"stats,omitempty"`
	Clear          bool           `json:"clear,omitempty"`

	// Legacy camelCase aliases still emitted by older producers.
	// Normalize folds them into the canonical fields.
	LegacyAgentID        string `json:"agentId,omitempty"`
	LegacyTerminalAppend *bool  `json:"terminalAppend,omitempty"`
}

// Normalize folds legacy camelCase fields into their canonical counterparts
// and fills in the default agent id when none was provided.
func (p *Payload) Normalize(defaultAgentID string) {
	if p.AgentID == "" && p.LegacyAgentID != "" {
		p.AgentID = p.LegacyAgentID
	}
	if p.AgentID == "" {
		p.AgentID = defaultAgentID
	}
	if !p.TerminalAppend && p.LegacyTerminalAppend != nil {
		p.TerminalAppend = *p.LegacyTerminalAppend
	}
	p.LegacyAgentID = ""
	p.LegacyTerminalAppend = nil
}

// ToolPhase is the position of a tool event relative to execution.
type ToolPhase string

const (
	PhaseBefore ToolPhase = "before"
	PhaseAfter  ToolPhase = "after"
)

// NormalizedToolEvent is the agent-agnostic representation of a tool
// invocation. Each adapter converts its runtime's native event shape into
// this before classification; it is transient and discarded afterwards.
type NormalizedToolEvent struct {
	ToolName string
	Phase    ToolPhase
	Params   map[string]any
	Result   any
}
