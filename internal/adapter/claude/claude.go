// Package claude adapts Claude Code hook events into Kulti payloads. Claude
// Code invokes the hook binary with the event JSON on stdin and the event
// name in CLAUDE_HOOK_EVENT_NAME; the adapter classifies the event and fires
// one payload at the state server.
//
// A hook that exits non-zero can block the host's tool call, so every failure
// path here is a silent no-op.
package claude

import (
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// EnvHookEvent is set by Claude Code for each hook invocation.
const EnvHookEvent = "CLAUDE_HOOK_EVENT_NAME"

// Sender is the outbound side of the adapter; *kulti.Client satisfies it.
type Sender interface {
	Send(payload *stream.Payload)
	Flush()
}

// Adapter converts one hook invocation into at most one payload.
type Adapter struct {
	sender  Sender
	enabled bool
	logger  *zap.Logger
}

// New builds an adapter from environment settings.
func New(settings config.Settings, sender Sender, logger *zap.Logger) *Adapter {
	return &Adapter{
		sender:  sender,
		enabled: settings.Enabled,
		logger:  logger,
	}
}

// Run reads the hook JSON from stdin, classifies it, and sends the result.
// It always returns nil: empty stdin, invalid JSON, and unknown events are
// all valid no-ops from the host's point of view.
func (a *Adapter) Run(stdin io.Reader, hookEvent string) error {
	if !a.enabled {
		return nil
	}

	raw, err := io.ReadAll(stdin)
	if err != nil || len(raw) == 0 {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		a.logger.Debug("Hook input not JSON", zap.Error(err))
		return nil
	}

	payload := a.classify(hookEvent, data)
	if payload != nil {
		a.sender.Send(payload)
		a.sender.Flush()
	}
	return nil
}

func (a *Adapter) classify(hookEvent string, data map[string]any) *stream.Payload {
	switch hookEvent {
	case "PreToolUse":
		return stream.ClassifyBeforeTool(stream.NormalizedToolEvent{
			ToolName: strField(data, "tool_name"),
			Phase:    stream.PhaseBefore,
			Params:   decodeToolInput(data["tool_input"]),
		})

	case "PostToolUse":
		return stream.ClassifyAfterTool(stream.NormalizedToolEvent{
			ToolName: strField(data, "tool_name"),
			Phase:    stream.PhaseAfter,
			Params:   decodeToolInput(data["tool_input"]),
			Result:   data["tool_response"],
		})

	case "UserPromptSubmit":
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtPrompt,
				Content:  "User: " + stream.Truncate(extractMessage(data), stream.MaxPromptLen),
				Metadata: map[string]any{},
			},
			Status: stream.StatusWorking,
		}

	case "Stop":
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtEvaluation,
				Content:  "Turn complete",
				Metadata: map[string]any{},
			},
			Status: stream.StatusThinking,
		}

	case "SubagentStart":
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtReasoning,
				Content:  "Subagent started: " + subagentName(data),
				Metadata: map[string]any{"tool": "subagent"},
			},
		}

	case "SubagentStop":
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtObservation,
				Content:  "Subagent finished: " + subagentName(data),
				Metadata: map[string]any{"tool": "subagent"},
			},
		}
	}

	return nil
}

// decodeToolInput accepts both an inline object and a string-encoded JSON
// object; Claude Code has shipped both shapes.
func decodeToolInput(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case string:
		var params map[string]any
		if err := json.Unmarshal([]byte(v), &params); err == nil {
			return params
		}
	}
	return map[string]any{}
}

// extractMessage digs the user message out of the event, trying the field
// names different Claude Code versions have used.
func extractMessage(data map[string]any) string {
	for _, key := range []string{"message", "prompt", "content"} {
		switch v := data[key].(type) {
		case string:
			return v
		case map[string]any:
			if inner, ok := v["content"].(string); ok {
				return inner
			}
		}
	}
	return ""
}

func subagentName(data map[string]any) string {
	if name := strField(data, "agent_name"); name != "" {
		return name
	}
	if name := strField(data, "subagent_type"); name != "" {
		return name
	}
	return "subagent"
}

func strField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
