// Package gemini adapts Gemini CLI lifecycle hooks (v0.26.0+) into Kulti
// payloads. Unlike the Claude adapter, which narrates individual tool calls,
// Gemini's hooks are session-level: agent turns, model calls, and tool
// selection.
package gemini

import (
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// EnvHookEvent is set by Gemini CLI for each hook invocation.
const EnvHookEvent = "GEMINI_HOOK_EVENT"

// DefaultAgentID is used when KULTI_AGENT_ID is unset; a Gemini session is
// its own agent rather than the default one.
const DefaultAgentID = "gemini"

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

// Run reads the hook JSON from stdin, classifies the lifecycle event, and
// sends the result. Empty stdin is valid for several Gemini events, so the
// event name alone can produce a payload.
func (a *Adapter) Run(stdin io.Reader, hookEvent string) error {
	if !a.enabled {
		return nil
	}

	data := map[string]any{}
	if raw, err := io.ReadAll(stdin); err == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			a.logger.Debug("Hook input not JSON", zap.Error(err))
			data = map[string]any{}
		}
	}

	payload := classify(hookEvent, data)
	if payload != nil {
		a.sender.Send(payload)
		a.sender.Flush()
	}
	return nil
}

func classify(hookEvent string, data map[string]any) *stream.Payload {
	switch hookEvent {
	case "BeforeAgent":
		content := "Agent starting"
		if prompt, ok := data["prompt"].(string); ok && prompt != "" {
			content = "User: " + stream.Truncate(prompt, stream.MaxPromptLen)
		}
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtPrompt,
				Content:  content,
				Metadata: map[string]any{},
			},
			Status: stream.StatusWorking,
		}

	case "AfterAgent":
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtEvaluation,
				Content:  "Agent turn complete",
				Metadata: map[string]any{},
			},
			Status: stream.StatusThinking,
		}

	case "BeforeModel":
		content := "Thinking..."
		metadata := map[string]any{}
		if model, ok := data["model"].(string); ok && model != "" {
			content = "Thinking (" + model + ")..."
			metadata["model"] = model
		}
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtReasoning,
				Content:  content,
				Metadata: metadata,
			},
			Status: stream.StatusWorking,
		}

	case "AfterModel":
		content := ""
		for _, key := range []string{"response", "text"} {
			if text, ok := data[key].(string); ok && text != "" {
				content = stream.Truncate(text, stream.MaxSummaryLen)
				break
			}
		}
		if content == "" {
			content = "Model responded"
		}
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtGeneral,
				Content:  content,
				Metadata: map[string]any{},
			},
		}

	case "BeforeToolSelection":
		tools := toolList(data["tools"])
		content := "Selecting tools"
		metadata := map[string]any{}
		if tools != "" {
			content = "Considering tools: " + stream.Truncate(tools, stream.MaxArgLen)
			metadata["tools"] = tools
		}
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtTool,
				Content:  content,
				Metadata: metadata,
			},
			Status: stream.StatusWorking,
		}

	case "SessionEnd":
		return &stream.Payload{
			Thought: &stream.Thought{
				Type:     stream.ThoughtEvaluation,
				Content:  "Session ended",
				Metadata: map[string]any{},
			},
			Status: stream.StatusThinking,
		}
	}

	return nil
}

func toolList(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if name, ok := item.(string); ok {
				names = append(names, name)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}
