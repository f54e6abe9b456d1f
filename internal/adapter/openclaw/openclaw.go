// Package openclaw is the in-process OpenClaw plugin. Where the Claude and
// Gemini adapters run as short-lived hook processes, this one registers
// callbacks on the host's plugin API and streams for the whole session.
package openclaw

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// ToolCallEvent is the host's tool invocation event.
type ToolCallEvent struct {
	ToolName string
	Params   map[string]any
	Result   any
}

// MessageEvent is an inbound user message.
type MessageEvent struct {
	Content string
	From    string
}

// SessionContext identifies the session a callback fires in. AgentID may be
// empty; SessionKey then carries the identity as "agent:<id>:<rest>".
type SessionContext struct {
	AgentID    string
	SessionKey string
}

// PluginAPI is the surface the host hands to plugins at registration.
type PluginAPI interface {
	OnBeforeToolCall(fn func(event ToolCallEvent, ctx SessionContext))
	OnAfterToolCall(fn func(event ToolCallEvent, ctx SessionContext))
	OnSessionStart(fn func(ctx SessionContext))
	OnSessionEnd(fn func(ctx SessionContext))
	OnMessageReceived(fn func(event MessageEvent, ctx SessionContext))
}

// Sender is the outbound side of the plugin; *kulti.Client satisfies it.
type Sender interface {
	Send(payload *stream.Payload)
}

// Config is the plugin configuration block from the host's plugin settings.
type Config struct {
	AgentID string
	Enabled *bool // nil means enabled
}

// Plugin streams agent activity from inside an OpenClaw process.
type Plugin struct {
	sender         Sender
	defaultAgentID string
	logger         *zap.Logger
}

// ID is the plugin identifier the host registers us under.
const ID = "kulti-stream"

// New builds the plugin.
func New(cfg Config, sender Sender, logger *zap.Logger) *Plugin {
	agentID := cfg.AgentID
	if agentID == "" {
		agentID = "nex"
	}
	return &Plugin{
		sender:         sender,
		defaultAgentID: agentID,
		logger:         logger,
	}
}

// Register wires the plugin's callbacks into the host. A config with
// Enabled=false registers nothing at all.
func (p *Plugin) Register(api PluginAPI, cfg Config) {
	if cfg.Enabled != nil && !*cfg.Enabled {
		p.logger.Info("Streaming disabled via plugin config")
		return
	}

	api.OnBeforeToolCall(p.beforeToolCall)
	api.OnAfterToolCall(p.afterToolCall)
	api.OnSessionStart(p.sessionStart)
	api.OnSessionEnd(p.sessionEnd)
	api.OnMessageReceived(p.messageReceived)
	p.logger.Info("Streaming registered", zap.String("agent_id", p.defaultAgentID))
}

func (p *Plugin) beforeToolCall(event ToolCallEvent, ctx SessionContext) {
	payload := stream.ClassifyBeforeTool(stream.NormalizedToolEvent{
		ToolName: event.ToolName,
		Phase:    stream.PhaseBefore,
		Params:   event.Params,
	})
	payload.AgentID = p.resolveAgentID(ctx)
	p.sender.Send(payload)
}

func (p *Plugin) afterToolCall(event ToolCallEvent, ctx SessionContext) {
	payload := stream.ClassifyAfterTool(stream.NormalizedToolEvent{
		ToolName: event.ToolName,
		Phase:    stream.PhaseAfter,
		Params:   event.Params,
		Result:   event.Result,
	})
	if payload == nil {
		return
	}
	payload.AgentID = p.resolveAgentID(ctx)
	p.sender.Send(payload)
}

func (p *Plugin) sessionStart(ctx SessionContext) {
	p.sender.Send(&stream.Payload{
		AgentID: p.resolveAgentID(ctx),
		Status:  stream.StatusWorking,
		Thought: &stream.Thought{
			Type:     stream.ThoughtPrompt,
			Content:  "Session started",
			Metadata: map[string]any{},
		},
	})
}

func (p *Plugin) sessionEnd(ctx SessionContext) {
	p.sender.Send(&stream.Payload{
		AgentID: p.resolveAgentID(ctx),
		Status:  stream.StatusThinking,
		Thought: &stream.Thought{
			Type:     stream.ThoughtEvaluation,
			Content:  "Turn complete",
			Metadata: map[string]any{},
		},
	})
}

func (p *Plugin) messageReceived(event MessageEvent, _ SessionContext) {
	if event.Content == "" {
		return
	}
	metadata := map[string]any{}
	if event.From != "" {
		metadata["from"] = event.From
	}
	p.sender.Send(&stream.Payload{
		AgentID: p.defaultAgentID,
		Status:  stream.StatusWorking,
		Thought: &stream.Thought{
			Type:     stream.ThoughtPrompt,
			Content:  "User: " + stream.Truncate(event.Content, stream.MaxPromptLen),
			Metadata: metadata,
		},
	})
}

// resolveAgentID picks the agent identity for a callback: explicit context id
// first, then the session key's "agent:<id>:..." form, then the configured
// default.
func (p *Plugin) resolveAgentID(ctx SessionContext) string {
	if ctx.AgentID != "" {
		return ctx.AgentID
	}
	if ctx.SessionKey != "" {
		parts := strings.Split(ctx.SessionKey, ":")
		if len(parts) >= 2 && parts[0] == "agent" {
			return parts[1]
		}
	}
	return p.defaultAgentID
}
