// Package usecase holds the application services behind the transport
// surfaces: payload ingestion, agent resolution, and viewer chat.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/infrastructure/persistence"
	"github.com/ga1ien/kulti-stream/internal/state"
	domainErrors "github.com/ga1ien/kulti-stream/pkg/errors"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// StreamUseCase is the ingestion pipeline: normalize a payload, merge it into
// the owning agent's state, fan the snapshot out, and queue persistence.
// Both the HTTP and WebSocket surfaces run through here.
type StreamUseCase struct {
	registry       *state.Registry
	store          *persistence.StreamStore
	writer         *persistence.Writer
	defaultAgentID string
	logger         *zap.Logger
}

// NewStreamUseCase wires the pipeline. store and writer may be nil for a
// memory-only server; ingestion then skips persistence entirely.
func NewStreamUseCase(
	registry *state.Registry,
	store *persistence.StreamStore,
	writer *persistence.Writer,
	defaultAgentID string,
	logger *zap.Logger,
) *StreamUseCase {
	if defaultAgentID == "" {
		defaultAgentID = "nex"
	}
	return &StreamUseCase{
		registry:       registry,
		store:          store,
		writer:         writer,
		defaultAgentID: defaultAgentID,
		logger:         logger,
	}
}

// DefaultAgentID returns the agent id used when a request names none.
func (u *StreamUseCase) DefaultAgentID() string {
	return u.defaultAgentID
}

// AgentCount returns how many agents the server has seen.
func (u *StreamUseCase) AgentCount() int {
	return u.registry.Count()
}

// ResolveAgent returns the live state for an agent id, creating and hydrating
// it from persistence on first sight. Hydration failures are logged and
// ignored; a fresh state is always usable.
func (u *StreamUseCase) ResolveAgent(agentID string) *state.AgentState {
	agent, created := u.registry.GetOrCreate(agentID)
	if created && u.store != nil {
		u.hydrate(agent)
	}
	return agent
}

// Ingest merges one payload and returns the resulting snapshot.
func (u *StreamUseCase) Ingest(p *stream.Payload) *state.Snapshot {
	p.Normalize(u.defaultAgentID)
	agent := u.ResolveAgent(p.AgentID)
	snap := agent.Apply(p)

	if u.writer != nil {
		u.writer.EnqueueSnapshot(snap)
		if p.Thought != nil && !p.Clear && len(snap.Thoughts) > 0 {
			// Persist the merged thought so it carries the server-assigned id.
			last := snap.Thoughts[len(snap.Thoughts)-1]
			u.writer.EnqueueThought(snap.AgentID, &last)
		}
	}
	return snap
}

// Chat broadcasts a viewer chat message to everyone watching the agent and
// queues it for persistence.
func (u *StreamUseCase) Chat(agentID, sender, content string) {
	if content == "" {
		return
	}
	if sender == "" {
		sender = "viewer"
	}
	agent := u.ResolveAgent(agentID)
	agent.Broadcast(map[string]any{
		"chat": map[string]any{
			"sender":    sender,
			"content":   content,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if u.writer != nil {
		u.writer.EnqueueChat(agentID, sender, content)
	}
}

func (u *StreamUseCase) hydrate(agent *state.AgentState) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	session, err := u.store.FindSession(ctx, agent.AgentID())
	if err != nil {
		if !domainErrors.IsNotFound(err) {
			u.logger.Warn("Session hydration failed",
				zap.String("agent_id", agent.AgentID()), zap.Error(err))
		}
		return
	}

	thoughts, err := u.store.RecentThoughts(ctx, agent.AgentID())
	if err != nil {
		u.logger.Warn("Thought hydration failed",
			zap.String("agent_id", agent.AgentID()), zap.Error(err))
		thoughts = nil
	}

	agent.Hydrate(
		state.AgentMeta{Name: session.Name, Avatar: session.Avatar},
		stream.Status(session.Status),
		session.TaskTitle,
		thoughts,
	)
	u.logger.Info("Agent hydrated from persistence",
		zap.String("agent_id", agent.AgentID()),
		zap.Int("thoughts", len(thoughts)))
}
