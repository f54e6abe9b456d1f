// Package state owns the live per-agent streaming state: the mutable
// aggregate each agent id maps to, the merge semantics for incoming payload
// patches, and the fan-out to connected viewers.
package state

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// Ring buffer caps. Fixed invariants of the deployment, not tunables: the
// bounded-buffer tests pin these values.
const (
	TerminalCap   = 500
	ThoughtsCap   = 100
	MilestonesCap = 50
	ErrorsCap     = 10
)

// Viewer is one delivery target for state broadcasts. Deliver must not block;
// the WebSocket layer backs it with a buffered send channel.
type Viewer interface {
	Deliver(message []byte)
}

// SessionStats are the cumulative activity counters for one agent session.
type SessionStats struct {
	Files     int   `json:"files"`
	Commands  int   `json:"commands"`
	StartTime int64 `json:"startTime"`
}

// Snapshot is the full-state message sent to viewers. Every update broadcasts
// a complete snapshot, never a diff — new viewers and long-lived viewers see
// the same thing.
type Snapshot struct {
	AgentID      string                `json:"agent_id"`
	Agent        AgentMeta             `json:"agent"`
	Task         stream.Task           `json:"task"`
	Status       stream.Status         `json:"status"`
	Terminal     []stream.TerminalLine `json:"terminal"`
	Thinking     string                `json:"thinking"`
	Thoughts     []stream.Thought      `json:"thoughts"`
	Code         *stream.Code          `json:"code"`
	Diff         *stream.Diff          `json:"diff,omitempty"`
	Goal         *stream.Goal          `json:"goal,omitempty"`
	Milestones   []stream.Milestone    `json:"milestones,omitempty"`
	RecentErrors []stream.ErrorInfo    `json:"recent_errors,omitempty"`
	Preview      stream.Preview        `json:"preview"`
	Stats        SessionStats          `json:"stats"`
	Viewers      int                   `json:"viewers"`
}

// AgentMeta is the display identity of an agent.
type AgentMeta struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// AgentState is the mutable aggregate for one agent id. All access goes
// through methods that hold the state mutex; a merge (read state, apply
// patch, marshal snapshot, hand to viewers) completes atomically under one
// lock acquisition, so two concurrent posts for the same agent can never
// interleave partial merges or lose an update.
type AgentState struct {
	mu sync.Mutex

	agentID      string
	meta         AgentMeta
	task         stream.Task
	status       stream.Status
	terminal     []stream.TerminalLine
	thinking     string
	thoughts     []stream.Thought
	code         *stream.Code
	diff         *stream.Diff
	goal         *stream.Goal
	milestones   []stream.Milestone
	recentErrors []stream.ErrorInfo
	stats        SessionStats
	preview      stream.Preview

	// viewers is owned exclusively by this state; membership changes only on
	// connect/disconnect.
	viewers map[Viewer]struct{}
}

func newAgentState(agentID string, profile Profile) *AgentState {
	s := &AgentState{
		agentID: agentID,
		viewers: make(map[Viewer]struct{}),
	}
	s.resetLocked()
	if profile.Name != "" {
		s.meta.Name = profile.Name
	}
	if profile.Avatar != "" {
		s.meta.Avatar = profile.Avatar
	}
	if profile.PreviewDomain != "" {
		s.preview.Domain = profile.PreviewDomain
	}
	return s
}

// resetLocked restores defaults. Caller holds the mutex (or is the
// constructor).
func (s *AgentState) resetLocked() {
	s.meta = AgentMeta{Name: displayName(s.agentID), Avatar: "🤖"}
	s.task = stream.Task{Title: "Waiting..."}
	s.status = stream.StatusStarting
	s.terminal = nil
	s.thinking = ""
	s.thoughts = nil
	s.code = nil
	s.diff = nil
	s.goal = nil
	s.milestones = nil
	s.recentErrors = nil
	s.stats = SessionStats{StartTime: time.Now().UnixMilli()}
	s.preview = stream.Preview{Domain: s.agentID + ".preview.kulti.club"}
}

// AgentID returns the identity of this state.
func (s *AgentState) AgentID() string {
	return s.agentID
}

// Apply merges a payload patch into the state, broadcasts the resulting full
// snapshot to every viewer, and returns that snapshot for the persistence
// path. The whole operation is atomic with respect to other calls on this
// state.
func (s *AgentState) Apply(p *stream.Payload) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Clear {
		// Reset to defaults, preserving only the live/offline flag.
		prior := s.status
		s.resetLocked()
		if prior == stream.StatusLive || prior == stream.StatusOffline {
			s.status = prior
		}
		return s.broadcastSnapshotLocked()
	}

	if p.Task != nil {
		if p.Task.Title != "" {
			s.task.Title = p.Task.Title
		}
		if p.Task.Description != "" {
			s.task.Description = p.Task.Description
		}
	}

	if p.Status != "" && stream.ValidStatus(p.Status) {
		s.status = p.Status
	}

	if len(p.Terminal) > 0 {
		now := nowStamp()
		if p.TerminalAppend {
			for _, line := range p.Terminal {
				if line.Type == "" {
					line.Type = "info"
				}
				if line.Timestamp == "" {
					line.Timestamp = now
				}
				s.terminal = append(s.terminal, line)
			}
			if len(s.terminal) > TerminalCap {
				s.terminal = s.terminal[len(s.terminal)-TerminalCap:]
			}
		} else {
			s.terminal = append([]stream.TerminalLine(nil), p.Terminal...)
		}
	}

	if p.Thinking != nil {
		s.thinking = *p.Thinking
	}

	if p.Thought != nil {
		thought := *p.Thought
		if thought.Type == "" {
			thought.Type = stream.ThoughtGeneral
		}
		thought.ID = uuid.NewString()
		thought.Timestamp = nowStamp()
		s.thoughts = append(s.thoughts, thought)
		if len(s.thoughts) > ThoughtsCap {
			s.thoughts = s.thoughts[len(s.thoughts)-ThoughtsCap:]
		}
		// A narrative-final thought closes out the in-flight thinking text;
		// anything else becomes the new in-flight text.
		if thought.Type.IsFinal() {
			s.thinking = ""
		} else {
			s.thinking = thought.Content
		}
	}

	if p.Code != nil {
		code := *p.Code
		code.Timestamp = nowStamp()
		s.code = &code
	}

	if p.Diff != nil {
		diff := *p.Diff
		s.diff = &diff
	}

	if p.Goal != nil {
		goal := *p.Goal
		s.goal = &goal
	}

	if p.Milestone != nil {
		milestone := *p.Milestone
		milestone.Timestamp = nowStamp()
		s.milestones = append(s.milestones, milestone)
		if len(s.milestones) > MilestonesCap {
			s.milestones = s.milestones[len(s.milestones)-MilestonesCap:]
		}
	}

	if p.Error != nil {
		errInfo := *p.Error
		errInfo.Timestamp = nowStamp()
		s.recentErrors = append(s.recentErrors, errInfo)
		if len(s.recentErrors) > ErrorsCap {
			s.recentErrors = s.recentErrors[len(s.recentErrors)-ErrorsCap:]
		}
	}

	if p.Preview != nil {
		if p.Preview.URL != "" {
			s.preview.URL = p.Preview.URL
		}
		if p.Preview.Domain != "" {
			s.preview.Domain = p.Preview.Domain
		}
	}

	// Counters are caller-owned deltas: the server adds what the caller
	// reports and never self-increments.
	if p.Stats != nil {
		s.stats.Files += p.Stats.Files
		s.stats.Commands += p.Stats.Commands
	}

	// Infer activity status when the payload didn't set one explicitly.
	if p.Status == "" {
		if p.Thought != nil || p.Thinking != nil {
			s.status = stream.StatusThinking
		} else if len(p.Terminal) > 0 || p.Code != nil {
			s.status = stream.StatusWorking
		}
	}

	return s.broadcastSnapshotLocked()
}

// Hydrate seeds state from persisted session data. Only fields the store
// actually had are applied; live fields already mutated win.
func (s *AgentState) Hydrate(meta AgentMeta, status stream.Status, taskTitle string, thoughts []stream.Thought) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.Name != "" {
		s.meta.Name = meta.Name
	}
	if meta.Avatar != "" {
		s.meta.Avatar = meta.Avatar
	}
	if status != "" && stream.ValidStatus(status) {
		s.status = status
	}
	if taskTitle != "" {
		s.task.Title = taskTitle
	}
	if len(s.thoughts) == 0 && len(thoughts) > 0 {
		if len(thoughts) > ThoughtsCap {
			thoughts = thoughts[len(thoughts)-ThoughtsCap:]
		}
		s.thoughts = append([]stream.Thought(nil), thoughts...)
		last := s.thoughts[len(s.thoughts)-1]
		if !last.Type.IsFinal() {
			s.thinking = last.Content
		}
	}
	return s.broadcastSnapshotLocked()
}

// AddViewer registers a viewer, sends it the current full snapshot, and
// broadcasts the updated viewer count to everyone watching this agent.
func (s *AgentState) AddViewer(v Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewers[v] = struct{}{}
	if data, err := json.Marshal(s.snapshotLocked()); err == nil {
		v.Deliver(data)
	}
	s.broadcastViewerCountLocked()
}

// RemoveViewer deregisters a viewer and rebroadcasts the count.
func (s *AgentState) RemoveViewer(v Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.viewers, v)
	s.broadcastViewerCountLocked()
}

// ViewerCount returns the number of connected viewers.
func (s *AgentState) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// Broadcast sends an arbitrary message (chat, counts) to every viewer.
func (s *AgentState) Broadcast(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for v := range s.viewers {
		v.Deliver(data)
	}
}

// Snapshot returns the current full state message.
func (s *AgentState) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *AgentState) broadcastSnapshotLocked() *Snapshot {
	snap := s.snapshotLocked()
	if data, err := json.Marshal(snap); err == nil {
		for v := range s.viewers {
			v.Deliver(data)
		}
	}
	return snap
}

func (s *AgentState) broadcastViewerCountLocked() {
	count := struct {
		Viewers int `json:"viewers"`
	}{Viewers: len(s.viewers)}
	data, err := json.Marshal(count)
	if err != nil {
		return
	}
	for v := range s.viewers {
		v.Deliver(data)
	}
}

func (s *AgentState) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		AgentID:      s.agentID,
		Agent:        s.meta,
		Task:         s.task,
		Status:       s.status,
		Terminal:     append([]stream.TerminalLine(nil), s.terminal...),
		Thinking:     s.thinking,
		Thoughts:     append([]stream.Thought(nil), s.thoughts...),
		Milestones:   append([]stream.Milestone(nil), s.milestones...),
		RecentErrors: append([]stream.ErrorInfo(nil), s.recentErrors...),
		Preview:      s.preview,
		Stats:        s.stats,
		Viewers:      len(s.viewers),
	}
	if s.code != nil {
		code := *s.code
		snap.Code = &code
	}
	if s.diff != nil {
		diff := *s.diff
		snap.Diff = &diff
	}
	if s.goal != nil {
		goal := *s.goal
		snap.Goal = &goal
	}
	return snap
}

func displayName(agentID string) string {
	if agentID == "" {
		return agentID
	}
	return strings.ToUpper(agentID[:1]) + agentID[1:]
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
