package state

import (
	"sync"

	"go.uber.org/zap"
)

// Profile is a display identity seed for a known agent, loaded from
// agents.yaml. Unknown agents get generated defaults instead.
type Profile struct {
	Name          string `yaml:"name"`
	Avatar        string `yaml:"avatar"`
	PreviewDomain string `yaml:"preview_domain"`
}

// Registry maps agent ids to their live state, creating entries lazily on
// first sight. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]*AgentState
	profiles map[string]Profile
	logger   *zap.Logger
}

// NewRegistry creates a registry seeded with the given agent profiles.
func NewRegistry(profiles map[string]Profile, logger *zap.Logger) *Registry {
	if profiles == nil {
		profiles = map[string]Profile{}
	}
	return &Registry{
		agents:   make(map[string]*AgentState),
		profiles: profiles,
		logger:   logger,
	}
}

// GetOrCreate returns the state for an agent id, creating it on first use.
// The second return value reports whether the entry was just created, which
// the server uses to trigger hydration from persistence.
func (r *Registry) GetOrCreate(agentID string) (*AgentState, bool) {
	r.mu.RLock()
	if s, ok := r.agents[agentID]; ok {
		r.mu.RUnlock()
		return s, false
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.agents[agentID]; ok {
		return s, false
	}
	s := newAgentState(agentID, r.profiles[agentID])
	r.agents[agentID] = s
	r.logger.Info("Agent registered", zap.String("agent_id", agentID))
	return s, true
}

// Get returns the state for an agent id if it exists.
func (r *Registry) Get(agentID string) (*AgentState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.agents[agentID]
	return s, ok
}

// Count returns the number of known agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// AgentIDs returns the ids of all known agents.
func (r *Registry) AgentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}
