package config

import "os"

// Environment variable names shared by every adapter. These match what the
// host runtimes export for hook processes.
const (
	EnvEnabled     = "KULTI_STREAM_ENABLED"
	EnvServerURL   = "KULTI_STATE_SERVER"
	EnvAgentID     = "KULTI_AGENT_ID"
	EnvAPIKey      = "KULTI_API_KEY"
	EnvWatchPath   = "KULTI_WATCH_PATH"
	EnvWatchIgnore = "KULTI_WATCH_IGNORE"
)

// DefaultAgentID names the agent when the environment does not.
const DefaultAgentID = "nex"

// Settings are the adapter-side knobs read from the process environment.
type Settings struct {
	Enabled     bool
	ServerURL   string
	AgentID     string
	APIKey      string
	WatchPath   string
	WatchIgnore string
}

// FromEnv reads adapter settings from the environment. Streaming defaults to
// enabled; only an explicit "0" turns it off, so a missing variable never
// silences an agent by accident.
func FromEnv() Settings {
	agentID := os.Getenv(EnvAgentID)
	if agentID == "" {
		agentID = DefaultAgentID
	}
	return Settings{
		Enabled:     os.Getenv(EnvEnabled) != "0",
		ServerURL:   os.Getenv(EnvServerURL),
		AgentID:     agentID,
		APIKey:      os.Getenv(EnvAPIKey),
		WatchPath:   os.Getenv(EnvWatchPath),
		WatchIgnore: os.Getenv(EnvWatchIgnore),
	}
}
