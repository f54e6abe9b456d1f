package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ga1ien/kulti-stream/internal/state"
)

// agentsFile is the on-disk shape of agents.yaml:
//
//	agents:
//	  nex:
//	    name: Nex
//	    avatar: "🦊"
//	    preview_domain: nex.kulti.club
type agentsFile struct {
	Agents map[string]state.Profile `yaml:"agents"`
}

// LoadAgentProfiles reads agent display profiles from a YAML file. A missing
// file is not an error; the server just generates identities on the fly.
func LoadAgentProfiles(path string) (map[string]state.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]state.Profile{}, nil
		}
		return nil, fmt.Errorf("failed to read agent profiles: %w", err)
	}

	var file agentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse agent profiles: %w", err)
	}
	if file.Agents == nil {
		file.Agents = map[string]state.Profile{}
	}
	return file.Agents, nil
}
