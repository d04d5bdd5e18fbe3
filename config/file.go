package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName derives the on-disk name for a saved agent config:
// "<agent-id>_<agent_name>.json" with spaces underscored.
func FileName(agentID string, c *AgentConfig) string {
	name := c.AgentName
	if name == "" {
		name = "unnamed"
	}
	name = strings.ReplaceAll(name, " ", "_")
	if agentID == "" {
		return name + ".json"
	}
	return agentID + "_" + name + ".json"
}

// SaveFile writes the description as pretty-printed JSON under dir,
// creating the directory if needed. It returns the full path written.
func SaveFile(dir, agentID string, c *AgentConfig) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := c.MarshalIndent()
	if err != nil {
		return "", fmt.Errorf("failed to marshal agent config: %w", err)
	}

	path := filepath.Join(dir, FileName(agentID, c))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write agent config: %w", err)
	}
	return path, nil
}

// LoadFile reads and validates a description from a JSON file.
func LoadFile(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent config: %w", err)
	}
	return Parse(data)
}
