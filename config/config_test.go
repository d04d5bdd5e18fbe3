package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AgentConfig {
	return &AgentConfig{
		AgentName:   "research assistant",
		Description: "answers research questions",
		Nodes: []NodeConfig{
			{ID: "analyze", Type: "reasoning", Objective: "analyze the question", ModelName: "gpt-4o", Temperature: 0.7},
			{ID: "search", Type: "search_reasoning", Objective: "find sources", ModelName: "gpt-4o", Temperature: 0.0},
		},
		Edges: []EdgeConfig{
			{Source: Start, Target: "analyze"},
			{Source: "analyze", Target: "search"},
			{Source: "search", Target: End},
		},
	}
}

func TestParse(t *testing.T) {
	data, err := validConfig().MarshalIndent()
	require.NoError(t, err)

	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "research assistant", cfg.AgentName)
	assert.Len(t, cfg.Nodes, 2)
	assert.Len(t, cfg.Edges, 3)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AgentConfig)
	}{
		{"empty agent name", func(c *AgentConfig) { c.AgentName = "" }},
		{"no nodes", func(c *AgentConfig) { c.Nodes = nil }},
		{"no edges", func(c *AgentConfig) { c.Edges = nil }},
		{"empty node id", func(c *AgentConfig) { c.Nodes[0].ID = "" }},
		{"reserved node id start", func(c *AgentConfig) { c.Nodes[0].ID = Start }},
		{"reserved node id end", func(c *AgentConfig) { c.Nodes[0].ID = End }},
		{"empty node type", func(c *AgentConfig) { c.Nodes[0].Type = "" }},
		{"temperature too low", func(c *AgentConfig) { c.Nodes[0].Temperature = -0.1 }},
		{"temperature too high", func(c *AgentConfig) { c.Nodes[0].Temperature = 2.1 }},
		{"empty edge endpoint", func(c *AgentConfig) { c.Edges[0].Source = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestTemperatureBoundsInclusive(t *testing.T) {
	cfg := validConfig()
	cfg.Nodes[0].Temperature = MinTemperature
	cfg.Nodes[1].Temperature = MaxTemperature
	assert.NoError(t, cfg.Validate())
}

func TestFileName(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "abc-123_research_assistant.json", FileName("abc-123", cfg))

	cfg.AgentName = ""
	assert.Equal(t, "abc-123_unnamed.json", FileName("abc-123", cfg))
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()

	path, err := SaveFile(dir, "agent-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "agent-1_research_assistant.json"), path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
