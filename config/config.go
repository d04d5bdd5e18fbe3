// Package config defines the declarative agent description format: a JSON
// document naming the agent, its processing nodes and the edges wiring them
// together. Descriptions are produced by an external generation layer (or
// written by hand) and consumed by the graph compiler.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel endpoint names used in edge definitions.
const (
	Start = "START"
	End   = "END"
)

// Temperature bounds accepted for node model parameters.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// ErrInvalidConfig is wrapped by all description validation failures.
var ErrInvalidConfig = errors.New("invalid agent config")

// NodeConfig describes a single processing step in the agent workflow.
type NodeConfig struct {
	// ID is the unique identifier for this node.
	ID string `json:"id"`

	// Type selects the node capability, e.g. "reasoning" or "search_reasoning".
	Type string `json:"type"`

	// Objective is what this node should accomplish; it becomes the
	// system instruction for the step.
	Objective string `json:"objective"`

	// ModelName names the model used by the step, passed through unmodified.
	ModelName string `json:"model_name"`

	// Temperature is the sampling temperature, passed through unmodified.
	Temperature float64 `json:"temperature"`
}

// EdgeConfig connects two nodes, or a node and one of the sentinels.
type EdgeConfig struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// AgentConfig is the full declarative description of an agent.
type AgentConfig struct {
	AgentName   string       `json:"agent_name"`
	Description string       `json:"description"`
	Nodes       []NodeConfig `json:"nodes"`
	Edges       []EdgeConfig `json:"edges"`
}

// Parse decodes and validates a JSON agent description.
func Parse(data []byte) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode agent config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field-level constraints. Graph topology (unknown
// references, cycles, reachability) is validated by the compiler, not here.
func (c *AgentConfig) Validate() error {
	if c.AgentName == "" {
		return fmt.Errorf("%w: agent_name is required", ErrInvalidConfig)
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("%w: at least one node is required", ErrInvalidConfig)
	}
	if len(c.Edges) == 0 {
		return fmt.Errorf("%w: at least one edge is required", ErrInvalidConfig)
	}
	for i, n := range c.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node %d has an empty id", ErrInvalidConfig, i)
		}
		if n.ID == Start || n.ID == End {
			return fmt.Errorf("%w: node id %q is reserved", ErrInvalidConfig, n.ID)
		}
		if n.Type == "" {
			return fmt.Errorf("%w: node %q has an empty type", ErrInvalidConfig, n.ID)
		}
		if n.Temperature < MinTemperature || n.Temperature > MaxTemperature {
			return fmt.Errorf("%w: node %q temperature %v outside [%v, %v]",
				ErrInvalidConfig, n.ID, n.Temperature, MinTemperature, MaxTemperature)
		}
	}
	for i, e := range c.Edges {
		if e.Source == "" || e.Target == "" {
			return fmt.Errorf("%w: edge %d has an empty endpoint", ErrInvalidConfig, i)
		}
	}
	return nil
}

// MarshalIndent renders the description as pretty-printed JSON, the format
// used for on-disk config files.
func (c *AgentConfig) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
