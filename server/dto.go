package server

import (
	"time"

	"github.com/agents-forge/forge/config"
	"github.com/agents-forge/forge/registry"
)

// CreateAgentRequest registers a new agent from its workflow configuration.
type CreateAgentRequest struct {
	AgentName   string              `json:"agent_name" binding:"required"`
	Description string              `json:"description"`
	Nodes       []config.NodeConfig `json:"nodes" binding:"required"`
	Edges       []config.EdgeConfig `json:"edges" binding:"required"`
}

func (r *CreateAgentRequest) toConfig() *config.AgentConfig {
	return &config.AgentConfig{
		AgentName:   r.AgentName,
		Description: r.Description,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
	}
}

// RunAgentRequest carries the user input for one execution.
type RunAgentRequest struct {
	Input string `json:"input" binding:"required"`
}

// AgentSummary is the list/detail view of a registered agent.
type AgentSummary struct {
	ID          string    `json:"id"`
	AgentName   string    `json:"agent_name"`
	Description string    `json:"description,omitempty"`
	NodeCount   int       `json:"node_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// AgentDetail includes the full configuration.
type AgentDetail struct {
	AgentSummary
	Config *config.AgentConfig `json:"config"`
}

// RunResponse is the blocking-run result.
type RunResponse struct {
	ExecutionID string         `json:"execution_id"`
	Status      string         `json:"status"`
	Result      string         `json:"result,omitempty"`
	ResultHTML  string         `json:"result_html,omitempty"`
	FinalState  map[string]any `json:"final_state,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func summarize(agent *registry.Agent) AgentSummary {
	return AgentSummary{
		ID:          agent.ID,
		AgentName:   agent.Config.AgentName,
		Description: agent.Config.Description,
		NodeCount:   len(agent.Config.Nodes),
		CreatedAt:   agent.CreatedAt,
	}
}
