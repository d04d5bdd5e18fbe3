// Package store defines persistence for registered agents: their
// configuration and their accumulated conversation state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/agents-forge/forge/config"
	"github.com/agents-forge/forge/graph"
)

// ErrNotFound is returned when the requested agent does not exist.
var ErrNotFound = errors.New("agent not found")

// AgentRecord is the persisted form of a registered agent.
type AgentRecord struct {
	ID        string              `json:"id"`
	Config    *config.AgentConfig `json:"config"`
	State     graph.State         `json:"state,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// AgentStore persists agent records. Implementations must be safe for
// concurrent use.
type AgentStore interface {
	// Save inserts or replaces the record keyed by record.ID.
	Save(ctx context.Context, record *AgentRecord) error

	// Load returns the record for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*AgentRecord, error)

	// List returns all records, ordered by creation time ascending.
	List(ctx context.Context) ([]*AgentRecord, error)

	// Delete removes the record for id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases any underlying resources.
	Close() error
}
