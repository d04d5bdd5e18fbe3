// Package registry manages the set of registered agents: each agent pairs
// a validated, compiled workflow with the conversation state accumulated
// across its runs.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agents-forge/forge/config"
	"github.com/agents-forge/forge/graph"
	"github.com/agents-forge/forge/step"
	"github.com/agents-forge/forge/store"
)

// Agent is a registered agent: its configuration, the compiled graph, and
// the state carried over between runs.
type Agent struct {
	ID        string
	Config    *config.AgentConfig
	Graph     *graph.Graph
	State     graph.State
	CreatedAt time.Time
}

// Registry holds registered agents in memory, optionally persisting them
// to an AgentStore.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	steps  *step.Registry
	store  store.AgentStore
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore persists agents to s in addition to the in-memory map.
func WithStore(s store.AgentStore) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// New creates a registry validating agent configurations against the
// capabilities registered in steps.
func New(steps *step.Registry, opts ...Option) *Registry {
	r := &Registry{
		agents: make(map[string]*Agent),
		steps:  steps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore loads previously persisted agents from the backing store into
// memory. Records whose configuration no longer compiles are skipped and
// reported in the returned error.
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore agents: %w", err)
	}

	var failed []string
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		g, err := r.compile(record.Config)
		if err != nil {
			failed = append(failed, record.ID)
			continue
		}
		r.agents[record.ID] = &Agent{
			ID:        record.ID,
			Config:    record.Config,
			Graph:     g,
			State:     record.State,
			CreatedAt: record.CreatedAt,
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to restore agents: %v no longer compile", failed)
	}
	return nil
}

// Create validates and compiles cfg, registers the agent under a fresh
// UUID, and returns it.
func (r *Registry) Create(ctx context.Context, cfg *config.AgentConfig) (*Agent, error) {
	g, err := r.compile(cfg)
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		ID:        uuid.NewString(),
		Config:    cfg,
		Graph:     g,
		State:     graph.NewState(),
		CreatedAt: time.Now().UTC(),
	}

	if r.store != nil {
		if err := r.persist(ctx, agent); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.agents[agent.ID] = agent
	r.mu.Unlock()
	return agent, nil
}

func (r *Registry) compile(cfg *config.AgentConfig) (*graph.Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.steps.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return graph.Compile(cfg)
}

// Get returns the agent for id, or store.ErrNotFound.
func (r *Registry) Get(id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return agent, nil
}

// List returns all registered agents ordered by creation time.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agents := make([]*Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].ID < agents[j].ID
		}
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents
}

// Delete removes the agent for id, or returns store.ErrNotFound.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.agents[id]
	if ok {
		delete(r.agents, id)
	}
	r.mu.Unlock()
	if !ok {
		return store.ErrNotFound
	}

	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil && err != store.ErrNotFound {
			return err
		}
	}
	return nil
}

// UpdateState replaces the agent's retained state after a run.
func (r *Registry) UpdateState(ctx context.Context, id string, state graph.State) error {
	r.mu.Lock()
	agent, ok := r.agents[id]
	if ok {
		agent.State = state
	}
	r.mu.Unlock()
	if !ok {
		return store.ErrNotFound
	}

	if r.store != nil {
		return r.persist(ctx, agent)
	}
	return nil
}

func (r *Registry) persist(ctx context.Context, agent *Agent) error {
	record := &store.AgentRecord{
		ID:        agent.ID,
		Config:    agent.Config,
		State:     agent.State,
		CreatedAt: agent.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.store.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to persist agent %s: %w", agent.ID, err)
	}
	return nil
}
