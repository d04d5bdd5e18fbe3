package step

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agents-forge/forge/config"
)

// Registry maps capability names to executors. Adding a capability means
// registering another Executor, not touching dispatch logic.
type Registry struct {
	mu    sync.RWMutex
	execs map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{execs: make(map[string]Executor)}
}

// NewDefaultRegistry creates a registry holding the built-in capability set.
func NewDefaultRegistry(gen TextGeneration, ret Retrieval) *Registry {
	r := NewRegistry()
	r.Register(NewReasoningExecutor(gen))
	r.Register(NewSearchReasoningExecutor(gen, ret))
	return r
}

// Register adds or replaces the executor for its capability.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs[e.Capability()] = e
}

// Get returns the executor for a capability.
func (r *Registry) Get(capability string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.execs[capability]
	return e, ok
}

// Capabilities lists registered capability names, sorted.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.execs))
	for c := range r.execs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ValidateConfig checks that every node type in a description is a
// registered capability, so unknown types fail before graph compilation.
func (r *Registry) ValidateConfig(cfg *config.AgentConfig) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range cfg.Nodes {
		if _, ok := r.execs[n.Type]; !ok {
			return fmt.Errorf("%w: node %q has unknown type %q (supported: %v)",
				config.ErrInvalidConfig, n.ID, n.Type, r.capabilitiesLocked())
		}
	}
	return nil
}

func (r *Registry) capabilitiesLocked() []string {
	out := make([]string, 0, len(r.execs))
	for c := range r.execs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
