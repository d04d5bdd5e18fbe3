package run

import (
	"sort"
	"strings"
	"time"

	"github.com/agents-forge/forge/graph"
	"github.com/agents-forge/forge/log"
)

const (
	defaultMaxConcurrency = 4
	defaultNodeTimeout    = 60 * time.Second
	defaultEventBuffer    = 64
)

// Narrative is the human-facing text one node produced.
type Narrative struct {
	NodeID string
	Text   string
}

// ResultFunc derives the caller-facing result of a completed execution from
// the per-node narratives (in deterministic layer order) and the final state.
type ResultFunc func(narratives []Narrative, final graph.State) string

// JoinNarratives is the default ResultFunc: narratives concatenated in
// order, blank-line separated.
func JoinNarratives(narratives []Narrative, _ graph.State) string {
	texts := make([]string, 0, len(narratives))
	for _, n := range narratives {
		if n.Text != "" {
			texts = append(texts, n.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// LastNarrative is a ResultFunc returning only the final node's text.
func LastNarrative(narratives []Narrative, _ graph.State) string {
	if len(narratives) == 0 {
		return ""
	}
	return narratives[len(narratives)-1].Text
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxConcurrency bounds how many nodes of one layer run at once.
func WithMaxConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

// WithNodeTimeout sets the per-node invocation deadline.
func WithNodeTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.nodeTimeout = d
		}
	}
}

// WithLayerSnapshots emits a state snapshot event after each layer merge.
func WithLayerSnapshots() Option {
	return func(r *Runner) {
		r.layerSnapshots = true
	}
}

// WithResultFunc overrides how the final result text is derived.
func WithResultFunc(f ResultFunc) Option {
	return func(r *Runner) {
		if f != nil {
			r.resultFunc = f
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEventBuffer sets the internal event queue capacity.
func WithEventBuffer(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.eventBuffer = n
		}
	}
}

// orderNarratives arranges per-node narratives in layer order,
// lexicographic within a layer, so the derived result is deterministic.
func orderNarratives(g *graph.Graph, byNode map[string]string) []Narrative {
	out := make([]Narrative, 0, len(byNode))
	for _, layer := range g.Layers() {
		ids := make([]string, len(layer))
		copy(ids, layer)
		sort.Strings(ids)
		for _, id := range ids {
			if text, ok := byNode[id]; ok {
				out = append(out, Narrative{NodeID: id, Text: text})
			}
		}
	}
	return out
}
