// Package graph compiles declarative agent descriptions into immutable,
// executable workflow graphs. A compiled graph owns its nodes and edges and
// derives, once at compile time, the adjacency maps and the topological
// layering the scheduler walks at execution time.
package graph

import (
	"slices"

	"github.com/agents-forge/forge/config"
)

// Sentinel endpoints. Start is the logical entry of every workflow, End its
// termination. Neither is a real node: they never execute.
const (
	Start = config.Start
	End   = config.End
)

// Node is one processing step of a compiled workflow. Immutable once compiled.
type Node struct {
	// ID is unique within the graph.
	ID string

	// Capability selects the step executor, e.g. "reasoning".
	Capability string

	// Objective is the step's instruction text.
	Objective string

	// Model and Temperature are opaque generation parameters handed to the
	// text-generation collaborator unmodified.
	Model       string
	Temperature float64
}

// Edge is a directed dependency between two node ids or sentinels.
type Edge struct {
	Source string
	Target string
}

// Graph is a compiled workflow. All derived structures (adjacency, layers)
// are computed at compile time; a Graph is safe for concurrent reads and is
// never mutated after Compile returns.
type Graph struct {
	name        string
	description string

	nodes map[string]Node
	order []string // node ids in declaration order
	edges []Edge

	successors   map[string][]string
	predecessors map[string][]string
	layers       [][]string
}

// Name returns the agent name the graph was compiled from.
func (g *Graph) Name() string { return g.name }

// Description returns the free-text description of the agent.
func (g *Graph) Description() string { return g.description }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all real nodes in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of real nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Edges returns the edges in declaration order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Successors returns the targets of all edges originating at id
// (id may be Start). The slice is sorted and must not be modified.
func (g *Graph) Successors(id string) []string {
	return g.successors[id]
}

// Predecessors returns the sources of all edges terminating at id
// (id may be End). The slice is sorted and must not be modified.
func (g *Graph) Predecessors(id string) []string {
	return g.predecessors[id]
}

// Layers returns the topological layering: nodes grouped by longest-path
// distance from Start, lexicographically sorted within each layer. Every
// node in layer i has all of its real predecessors in layers < i.
func (g *Graph) Layers() [][]string {
	return g.layers
}

// Config serializes the compiled structure back into the declarative
// description shape. Compiling the result again yields a structurally
// identical graph.
func (g *Graph) Config() *config.AgentConfig {
	nodes := make([]config.NodeConfig, 0, len(g.order))
	for _, id := range g.order {
		n := g.nodes[id]
		nodes = append(nodes, config.NodeConfig{
			ID:          n.ID,
			Type:        n.Capability,
			Objective:   n.Objective,
			ModelName:   n.Model,
			Temperature: n.Temperature,
		})
	}
	edges := make([]config.EdgeConfig, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, config.EdgeConfig{Source: e.Source, Target: e.Target})
	}
	return &config.AgentConfig{
		AgentName:   g.name,
		Description: g.description,
		Nodes:       nodes,
		Edges:       edges,
	}
}
