package graph

import (
	"slices"
	"sort"

	"github.com/agents-forge/forge/config"
)

// Compile validates an agent description and builds the executable graph.
// It is a pure function of its input: compiling the same description twice
// yields structurally identical graphs. Validation is fail-fast with one
// distinct error kind per rule; on any failure no Graph is produced.
func Compile(cfg *config.AgentConfig) (*Graph, error) {
	g := &Graph{
		name:         cfg.AgentName,
		description:  cfg.Description,
		nodes:        make(map[string]Node, len(cfg.Nodes)),
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
	}

	// 1. Node ids must be unique.
	for _, nc := range cfg.Nodes {
		if _, dup := g.nodes[nc.ID]; dup {
			return nil, compileErr(DuplicateNodeID, nc.ID, "node id declared more than once")
		}
		g.nodes[nc.ID] = Node{
			ID:          nc.ID,
			Capability:  nc.Type,
			Objective:   nc.Objective,
			Model:       nc.ModelName,
			Temperature: nc.Temperature,
		}
		g.order = append(g.order, nc.ID)
	}

	// 2. Every edge endpoint must be START, END or a declared node.
	for _, ec := range cfg.Edges {
		if ec.Source != Start {
			if _, ok := g.nodes[ec.Source]; !ok {
				return nil, compileErr(UnknownNodeReference, ec.Source, "edge source is not a declared node")
			}
		}
		if ec.Target != End {
			if _, ok := g.nodes[ec.Target]; !ok {
				return nil, compileErr(UnknownNodeReference, ec.Target, "edge target is not a declared node")
			}
		}
		g.edges = append(g.edges, Edge{Source: ec.Source, Target: ec.Target})
	}

	// 3. The workflow needs a way in and a way out.
	hasEntry, hasExit := false, false
	for _, e := range g.edges {
		if e.Source == Start {
			hasEntry = true
		}
		if e.Target == End {
			hasExit = true
		}
	}
	if !hasEntry {
		return nil, compileErr(MissingEntryOrExit, "", "no edge originates at %s", Start)
	}
	if !hasExit {
		return nil, compileErr(MissingEntryOrExit, "", "no edge terminates at %s", End)
	}

	g.buildAdjacency()

	// 4. The real-node subgraph must be acyclic.
	if cycleNode := g.findCycle(); cycleNode != "" {
		return nil, compileErr(CyclicGraph, cycleNode, "node participates in a cycle")
	}

	// 5. Every real node must lie on a START -> END path.
	if err := g.checkConnectivity(); err != nil {
		return nil, err
	}

	g.layers = g.computeLayers()
	return g, nil
}

// buildAdjacency derives deduplicated, sorted successor and predecessor
// lists, including the sentinel endpoints.
func (g *Graph) buildAdjacency() {
	succ := make(map[string]map[string]struct{})
	pred := make(map[string]map[string]struct{})
	add := func(m map[string]map[string]struct{}, k, v string) {
		if m[k] == nil {
			m[k] = make(map[string]struct{})
		}
		m[k][v] = struct{}{}
	}
	for _, e := range g.edges {
		add(succ, e.Source, e.Target)
		add(pred, e.Target, e.Source)
	}
	for k, set := range succ {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		g.successors[k] = ids
	}
	for k, set := range pred {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		g.predecessors[k] = ids
	}
}

// findCycle runs a depth-first traversal over real nodes with a
// recursion-stack marker and returns a node on a cycle, or "".
func (g *Graph) findCycle() string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))

	var visit func(id string) string
	visit = func(id string) string {
		state[id] = inStack
		for _, next := range g.successors[id] {
			if next == End {
				continue
			}
			switch state[next] {
			case inStack:
				return next
			case unvisited:
				if c := visit(next); c != "" {
					return c
				}
			}
		}
		state[id] = done
		return ""
	}

	// Iterate in declaration order so the reported node is deterministic.
	for _, id := range g.order {
		if state[id] == unvisited {
			if c := visit(id); c != "" {
				return c
			}
		}
	}
	return ""
}

// checkConnectivity verifies forward reachability from START and backward
// reachability to END for every real node.
func (g *Graph) checkConnectivity() *CompileError {
	forward := g.flood(Start, g.successors)
	for _, id := range g.order {
		if !forward[id] {
			return compileErr(UnreachableNode, id, "node is not reachable from %s", Start)
		}
	}
	backward := g.flood(End, g.predecessors)
	for _, id := range g.order {
		if !backward[id] {
			return compileErr(DeadEndNode, id, "node has no path to %s", End)
		}
	}
	return nil
}

// flood marks every real node reachable from root via the given adjacency.
func (g *Graph) flood(root string, adj map[string][]string) map[string]bool {
	seen := make(map[string]bool, len(g.nodes))
	queue := slices.Clone(adj[root])
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == Start || id == End || seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, adj[id]...)
	}
	return seen
}

// computeLayers groups nodes by longest-path distance from START. Assumes
// the graph already passed acyclicity and connectivity checks.
func (g *Graph) computeLayers() [][]string {
	depth := make(map[string]int, len(g.nodes))
	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		for _, p := range g.predecessors[id] {
			if p != Start {
				indegree[id]++
			}
		}
	}

	var ready []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
			depth[id] = 0
		}
	}

	maxDepth := 0
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		for _, next := range g.successors[id] {
			if next == End {
				continue
			}
			if d := depth[id] + 1; d > depth[next] {
				depth[next] = d
				if d > maxDepth {
					maxDepth = d
				}
			}
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	layers := make([][]string, maxDepth+1)
	for _, id := range g.order {
		d := depth[id]
		layers[d] = append(layers[d], id)
	}
	for _, layer := range layers {
		sort.Strings(layer)
	}
	return layers
}
