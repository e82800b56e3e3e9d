// Package dag provides a small dependency graph for wiring pipeline
// stages: named nodes, explicit data-dependency edges, cycle
// detection, and sequential execution in topological order.
package dag

import (
	"fmt"
)

type node struct {
	id   string
	run  func() error
	deps map[string]bool
}

// Graph is a directed acyclic graph of named stages.
type Graph struct {
	nodes map[string]*node
	order []string // insertion order, used as a deterministic tie-break
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode registers a stage under a unique id.
func (g *Graph) AddNode(id string, run func() error) error {
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("duplicate node %q", id)
	}
	g.nodes[id] = &node{id: id, run: run, deps: make(map[string]bool)}
	g.order = append(g.order, id)
	return nil
}

// AddEdge declares that node toID consumes the output of node fromID.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, toID)
	}
	if _, ok := g.nodes[fromID]; !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	to.deps[fromID] = true
	return nil
}

// Sort returns the node ids in topological order, preferring insertion
// order among ready nodes so execution is deterministic. A cycle is an
// error.
func (g *Graph) Sort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		indegree[id] = len(n.deps)
	}

	sorted := make([]string, 0, len(g.nodes))
	done := make(map[string]bool, len(g.nodes))
	for len(sorted) < len(g.nodes) {
		progressed := false
		for _, id := range g.order {
			if done[id] || indegree[id] != 0 {
				continue
			}
			done[id] = true
			sorted = append(sorted, id)
			progressed = true
			for otherID, other := range g.nodes {
				if other.deps[id] {
					indegree[otherID]--
				}
			}
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among pipeline stages")
		}
	}
	return sorted, nil
}

// Run executes every stage in topological order, stopping at the first
// failure. The error names the failed stage.
func (g *Graph) Run() error {
	sorted, err := g.Sort()
	if err != nil {
		return err
	}
	for _, id := range sorted {
		if err := g.nodes[id].run(); err != nil {
			return fmt.Errorf("stage %s: %w", id, err)
		}
	}
	return nil
}
