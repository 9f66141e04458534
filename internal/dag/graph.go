// Package dag holds the model dependency graph. Execution order is a
// deterministic topological sort; when a node fails, every transitive
// downstream node is skipped.
package dag

import (
	"fmt"
	"sort"

	"martflow/pkg/errors"
)

// Graph is a directed acyclic graph of model names.
type Graph struct {
	nodes    map[string]struct{}
	upstream map[string][]string // node -> its dependencies
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    map[string]struct{}{},
		upstream: map[string][]string{},
	}
}

// AddNode registers a node with its upstream dependencies. Dependencies on
// nodes never registered are rejected at sort time.
func (g *Graph) AddNode(name string, dependsOn []string) {
	g.nodes[name] = struct{}{}
	g.upstream[name] = append(g.upstream[name], dependsOn...)
}

// Nodes returns all registered node names, sorted.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TopoSort returns the nodes in dependency order using Kahn's algorithm.
// Ties are broken alphabetically so runs are reproducible.
func (g *Graph) TopoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	downstream := make(map[string][]string, len(g.nodes))

	for name := range g.nodes {
		indegree[name] = 0
	}
	for name, deps := range g.upstream {
		for _, dep := range deps {
			if _, ok := g.nodes[dep]; !ok {
				return nil, errors.New(errors.ErrCodeModelNotFound,
					fmt.Sprintf("Node %s depends on unknown node %s", name, dep))
			}
			indegree[name]++
			downstream[dep] = append(downstream[dep], name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		next := downstream[name]
		sort.Strings(next)
		var unlocked []string
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				unlocked = append(unlocked, dep)
			}
		}
		ready = append(ready, unlocked...)
		sort.Strings(ready)
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, errors.New(errors.ErrCodeDependencyCycle,
			fmt.Sprintf("Dependency cycle involving: %v", stuck)).
			WithSuggestions("Remove the circular ref between the listed models")
	}

	return order, nil
}

// Downstream returns every node transitively depending on the given node,
// sorted. Used to mark skipped nodes after an upstream failure.
func (g *Graph) Downstream(name string) []string {
	downstream := make(map[string][]string, len(g.nodes))
	for node, deps := range g.upstream {
		for _, dep := range deps {
			downstream[dep] = append(downstream[dep], node)
		}
	}

	seen := map[string]struct{}{}
	var visit func(string)
	visit = func(n string) {
		for _, next := range downstream[n] {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				visit(next)
			}
		}
	}
	visit(name)

	result := make([]string, 0, len(seen))
	for n := range seen {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}
