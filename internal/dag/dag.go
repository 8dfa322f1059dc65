// Package dag orders nodes by their dependencies: cycle detection,
// execution levels and up/downstream selection.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Graph is a directed graph whose edges point from a dependency to its
// dependents. Node data is carried alongside the IDs.
type Graph[T any] struct {
	nodes    map[string]T
	children map[string][]string // parent -> dependents
	parents  map[string][]string // child -> dependencies
}

// New creates an empty graph.
func New[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:    make(map[string]T),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node, replacing the data of an existing one.
func (g *Graph[T]) AddNode(id string, data T) {
	if _, exists := g.nodes[id]; !exists {
		g.children[id] = []string{}
		g.parents[id] = []string{}
	}
	g.nodes[id] = data
}

// AddEdge records that child depends on parent.
func (g *Graph[T]) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.children[parentID], childID) {
		g.children[parentID] = append(g.children[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Node returns the data of a node.
func (g *Graph[T]) Node(id string) (T, bool) {
	data, ok := g.nodes[id]
	return data, ok
}

// Parents returns the direct dependencies of a node.
func (g *Graph[T]) Parents(id string) []string { return g.parents[id] }

// Children returns the direct dependents of a node.
func (g *Graph[T]) Children(id string) []string { return g.children[id] }

// Len returns the number of nodes.
func (g *Graph[T]) Len() int { return len(g.nodes) }

// IDs returns every node ID, sorted.
func (g *Graph[T]) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph[T]) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	from := make(map[string]string)

	var cycle []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		for _, child := range g.children[id] {
			if !visited[child] {
				from[child] = id
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				cycle = []string{child}
				for curr := id; curr != child; curr = from[curr] {
					cycle = append([]string{curr}, cycle...)
				}
				cycle = append([]string{child}, cycle...)
				return true
			}
		}
		onStack[id] = false
		return false
	}

	for _, id := range g.IDs() {
		if !visited[id] && dfs(id) {
			return true, cycle
		}
	}
	return false, nil
}

// Levels groups nodes by execution level. Nodes within a level have no
// dependencies on each other; level 0 holds nodes without dependencies.
func (g *Graph[T]) Levels() ([][]string, error) {
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	assigned := make(map[string]int, len(g.nodes))
	var level func(id string) int
	level = func(id string) int {
		if l, ok := assigned[id]; ok {
			return l
		}
		l := 0
		for _, p := range g.parents[id] {
			if pl := level(p) + 1; pl > l {
				l = pl
			}
		}
		assigned[id] = l
		return l
	}

	var levels [][]string
	for _, id := range g.IDs() {
		l := level(id)
		for len(levels) <= l {
			levels = append(levels, []string{})
		}
	}
	for id, l := range assigned {
		levels[l] = append(levels[l], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// Downstream returns every node depending, directly or not, on any of ids.
// The given nodes themselves are not included.
func (g *Graph[T]) Downstream(ids ...string) []string {
	return g.walk(ids, g.children)
}

// Upstream returns every node that any of ids depends on, directly or not.
func (g *Graph[T]) Upstream(ids ...string) []string {
	return g.walk(ids, g.parents)
}

func (g *Graph[T]) walk(start []string, next map[string][]string) []string {
	seen := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		for _, n := range next[id] {
			if !seen[n] {
				seen[n] = true
				visit(n)
			}
		}
	}
	for _, id := range start {
		visit(id)
	}
	for _, id := range start {
		delete(seen, id)
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Subgraph returns a new graph containing only the specified nodes and the
// edges between them. Unknown IDs are ignored.
func (g *Graph[T]) Subgraph(ids []string) *Graph[T] {
	sub := New[T]()
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if data, ok := g.nodes[id]; ok {
			keep[id] = true
			sub.AddNode(id, data)
		}
	}
	for id := range keep {
		for _, child := range g.children[id] {
			if keep[child] {
				_ = sub.AddEdge(id, child)
			}
		}
	}
	return sub
}
