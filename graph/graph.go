// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds and queries the name-level dependency graph of an
// indexed codebase.
//
// Nodes are entity names; a directed edge a -> b means entity a references
// the name b somewhere in its body. The graph is deliberately name-based:
// two entities with the same name share a node, and referenced names that
// were never declared (builtins, imports, locals) still enter the graph as
// dangling nodes with no outgoing edges of their own.
package graph

import (
	"sort"
	"sync"
)

// Graph is a directed graph keyed by entity name.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Writes take an exclusive
//	lock; reads are shared.
type Graph struct {
	mu sync.RWMutex

	// out maps node -> set of direct successors.
	out map[string]map[string]struct{}
	// in maps node -> set of direct predecessors.
	in map[string]map[string]struct{}
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		out: make(map[string]map[string]struct{}),
		in:  make(map[string]map[string]struct{}),
	}
}

// AddNode registers a node with no edges. Adding an existing node is a
// no-op and preserves its edges.
func (g *Graph) AddNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureNode(name)
}

// AddEdge adds the directed edge from -> to, registering both endpoints.
// Self-edges are allowed and represent direct recursion.
func (g *Graph) AddEdge(from, to string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureNode(from)
	g.ensureNode(to)
	g.out[from][to] = struct{}{}
	g.in[to][from] = struct{}{}
}

func (g *Graph) ensureNode(name string) {
	if _, ok := g.out[name]; !ok {
		g.out[name] = make(map[string]struct{})
	}
	if _, ok := g.in[name]; !ok {
		g.in[name] = make(map[string]struct{})
	}
}

// Has reports whether the named node exists.
func (g *Graph) Has(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.out[name]
	return ok
}

// Len returns the node count.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.out)
}

// Nodes returns all node names in lexical order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.out))
	for name := range g.out {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Outgoing returns the direct successors of the named node in lexical
// order. Unknown nodes yield an empty slice.
func (g *Graph) Outgoing(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.out[name])
}

// Incoming returns the direct predecessors of the named node in lexical
// order. Unknown nodes yield an empty slice.
func (g *Graph) Incoming(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.in[name])
}

func sortedKeys(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Depth returns the length, in nodes, of the longest simple path that
// starts at the named node and ends at one of its direct successors. A
// node with no outgoing edges has depth 0; a single edge a -> b gives a
// depth 2. Longer chains only raise the depth when they loop back to a
// direct successor: in a -> b -> c -> d the depth of a stays 2, while
// adding a -> d raises it to 4.
//
// A self loop contributes the trivial single-node path of length 1.
// Cycles are bounded by the simple-path restriction: no node repeats
// within a path.
func (g *Graph) Depth(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	succ := g.out[name]
	if len(succ) == 0 {
		return 0
	}

	best := 0
	if _, self := succ[name]; self {
		best = 1
	}
	visited := map[string]struct{}{name: {}}
	g.deepestToSuccessor(name, name, visited, 1, &best)
	return best
}

// deepestToSuccessor walks every simple path out of origin, recording in
// best the longest one whose final node is a direct successor of origin.
// Callers must hold at least a read lock and must have marked cur as
// visited; length counts the nodes on the path so far.
func (g *Graph) deepestToSuccessor(origin, cur string, visited map[string]struct{}, length int, best *int) {
	for next := range g.out[cur] {
		if _, seen := visited[next]; seen {
			continue
		}
		if _, ok := g.out[origin][next]; ok && length+1 > *best {
			*best = length + 1
		}
		visited[next] = struct{}{}
		g.deepestToSuccessor(origin, next, visited, length+1, best)
		delete(visited, next)
	}
}

// Cycles returns every elementary cycle in the graph, including self
// loops, using Johnson's algorithm. Each cycle is reported once, as the
// node sequence starting from its lexically smallest member, without
// repeating the start node at the end.
//
// Results are ordered by start node, then by length.
func (g *Graph) Cycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.out))
	for name := range g.out {
		names = append(names, name)
	}
	sort.Strings(names)

	indexOf := make(map[string]int, len(names))
	for i, name := range names {
		indexOf[name] = i
	}

	adj := make([][]int, len(names))
	for i, name := range names {
		for succ := range g.out[name] {
			adj[i] = append(adj[i], indexOf[succ])
		}
		sort.Ints(adj[i])
	}

	finder := &cycleFinder{adj: adj, names: names}
	finder.run()

	sort.SliceStable(finder.cycles, func(i, j int) bool {
		a, b := finder.cycles[i], finder.cycles[j]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return len(a) < len(b)
	})

	return finder.cycles
}

// cycleFinder implements Johnson's elementary-cycle enumeration over an
// adjacency list. Vertices are processed in ascending index order; each
// iteration restricts the search to the subgraph induced by vertices >=
// the current start, so every cycle is found exactly once, rooted at its
// smallest vertex.
type cycleFinder struct {
	adj   [][]int
	names []string

	start   int
	stack   []int
	blocked []bool
	blockOn [][]int

	cycles [][]string
}

func (f *cycleFinder) run() {
	n := len(f.adj)
	for start := 0; start < n; start++ {
		f.start = start
		f.blocked = make([]bool, n)
		f.blockOn = make([][]int, n)
		f.stack = f.stack[:0]
		f.circuit(start)
	}
}

func (f *cycleFinder) circuit(v int) bool {
	found := false
	f.stack = append(f.stack, v)
	f.blocked[v] = true

	for _, w := range f.adj[v] {
		if w < f.start {
			continue
		}
		if w == f.start {
			f.emit()
			found = true
			continue
		}
		if !f.blocked[w] {
			if f.circuit(w) {
				found = true
			}
		}
	}

	if found {
		f.unblock(v)
	} else {
		for _, w := range f.adj[v] {
			if w < f.start {
				continue
			}
			f.blockOn[w] = append(f.blockOn[w], v)
		}
	}

	f.stack = f.stack[:len(f.stack)-1]
	return found
}

func (f *cycleFinder) unblock(v int) {
	f.blocked[v] = false
	pending := f.blockOn[v]
	f.blockOn[v] = nil
	for _, w := range pending {
		if f.blocked[w] {
			f.unblock(w)
		}
	}
}

func (f *cycleFinder) emit() {
	cycle := make([]string, len(f.stack))
	for i, v := range f.stack {
		cycle[i] = f.names[v]
	}
	f.cycles = append(f.cycles, cycle)
}
