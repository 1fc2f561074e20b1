// Package fkgraph builds the foreign-key dependency graph over a schema and
// provides a deterministic topological order plus cycle detection (spec
// §4.C). Grounded on the Kahn's-algorithm table-ordering in the mockcraft
// seeder's getTableDependencyOrder: an in-degree map, a queue drained in
// name order, and a cycle signalled by a short result.
package fkgraph

import (
	"sort"

	"github.com/synthforge/synthgen/pkg/schemamodel"
)

// Node identifies a table within the graph.
type Node struct {
	Schema, Table string
}

func (n Node) String() string { return n.Schema + "." + n.Table }

func (n Node) less(o Node) bool {
	if n.Schema != o.Schema {
		return n.Schema < o.Schema
	}
	return n.Table < o.Table
}

// Graph is the child->parent edge set derived from FK constraints.
type Graph struct {
	nodes []Node
	// edges[child] = parents the child depends on.
	edges map[Node][]Node
}

// Build walks every FK constraint in db and returns the dependency graph.
// Self-referencing FKs (a table referencing itself) add no edge, so they do
// not participate in toposort ordering between distinct tables.
func Build(db *schemamodel.Database) *Graph {
	g := &Graph{edges: make(map[Node][]Node)}
	seen := make(map[Node]bool)

	add := func(n Node) {
		if !seen[n] {
			seen[n] = true
			g.nodes = append(g.nodes, n)
		}
	}

	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			child := Node{s.Name, t.Name}
			add(child)
			for _, c := range t.ForeignKeys() {
				parent := Node{c.ReferencedSchema, c.ReferencedTable}
				add(parent)
				if parent != child {
					g.edges[child] = append(g.edges[child], parent)
				}
			}
		}
	}

	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].less(g.nodes[j]) })
	for n := range g.edges {
		sort.Slice(g.edges[n], func(i, j int) bool { return g.edges[n][i].less(g.edges[n][j]) })
	}
	return g
}

// Parents returns the direct FK targets of n, in deterministic order.
func (g *Graph) Parents(n Node) []Node { return append([]Node(nil), g.edges[n]...) }

// Nodes returns every table participating in the graph, in deterministic order.
func (g *Graph) Nodes() []Node { return append([]Node(nil), g.nodes...) }

// CycleReport describes the strongly-connected components of size > 1
// found in the graph (spec §4.C "cycle report").
type CycleReport struct {
	Components [][]Node
}

func (r CycleReport) HasCycles() bool { return len(r.Components) > 0 }

// TopoSort returns tables in an order such that every parent precedes every
// child, ties broken by (schema, table) name (spec glossary "FK toposort").
// If the graph has cycles, the returned order still includes every node
// (cycle members are scheduled together in name order, per spec §4.C), and
// report lists the cycle components; the caller decides via
// report.HasCycles whether that's fatal.
func (g *Graph) TopoSort() (order []Node, report CycleReport) {
	inDegree := make(map[Node]int, len(g.nodes))
	dependents := make(map[Node][]Node) // parent -> children waiting on it
	for _, n := range g.nodes {
		inDegree[n] = len(g.edges[n])
	}
	for child, parents := range g.edges {
		for _, p := range parents {
			dependents[p] = append(dependents[p], child)
		}
	}
	for p := range dependents {
		sort.Slice(dependents[p], func(i, j int) bool { return dependents[p][i].less(dependents[p][j]) })
	}

	var queue []Node
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].less(queue[j]) })

	resolved := make(map[Node]bool, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		resolved[n] = true

		var freed []Node
		for _, child := range dependents[n] {
			inDegree[child]--
			if inDegree[child] == 0 {
				freed = append(freed, child)
			}
		}
		sort.Slice(freed, func(i, j int) bool { return freed[i].less(freed[j]) })
		queue = append(queue, freed...)
		sort.Slice(queue, func(i, j int) bool { return queue[i].less(queue[j]) })
	}

	if len(order) == len(g.nodes) {
		return order, CycleReport{}
	}

	// Cycle present: find the SCCs among the unresolved nodes and append
	// their members in name order so callers still get a complete schedule.
	var remaining []Node
	for _, n := range g.nodes {
		if !resolved[n] {
			remaining = append(remaining, n)
		}
	}
	report.Components = tarjanSCCs(g, remaining)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].less(remaining[j]) })
	order = append(order, remaining...)
	return order, report
}

// tarjanSCCs finds strongly-connected components of size > 1 restricted to
// the subgraph induced by candidates (the nodes a plain toposort could not
// resolve).
func tarjanSCCs(g *Graph, candidates []Node) [][]Node {
	candidateSet := make(map[Node]bool, len(candidates))
	for _, n := range candidates {
		candidateSet[n] = true
	}

	index := 0
	indices := make(map[Node]int)
	lowlink := make(map[Node]int)
	onStack := make(map[Node]bool)
	var stack []Node
	var out [][]Node

	order := append([]Node(nil), candidates...)
	sort.Slice(order, func(i, j int) bool { return order[i].less(order[j]) })

	var strongconnect func(v Node)
	strongconnect = func(v Node) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if !candidateSet[w] {
				continue
			}
			if _, ok := indices[w]; !ok {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []Node
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 {
				sort.Slice(comp, func(i, j int) bool { return comp[i].less(comp[j]) })
				out = append(out, comp)
			}
		}
	}

	for _, v := range order {
		if _, ok := indices[v]; !ok {
			strongconnect(v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0].less(out[j][0]) })
	return out
}
