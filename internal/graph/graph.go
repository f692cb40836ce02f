// Package graph holds the two graphs used when exporting a bundle: the
// dependency graph between bundle entities, keyed by (id, type), and a small
// generic DAG used to order components that declare dependencies on each
// other.
package graph

import (
	"github.com/alevsk/gwbundle/internal/entity"
)

// Key identifies an entity within a bundle
type Key struct {
	ID   string
	Type entity.Type
}

func (k Key) String() string {
	return string(k.Type) + ":" + k.ID
}

// Graph records "A depends on B" edges between entities. Edge order per
// source is preserved and duplicate edges are ignored.
type Graph struct {
	edges map[Key][]Key
}

// New returns an empty dependency graph
func New() *Graph {
	return &Graph{edges: make(map[Key][]Key)}
}

// AddEdge records that from depends on to
func (g *Graph) AddEdge(from, to Key) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Dependencies returns the direct dependencies of k
func (g *Graph) Dependencies(k Key) []Key {
	return g.edges[k]
}

// Len returns the number of entities with at least one dependency
func (g *Graph) Len() int {
	return len(g.edges)
}

// Reachable returns every key reachable from the seeds, seeds included
func (g *Graph) Reachable(seeds ...Key) map[Key]struct{} {
	seen := make(map[Key]struct{}, len(seeds))
	queue := make([]Key, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return seen
}
