package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Vertex is a node of a DirectedAcyclicGraph
type Vertex[T comparable] struct {
	ID T
	// Order breaks ties between vertices that are ready at the same time
	Order int
	// DependsOn holds the vertices that must be sorted before this one
	DependsOn map[T]struct{}
}

// DirectedAcyclicGraph orders vertices so that every vertex comes after the
// vertices it depends on
type DirectedAcyclicGraph[T comparable] struct {
	Vertices map[T]*Vertex[T]
	added    []T
}

// NewDirectedAcyclicGraph returns an empty graph
func NewDirectedAcyclicGraph[T comparable]() *DirectedAcyclicGraph[T] {
	return &DirectedAcyclicGraph[T]{Vertices: make(map[T]*Vertex[T])}
}

// CycleError reports a dependency cycle
type CycleError[T comparable] struct {
	Cycle []T
}

func (e *CycleError[T]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, v := range e.Cycle {
		parts[i] = fmt.Sprint(v)
	}
	return "graph contains a cycle: " + strings.Join(parts, " -> ")
}

// AsCycleError returns err as a *CycleError, or nil when it is not one
func AsCycleError[T comparable](err error) *CycleError[T] {
	var cycleErr *CycleError[T]
	if errors.As(err, &cycleErr) {
		return cycleErr
	}
	return nil
}

// AddVertex adds a vertex with the given tie-break order
func (d *DirectedAcyclicGraph[T]) AddVertex(id T, order int) error {
	if _, ok := d.Vertices[id]; ok {
		return fmt.Errorf("vertex %v already exists", id)
	}
	d.Vertices[id] = &Vertex[T]{ID: id, Order: order, DependsOn: make(map[T]struct{})}
	d.added = append(d.added, id)
	return nil
}

// AddDependencies records that id depends on each of deps. A dependency that
// would close a cycle is rejected with a *CycleError and not recorded.
func (d *DirectedAcyclicGraph[T]) AddDependencies(id T, deps []T) error {
	v, ok := d.Vertices[id]
	if !ok {
		return fmt.Errorf("vertex %v does not exist", id)
	}
	for _, dep := range deps {
		if dep == id {
			return fmt.Errorf("vertex %v cannot depend on itself", id)
		}
		if _, ok := d.Vertices[dep]; !ok {
			return fmt.Errorf("vertex %v depends on unknown vertex %v", id, dep)
		}
		if _, exists := v.DependsOn[dep]; exists {
			continue
		}
		v.DependsOn[dep] = struct{}{}
		if cyclic, cycle := d.hasCycle(); cyclic {
			delete(v.DependsOn, dep)
			return &CycleError[T]{Cycle: cycle}
		}
	}
	return nil
}

// hasCycle runs a depth first search over DependsOn edges
func (d *DirectedAcyclicGraph[T]) hasCycle() (bool, []T) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[T]int, len(d.Vertices))
	var stack []T

	var visit func(T) []T
	visit = func(id T) []T {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range d.sortedDeps(id) {
			switch state[dep] {
			case visiting:
				start := slices.Index(stack, dep)
				return append(slices.Clone(stack[start:]), dep)
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range d.added {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return true, cycle
			}
		}
	}
	return false, nil
}

func (d *DirectedAcyclicGraph[T]) sortedDeps(id T) []T {
	deps := make([]T, 0, len(d.Vertices[id].DependsOn))
	for _, candidate := range d.added {
		if _, ok := d.Vertices[id].DependsOn[candidate]; ok {
			deps = append(deps, candidate)
		}
	}
	return deps
}

// TopologicalSortLevels groups vertices into levels. Every vertex sits in a
// later level than all of its dependencies; within a level vertices are
// sorted by Order.
func (d *DirectedAcyclicGraph[T]) TopologicalSortLevels() ([][]T, error) {
	if cyclic, cycle := d.hasCycle(); cyclic {
		return nil, &CycleError[T]{Cycle: cycle}
	}

	remaining := make(map[T]int, len(d.Vertices))
	for id, v := range d.Vertices {
		remaining[id] = len(v.DependsOn)
	}
	placed := make(map[T]struct{}, len(d.Vertices))

	var levels [][]T
	for len(placed) < len(d.Vertices) {
		var level []T
		for _, id := range d.added {
			if _, ok := placed[id]; ok {
				continue
			}
			if remaining[id] == 0 {
				level = append(level, id)
			}
		}
		slices.SortStableFunc(level, func(a, b T) int {
			return d.Vertices[a].Order - d.Vertices[b].Order
		})
		for _, id := range level {
			placed[id] = struct{}{}
		}
		for _, id := range d.added {
			if _, ok := placed[id]; ok {
				continue
			}
			for _, done := range level {
				if _, ok := d.Vertices[id].DependsOn[done]; ok {
					remaining[id]--
				}
			}
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// TopologicalSort returns the vertices with dependencies first
func (d *DirectedAcyclicGraph[T]) TopologicalSort() ([]T, error) {
	levels, err := d.TopologicalSortLevels()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(d.Vertices))
	for _, level := range levels {
		out = append(out, level...)
	}
	return out, nil
}
