// Package plan declares resources as an explicit dependency graph and builds them in
// topological order, so every step only sees identifiers produced by the steps it depends on.
package plan

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

var (
	// ErrDuplicateStep is returned when two steps share an ID.
	ErrDuplicateStep = errors.New("duplicate step")
	// ErrUnknownDependency is returned when a step depends on an ID no step declares.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrCycle is returned when the dependencies form a cycle.
	ErrCycle = errors.New("dependency cycle")
	// ErrUndeclaredDependency is returned when a step reads a value it did not declare.
	ErrUndeclaredDependency = errors.New("undeclared dependency")
	// ErrUnresolved is returned when a declared dependency has no value yet.
	ErrUnresolved = errors.New("dependency not resolved")
)

// Step is one vertex of the plan.
type Step struct {
	ID          string
	DependsOn   []string
	Description string
	// Build declares the step's resources. It may read the values of DependsOn through r.
	Build func(r *Resolver) (any, error)
}

// Resolver exposes the values produced by a step's dependencies.
type Resolver struct {
	step    string
	allowed map[string]struct{}
	values  map[string]any
}

// Get returns the value built by dependency id.
func (r *Resolver) Get(id string) (any, error) {
	if _, ok := r.allowed[id]; !ok {
		return nil, fmt.Errorf("%w: %s reads %s", ErrUndeclaredDependency, r.step, id)
	}
	v, ok := r.values[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolved, id)
	}
	return v, nil
}

// Value returns the value built by dependency id as a T.
func Value[T any](r *Resolver, id string) (T, error) {
	var zero T
	v, err := r.Get(id)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("step %s produced %T, want %T", id, v, zero)
	}
	return t, nil
}

// Graph builds the directed dependency graph; edges run from a dependency to its consumer.
func Graph(steps []Step) (graph.Graph[string, Step], error) {
	g := graph.New(func(s Step) string { return s.ID }, graph.Directed(), graph.PreventCycles())
	for _, s := range steps {
		if err := g.AddVertex(s); err != nil {
			if errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, s.ID)
			}
			return nil, err
		}
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return nil, fmt.Errorf("%w: %s depends on itself", ErrCycle, s.ID)
			}
			err := g.AddEdge(dep, s.ID)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrVertexNotFound):
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, s.ID, dep)
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, fmt.Errorf("%w: %s -> %s", ErrCycle, dep, s.ID)
			default:
				return nil, err
			}
		}
	}
	return g, nil
}

// Order returns step IDs in dependency order. Ties keep declaration order.
func Order(steps []Step) ([]string, error) {
	g, err := Graph(steps)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		index[s.ID] = i
	}
	return graph.StableTopologicalSort(g, func(a, b string) bool { return index[a] < index[b] })
}

// Execute builds every step in dependency order and returns the values keyed by step ID.
// The first failing step aborts the run.
func Execute(steps []Step) (map[string]any, error) {
	order, err := Order(steps)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}
	values := make(map[string]any, len(steps))
	for _, id := range order {
		s := byID[id]
		if s.Build == nil {
			values[id] = nil
			continue
		}
		r := &Resolver{step: id, allowed: make(map[string]struct{}, len(s.DependsOn)), values: values}
		for _, dep := range s.DependsOn {
			r.allowed[dep] = struct{}{}
		}
		v, err := s.Build(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		values[id] = v
	}
	return values, nil
}
