// Package store provides the in-memory graph store backing the pipeline
// drawer. Unlike the library's default store it keeps vertex properties
// addressable after insertion, so annotations (durations, colours) can be
// applied once an execution trace is known.
package store

import (
	"sync"

	"github.com/dominikbraun/graph"
)

// StepStore is a thread-safe graph.Store keyed by step id.
type StepStore struct {
	mu    sync.RWMutex
	steps map[string]string
	props map[string]*graph.VertexProperties

	// out and in index edges by source and target step for O(1) access.
	out map[string]map[string]graph.Edge[string]
	in  map[string]map[string]graph.Edge[string]
}

// New returns an empty step store.
func New() *StepStore {
	return &StepStore{
		steps: make(map[string]string),
		props: make(map[string]*graph.VertexProperties),
		out:   make(map[string]map[string]graph.Edge[string]),
		in:    make(map[string]map[string]graph.Edge[string]),
	}
}

var _ graph.Store[string, string] = (*StepStore)(nil)

func (s *StepStore) AddVertex(id, value string, props graph.VertexProperties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.steps[id]; ok {
		return graph.ErrVertexAlreadyExists
	}

	s.steps[id] = value
	s.props[id] = &props

	return nil
}

func (s *StepStore) Vertex(id string) (string, graph.VertexProperties, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.steps[id]
	if !ok {
		return "", graph.VertexProperties{}, graph.ErrVertexNotFound
	}

	return value, *s.props[id], nil
}

func (s *StepStore) ListVertices() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.steps))
	for id := range s.steps {
		ids = append(ids, id)
	}

	return ids, nil
}

func (s *StepStore) VertexCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.steps), nil
}

func (s *StepStore) RemoveVertex(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.steps[id]; !ok {
		return graph.ErrVertexNotFound
	}

	if len(s.in[id]) > 0 || len(s.out[id]) > 0 {
		return graph.ErrVertexHasEdges
	}

	delete(s.steps, id)
	delete(s.props, id)
	delete(s.in, id)
	delete(s.out, id)

	return nil
}

// UpdateVertex mutates the stored properties of a step in place. Unknown
// steps are ignored.
func (s *StepStore) UpdateVertex(id string, update func(props *graph.VertexProperties)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if props, ok := s.props[id]; ok {
		update(props)
	}
}

func (s *StepStore) AddEdge(source, target string, edge graph.Edge[string]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out[source] == nil {
		s.out[source] = make(map[string]graph.Edge[string])
	}
	s.out[source][target] = edge

	if s.in[target] == nil {
		s.in[target] = make(map[string]graph.Edge[string])
	}
	s.in[target][source] = edge

	return nil
}

func (s *StepStore) UpdateEdge(source, target string, edge graph.Edge[string]) error {
	if _, err := s.Edge(source, target); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.out[source][target] = edge
	s.in[target][source] = edge

	return nil
}

func (s *StepStore) RemoveEdge(source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.out[source], target)
	delete(s.in[target], source)

	return nil
}

func (s *StepStore) Edge(source, target string) (graph.Edge[string], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets, ok := s.out[source]
	if !ok {
		return graph.Edge[string]{}, graph.ErrEdgeNotFound
	}

	edge, ok := targets[target]
	if !ok {
		return graph.Edge[string]{}, graph.ErrEdgeNotFound
	}

	return edge, nil
}

func (s *StepStore) ListEdges() ([]graph.Edge[string], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]graph.Edge[string], 0)
	for _, targets := range s.out {
		for _, edge := range targets {
			edges = append(edges, edge)
		}
	}

	return edges, nil
}
