package project

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/papapumpkin/critpath/internal/dag"
)

var errNoProject = errors.New("no such project")

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu       sync.Mutex
	gens     map[string]uint64
	tasks    map[string]map[string]dag.Task
	edges    map[string]map[string]dag.Edge
	loads    int
	inserted int

	// beforeInsert, when set, runs at the start of InsertEdge without the
	// lock held, standing in for another process writing the project.
	beforeInsert func()
}

func newMemStore() *memStore {
	return &memStore{
		gens:  make(map[string]uint64),
		tasks: make(map[string]map[string]dag.Task),
		edges: make(map[string]map[string]dag.Edge),
	}
}

func (m *memStore) LoadSnapshot(_ context.Context, projectID string) (dag.Snapshot, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	gen, ok := m.gens[projectID]
	if !ok {
		return dag.Snapshot{}, 0, fmt.Errorf("%w: %s", errNoProject, projectID)
	}
	snap := dag.Snapshot{Edges: []dag.Edge{}}
	for _, t := range m.tasks[projectID] {
		snap.Tasks = append(snap.Tasks, t)
	}
	for _, e := range m.edges[projectID] {
		snap.Edges = append(snap.Edges, e)
	}
	sort.Slice(snap.Tasks, func(i, j int) bool { return snap.Tasks[i].ID < snap.Tasks[j].ID })
	sort.Slice(snap.Edges, func(i, j int) bool { return snap.Edges[i].ID < snap.Edges[j].ID })
	return snap, gen, nil
}

func (m *memStore) UpsertTask(_ context.Context, projectID string, t dag.Task) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks[projectID] == nil {
		m.tasks[projectID] = make(map[string]dag.Task)
		m.edges[projectID] = make(map[string]dag.Edge)
	}
	m.tasks[projectID][t.ID] = t
	m.gens[projectID]++
	return m.gens[projectID], nil
}

func (m *memStore) InsertEdge(_ context.Context, projectID string, validatedAt uint64, e dag.Edge) (uint64, error) {
	if m.beforeInsert != nil {
		m.beforeInsert()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.gens[projectID]
	if !ok {
		return 0, errNoProject
	}
	if gen != validatedAt {
		return 0, fmt.Errorf("%w: at %d, validated at %d", dag.ErrStaleSnapshot, gen, validatedAt)
	}
	if _, ok := m.edges[projectID][e.ID]; ok {
		return 0, dag.ErrDuplicateEdge
	}
	m.edges[projectID][e.ID] = e
	m.inserted++
	m.gens[projectID]++
	return m.gens[projectID], nil
}

func (m *memStore) DeleteEdge(_ context.Context, projectID, edgeID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[projectID][edgeID]; !ok {
		return 0, dag.ErrEdgeNotFound
	}
	delete(m.edges[projectID], edgeID)
	m.gens[projectID]++
	return m.gens[projectID], nil
}

// forceEdge writes an edge without any validation.
func (m *memStore) forceEdge(projectID string, e dag.Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[projectID][e.ID] = e
	m.gens[projectID]++
}
