package dag

import "sort"

// Snapshot is the node/edge list form of a Graph, as loaded from or handed
// to a persistence layer. Tasks are ordered by ID and edges by edge ID.
type Snapshot struct {
	Tasks []Task `json:"tasks"`
	Edges []Edge `json:"edges"`
}

// Snapshot exports the graph as a node/edge list.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Tasks: make([]Task, 0, len(g.tasks)),
		Edges: g.Edges(),
	}
	for _, id := range g.Tasks() {
		t, _ := g.Task(id)
		s.Tasks = append(s.Tasks, t)
	}
	if s.Edges == nil {
		s.Edges = []Edge{}
	}
	return s
}

// FromSnapshot rebuilds a Graph from a node/edge list. Every edge passes
// through AddEdge, so a snapshot that references unknown tasks, repeats an
// edge or contains a cycle is rejected with the corresponding error.
func FromSnapshot(s Snapshot) (*Graph, error) {
	g, err := NewGraph(s.Tasks)
	if err != nil {
		return nil, err
	}
	edges := make([]Edge, len(s.Edges))
	copy(edges, s.Edges)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}
