package dag

import (
	"strings"
	"testing"
)

// taskSpec is a compact task fixture: id, duration in days, priority.
type taskSpec struct {
	id       string
	dur      float64
	priority Priority
}

// buildGraph creates a graph from task specs and edge specs. Each edge spec
// is "pred>succ" optionally followed by ":TYPE" (FS when omitted).
func buildGraph(t *testing.T, tasks []taskSpec, edges ...string) *Graph {
	t.Helper()
	g := New()
	for _, s := range tasks {
		if err := g.AddTask(Task{ID: s.id, DurationDays: s.dur, Priority: s.priority}); err != nil {
			t.Fatalf("AddTask(%q): %v", s.id, err)
		}
	}
	for _, spec := range edges {
		e := parseEdgeSpec(t, spec)
		if err := g.AddEdge(e); err != nil {
			t.Fatalf("AddEdge(%s): %v", spec, err)
		}
	}
	return g
}

func parseEdgeSpec(t *testing.T, spec string) Edge {
	t.Helper()
	typ := FinishToStart
	body := spec
	if i := strings.Index(spec, ":"); i >= 0 {
		parsed, err := ParseDependencyType(spec[i+1:])
		if err != nil {
			t.Fatalf("edge spec %q: %v", spec, err)
		}
		typ = parsed
		body = spec[:i]
	}
	ends := strings.SplitN(body, ">", 2)
	if len(ends) != 2 {
		t.Fatalf("edge spec %q: want pred>succ", spec)
	}
	return Edge{PredecessorID: ends[0], SuccessorID: ends[1], Type: typ}
}

// forceEdge inserts an edge without any validation, so tests can construct
// graphs that violate the acyclicity invariant.
func forceEdge(g *Graph, e Edge) {
	if e.ID == "" {
		e.ID = DefaultEdgeID(e.PredecessorID, e.SuccessorID, e.Type)
	}
	edge := e
	g.edges[e.ID] = &edge
	g.keys[e.key()] = e.ID
	g.succ[e.PredecessorID] = append(g.succ[e.PredecessorID], e.ID)
	g.pred[e.SuccessorID] = append(g.pred[e.SuccessorID], e.ID)
}

// validOrder reports whether order lists every task once with each edge's
// predecessor first.
func validOrder(g *Graph, order []string) bool {
	if len(order) != g.Len() {
		return false
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := pos[id]; dup {
			return false
		}
		pos[id] = i
	}
	for _, e := range g.Edges() {
		if pos[e.PredecessorID] >= pos[e.SuccessorID] {
			return false
		}
	}
	return true
}

func edgeIDs(edges []Edge) []string {
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ID
	}
	return ids
}
