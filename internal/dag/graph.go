// Package dag is the task dependency engine: a typed precedence graph that
// refuses cycles, a deterministic sequencer, and a critical path analyzer.
// Graphs are built fresh from a caller-supplied snapshot for each operation;
// nothing here persists or synchronises.
package dag

import (
	"fmt"
	"math"
	"sort"
)

// Graph holds the tasks and dependency edges of one project. Edges are kept
// in an arena keyed by edge ID, with forward and reverse adjacency indexes of
// edge IDs per task. A Graph is not safe for concurrent mutation.
type Graph struct {
	tasks map[string]*Task
	edges map[string]*Edge
	keys  map[edgeKey]string
	// succ maps taskID → IDs of edges leaving it, sorted by successor.
	succ map[string][]string
	// pred maps taskID → IDs of edges entering it, sorted by predecessor.
	pred map[string][]string
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		tasks: make(map[string]*Task),
		edges: make(map[string]*Edge),
		keys:  make(map[edgeKey]string),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
	}
}

// NewGraph creates a Graph over the given task set with no edges.
func NewGraph(tasks []Task) (*Graph, error) {
	g := New()
	for _, t := range tasks {
		if err := g.AddTask(t); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddTask adds a node. Returns ErrDuplicateTask if the ID is taken and
// ErrInvalidDuration if the duration or earliest start is negative or not
// finite.
func (g *Graph) AddTask(t Task) error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty task id", ErrUnknownTask)
	}
	if _, exists := g.tasks[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	if !validDays(t.DurationDays) {
		return fmt.Errorf("%w: task %s duration %g", ErrInvalidDuration, t.ID, t.DurationDays)
	}
	if t.EarliestStart != nil && !validDays(*t.EarliestStart) {
		return fmt.Errorf("%w: task %s earliest start %g", ErrInvalidDuration, t.ID, *t.EarliestStart)
	}
	task := t
	if t.EarliestStart != nil {
		es := *t.EarliestStart
		task.EarliestStart = &es
	}
	if t.DueDate != nil {
		due := *t.DueDate
		task.DueDate = &due
	}
	g.tasks[t.ID] = &task
	return nil
}

func validDays(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// RemoveTask removes a task and every edge touching it. Returns
// ErrUnknownTask if the task does not exist.
func (g *Graph) RemoveTask(id string) error {
	if _, ok := g.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	touching := append(append([]string(nil), g.succ[id]...), g.pred[id]...)
	for _, eid := range touching {
		if _, ok := g.edges[eid]; ok {
			g.dropEdge(eid)
		}
	}
	delete(g.succ, id)
	delete(g.pred, id)
	delete(g.tasks, id)
	return nil
}

// DefaultEdgeID derives a stable edge ID from the edge's content. It is used
// when an edge is added without an ID.
func DefaultEdgeID(predecessor, successor string, typ DependencyType) string {
	return fmt.Sprintf("%s->%s/%s", predecessor, successor, typ)
}

// AddEdge validates e and, only if every check passes, inserts it. The checks
// run in order: relationship type, known endpoints, self-dependency,
// duplicates, then the cycle validator. A rejected edge leaves the graph
// untouched. An empty e.ID is replaced with DefaultEdgeID.
func (g *Graph) AddEdge(e Edge) error {
	if err := g.ValidateEdge(e); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = DefaultEdgeID(e.PredecessorID, e.SuccessorID, e.Type)
	}
	edge := e
	g.edges[e.ID] = &edge
	g.keys[e.key()] = e.ID
	g.succ[e.PredecessorID] = g.insertSorted(g.succ[e.PredecessorID], e.ID, succOrder)
	g.pred[e.SuccessorID] = g.insertSorted(g.pred[e.SuccessorID], e.ID, predOrder)
	return nil
}

// ValidateEdge runs every AddEdge check without mutating the graph.
func (g *Graph) ValidateEdge(e Edge) error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidDependencyType, e.Type)
	}
	if _, ok := g.tasks[e.PredecessorID]; !ok {
		return fmt.Errorf("%w: predecessor %q", ErrUnknownTask, e.PredecessorID)
	}
	if _, ok := g.tasks[e.SuccessorID]; !ok {
		return fmt.Errorf("%w: successor %q", ErrUnknownTask, e.SuccessorID)
	}
	if e.PredecessorID == e.SuccessorID {
		return fmt.Errorf("%w: %s", ErrSelfDependency, e.PredecessorID)
	}
	if existing, ok := g.keys[e.key()]; ok {
		return fmt.Errorf("%w: %s already exists as %s", ErrDuplicateEdge, e, existing)
	}
	id := e.ID
	if id == "" {
		id = DefaultEdgeID(e.PredecessorID, e.SuccessorID, e.Type)
	}
	if _, ok := g.edges[id]; ok {
		return fmt.Errorf("%w: edge id %s", ErrDuplicateEdge, id)
	}
	if path := PathBetween(g, e.SuccessorID, e.PredecessorID); path != nil {
		return &CycleError{Edge: e, Path: path}
	}
	return nil
}

// RemoveEdge deletes the edge with the given ID. Returns ErrEdgeNotFound if
// no such edge exists.
func (g *Graph) RemoveEdge(id string) error {
	if _, ok := g.edges[id]; !ok {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	g.dropEdge(id)
	return nil
}

func (g *Graph) dropEdge(id string) {
	e := g.edges[id]
	g.succ[e.PredecessorID] = without(g.succ[e.PredecessorID], id)
	g.pred[e.SuccessorID] = without(g.pred[e.SuccessorID], id)
	delete(g.keys, e.key())
	delete(g.edges, id)
}

// SuccessorsOf returns the edges leaving taskID, ordered by successor ID,
// then type, then edge ID. Unknown tasks have no edges.
func (g *Graph) SuccessorsOf(taskID string) []Edge {
	return g.resolve(g.succ[taskID])
}

// PredecessorsOf returns the edges entering taskID, ordered by predecessor
// ID, then type, then edge ID.
func (g *Graph) PredecessorsOf(taskID string) []Edge {
	return g.resolve(g.pred[taskID])
}

// Task returns a copy of the task with the given ID.
func (g *Graph) Task(id string) (Task, bool) {
	t, ok := g.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Edge returns a copy of the edge with the given ID.
func (g *Graph) Edge(id string) (Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// HasTask reports whether id is in the task set.
func (g *Graph) HasTask(id string) bool {
	_, ok := g.tasks[id]
	return ok
}

// Tasks returns all task IDs sorted alphabetically.
func (g *Graph) Tasks() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns all edges sorted by edge ID.
func (g *Graph) Edges() []Edge {
	ids := make([]string, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return g.resolve(ids)
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Clone returns an independent deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := New()
	for _, t := range g.tasks {
		_ = c.AddTask(*t) // already validated on the way in
	}
	for id, e := range g.edges {
		edge := *e
		c.edges[id] = &edge
		c.keys[edge.key()] = id
	}
	for id, ids := range g.succ {
		c.succ[id] = append([]string(nil), ids...)
	}
	for id, ids := range g.pred {
		c.pred[id] = append([]string(nil), ids...)
	}
	return c
}

func (g *Graph) resolve(ids []string) []Edge {
	if len(ids) == 0 {
		return nil
	}
	out := make([]Edge, len(ids))
	for i, id := range ids {
		out[i] = *g.edges[id]
	}
	return out
}

// succOrder and predOrder compare two edges for adjacency ordering from the
// point of view of the shared endpoint.
func succOrder(a, b *Edge) bool {
	if a.SuccessorID != b.SuccessorID {
		return a.SuccessorID < b.SuccessorID
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.ID < b.ID
}

func predOrder(a, b *Edge) bool {
	if a.PredecessorID != b.PredecessorID {
		return a.PredecessorID < b.PredecessorID
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.ID < b.ID
}

func (g *Graph) insertSorted(ids []string, id string, less func(a, b *Edge) bool) []string {
	e := g.edges[id]
	i := sort.Search(len(ids), func(i int) bool {
		return !less(g.edges[ids[i]], e)
	})
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
