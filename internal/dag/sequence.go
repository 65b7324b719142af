package dag

import (
	"container/heap"
	"fmt"
)

// TopologicalOrder returns every task ID exactly once such that each edge's
// predecessor precedes its successor, whatever the edge type. It uses Kahn's
// algorithm; when several tasks are ready at once the most urgent priority
// goes first, then the earliest due date (tasks without one last), then the
// lowest ID. The order doubles as the suggested execution sequence.
//
// Returns ErrCyclePresent if some tasks keep a residual in-degree, which
// means the graph's acyclicity invariant was broken upstream.
func TopologicalOrder(g *Graph) ([]string, error) {
	inDegree := make(map[string]int, len(g.tasks))
	ready := &readyQueue{g: g}
	for id := range g.tasks {
		inDegree[id] = len(g.pred[id])
		if inDegree[id] == 0 {
			ready.ids = append(ready.ids, id)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(g.tasks))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for _, eid := range g.succ[id] {
			next := g.edges[eid].SuccessorID
			inDegree[next]--
			if inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(order) != len(g.tasks) {
		return nil, fmt.Errorf("%w: %d of %d tasks could be ordered",
			ErrCyclePresent, len(order), len(g.tasks))
	}
	return order, nil
}

// Ready returns the tasks not in done whose predecessors are all in done,
// in sequencer order.
func Ready(g *Graph, done map[string]bool) []string {
	q := &readyQueue{g: g}
	for id := range g.tasks {
		if done[id] {
			continue
		}
		met := true
		for _, eid := range g.pred[id] {
			if !done[g.edges[eid].PredecessorID] {
				met = false
				break
			}
		}
		if met {
			q.ids = append(q.ids, id)
		}
	}
	heap.Init(q)
	out := make([]string, 0, q.Len())
	for q.Len() > 0 {
		out = append(out, heap.Pop(q).(string))
	}
	return out
}

// readyQueue is a min-heap of task IDs ordered by readyLess.
type readyQueue struct {
	g   *Graph
	ids []string
}

func (q *readyQueue) Len() int           { return len(q.ids) }
func (q *readyQueue) Less(i, j int) bool { return readyLess(q.g.tasks[q.ids[i]], q.g.tasks[q.ids[j]]) }
func (q *readyQueue) Swap(i, j int)      { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *readyQueue) Push(x any)         { q.ids = append(q.ids, x.(string)) }
func (q *readyQueue) Pop() any {
	n := len(q.ids)
	id := q.ids[n-1]
	q.ids = q.ids[:n-1]
	return id
}

// readyLess orders by (priority rank, due date with nil last, ID).
func readyLess(a, b *Task) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra < rb
	}
	switch {
	case a.DueDate != nil && b.DueDate != nil:
		if !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
	case a.DueDate != nil:
		return true
	case b.DueDate != nil:
		return false
	}
	return a.ID < b.ID
}
