package manifest

import (
	"fmt"
	"time"

	"github.com/papapumpkin/critpath/internal/dag"
)

// Build converts m into a validated dependency graph. Tasks are added first,
// then explicit dependencies in file order, then depends_on entries in task
// order. Every edge passes through the graph's cycle validator, so the first
// offending entry is reported with its location.
func Build(m *Manifest, hoursPerDay float64) (*dag.Graph, error) {
	projectStart, err := parseDate(m.Project.Start)
	if err != nil {
		return nil, fmt.Errorf("manifest: project start: %w", err)
	}

	g := dag.New()
	for i := range m.Tasks {
		task, err := m.Tasks[i].toTask(projectStart, hoursPerDay)
		if err != nil {
			return nil, err
		}
		if err := g.AddTask(task); err != nil {
			return nil, fmt.Errorf("manifest: task %q: %w", m.Tasks[i].ID, err)
		}
	}

	for _, d := range m.Dependencies {
		e, err := d.toEdge()
		if err != nil {
			return nil, err
		}
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("manifest: dependency %s: %w", e, err)
		}
	}

	for _, ts := range m.Tasks {
		for _, pred := range ts.DependsOn {
			e := dag.Edge{PredecessorID: pred, SuccessorID: ts.ID, Type: dag.FinishToStart}
			if err := g.AddEdge(e); err != nil {
				return nil, fmt.Errorf("manifest: task %q depends_on %q: %w", ts.ID, pred, err)
			}
		}
	}
	return g, nil
}

func (ts TaskSpec) toTask(projectStart *time.Time, hoursPerDay float64) (dag.Task, error) {
	if ts.ID == "" {
		return dag.Task{}, fmt.Errorf("manifest: %w: missing id", ErrInvalidTask)
	}
	fail := func(format string, args ...any) (dag.Task, error) {
		return dag.Task{}, fmt.Errorf("manifest: %w: %s: "+format, append([]any{ErrInvalidTask, ts.ID}, args...)...)
	}

	prio, err := dag.ParsePriority(ts.Priority)
	if err != nil {
		return fail("%v", err)
	}
	start, err := parseDate(ts.Start)
	if err != nil {
		return fail("start: %v", err)
	}
	due, err := parseDate(ts.Due)
	if err != nil {
		return fail("due: %v", err)
	}

	task := dag.Task{ID: ts.ID, Title: ts.Title, Priority: prio, DueDate: due}
	switch {
	case ts.DurationDays != nil:
		task.DurationDays = *ts.DurationDays
	case ts.EstimateHours != nil:
		if hoursPerDay <= 0 {
			return fail("hours per day must be positive, got %g", hoursPerDay)
		}
		task.DurationDays = *ts.EstimateHours / hoursPerDay
	case start != nil && due != nil:
		task.DurationDays = daysBetween(*start, *due)
	}

	switch {
	case ts.EarliestStart != nil:
		es := *ts.EarliestStart
		task.EarliestStart = &es
	case start != nil && projectStart != nil:
		es := daysBetween(*projectStart, *start)
		task.EarliestStart = &es
	}
	return task, nil
}

func (d DependencySpec) toEdge() (dag.Edge, error) {
	typ, err := dag.ParseDependencyType(d.Type)
	if err != nil {
		return dag.Edge{}, fmt.Errorf("manifest: dependency %s -> %s: %w", d.Predecessor, d.Successor, err)
	}
	return dag.Edge{ID: d.ID, PredecessorID: d.Predecessor, SuccessorID: d.Successor, Type: typ}, nil
}

// edgeID is the ID the graph will assign to d.
func (d DependencySpec) edgeID() string {
	if d.ID != "" {
		return d.ID
	}
	e, err := d.toEdge()
	if err != nil {
		return ""
	}
	return dag.DefaultEdgeID(e.PredecessorID, e.SuccessorID, e.Type)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// AddDependency validates d against the graph built from m and appends it
// to m.Dependencies only if the engine accepts it. The stored entry carries
// the resolved edge ID and canonical type abbreviation.
func AddDependency(m *Manifest, hoursPerDay float64, d DependencySpec) (dag.Edge, error) {
	g, err := Build(m, hoursPerDay)
	if err != nil {
		return dag.Edge{}, err
	}
	e, err := d.toEdge()
	if err != nil {
		return dag.Edge{}, err
	}
	if err := g.AddEdge(e); err != nil {
		return dag.Edge{}, err
	}
	if e.ID == "" {
		e.ID = dag.DefaultEdgeID(e.PredecessorID, e.SuccessorID, e.Type)
	}
	m.Dependencies = append(m.Dependencies, DependencySpec{
		ID:          e.ID,
		Predecessor: e.PredecessorID,
		Successor:   e.SuccessorID,
		Type:        e.Type.String(),
	})
	return e, nil
}

// RemoveDependency deletes the edge with the given ID, whether it came from
// an explicit dependency or a depends_on entry. Returns dag.ErrEdgeNotFound
// if nothing matches.
func RemoveDependency(m *Manifest, edgeID string) error {
	for i, d := range m.Dependencies {
		if d.edgeID() == edgeID {
			m.Dependencies = append(m.Dependencies[:i], m.Dependencies[i+1:]...)
			return nil
		}
	}
	for i := range m.Tasks {
		ts := &m.Tasks[i]
		for j, pred := range ts.DependsOn {
			if dag.DefaultEdgeID(pred, ts.ID, dag.FinishToStart) == edgeID {
				ts.DependsOn = append(ts.DependsOn[:j], ts.DependsOn[j+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("manifest: %w: %s", dag.ErrEdgeNotFound, edgeID)
}
