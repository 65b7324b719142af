package dag

import (
	"fmt"
	"math"
	"sort"
)

// slackEpsilon absorbs floating point noise from fractional durations.
// Slack within ±slackEpsilon of zero is reported as exactly zero.
const slackEpsilon = 1e-9

// Analyze runs the Critical Path Method over g. It orders the tasks with
// TopologicalOrder, then makes a forward pass for earliest start/finish and a
// backward pass for latest start/finish, honouring all four edge types.
//
// Returns ErrCyclePresent if g is not acyclic and a *TimingError
// (ErrInconsistentTiming) if any task ends up with negative slack. Both are
// internal errors; see IsInternal.
func Analyze(g *Graph) (*Analysis, error) {
	order, err := TopologicalOrder(g)
	if err != nil {
		return nil, err
	}

	timings := make(map[string]*TaskTiming, len(order))
	for _, id := range order {
		timings[id] = &TaskTiming{TaskID: id}
	}

	// Forward pass.
	for _, id := range order {
		task := g.tasks[id]
		d := task.DurationDays
		es := task.earliestPossibleStart()
		for _, eid := range g.pred[id] {
			e := g.edges[eid]
			p := timings[e.PredecessorID]
			if b := startBound(e.Type, p, d); b > es {
				es = b
			}
		}
		tt := timings[id]
		tt.EarliestStart = es
		tt.EarliestFinish = es + d
	}

	var projectDuration float64
	for _, tt := range timings {
		projectDuration = math.Max(projectDuration, tt.EarliestFinish)
	}

	// Backward pass.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		d := g.tasks[id].DurationDays
		tt := timings[id]
		lf := projectDuration
		for _, eid := range g.succ[id] {
			e := g.edges[eid]
			s := timings[e.SuccessorID]
			if b := finishBound(e.Type, s, d); b < lf {
				lf = b
			}
		}
		if lf < tt.EarliestFinish {
			lf = tt.EarliestFinish
		}
		tt.LatestFinish = lf
		tt.LatestStart = lf - d
	}

	result := &Analysis{
		ProjectDurationDays: projectDuration,
		Timings:             make(map[string]TaskTiming, len(order)),
		CriticalTasks:       []string{},
		SlackTasks:          []string{},
		Order:               order,
	}
	for _, id := range order {
		tt := timings[id]
		slack := tt.LatestStart - tt.EarliestStart
		if math.IsNaN(slack) || slack < -slackEpsilon {
			return nil, &TimingError{TaskID: id, Slack: slack}
		}
		if math.Abs(slack) < slackEpsilon {
			slack = 0
		}
		tt.Slack = slack
		tt.IsCritical = slack == 0
		if tt.IsCritical {
			result.CriticalTasks = append(result.CriticalTasks, id)
		} else {
			result.SlackTasks = append(result.SlackTasks, id)
		}
	}

	sort.Slice(result.SlackTasks, func(i, j int) bool {
		a, b := timings[result.SlackTasks[i]], timings[result.SlackTasks[j]]
		if a.Slack != b.Slack {
			return a.Slack < b.Slack
		}
		return a.TaskID < b.TaskID
	})

	result.Waves = computeWaves(order, timings)
	for _, id := range order {
		result.Timings[id] = *timings[id]
	}
	return result, nil
}

// startBound is the lower bound an incoming edge from predecessor p places on
// the earliest start of a task of duration d.
func startBound(typ DependencyType, p *TaskTiming, d float64) float64 {
	switch typ {
	case FinishToStart:
		return p.EarliestFinish
	case StartToStart:
		return p.EarliestStart
	case FinishToFinish:
		return p.EarliestFinish - d
	case StartToFinish:
		return p.EarliestStart - d
	}
	panic(fmt.Sprintf("dag: unhandled dependency type %d", int(typ)))
}

// finishBound is the upper bound an outgoing edge to successor s places on
// the latest finish of a task of duration d.
func finishBound(typ DependencyType, s *TaskTiming, d float64) float64 {
	switch typ {
	case FinishToStart:
		return s.LatestStart
	case StartToStart:
		return s.LatestStart + d
	case FinishToFinish:
		return s.LatestFinish
	case StartToFinish:
		return s.LatestFinish + d
	}
	panic(fmt.Sprintf("dag: unhandled dependency type %d", int(typ)))
}
