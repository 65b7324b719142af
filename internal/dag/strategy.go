package dag

import (
	"fmt"
	"strings"
)

// ReportStrategy defines how to present an analysis. Each implementation
// produces a distinct plain-text view of the same computed schedule.
type ReportStrategy interface {
	Render(g *Graph, a *Analysis) string
}

// StrategyByName returns the report strategy registered under name: plan,
// critical, slack or tracks.
func StrategyByName(name string) (ReportStrategy, error) {
	switch strings.ToLower(name) {
	case "", "plan":
		return ExecutionPlanStrategy{}, nil
	case "critical":
		return CriticalPathStrategy{}, nil
	case "slack":
		return SlackReportStrategy{}, nil
	case "tracks":
		return TrackAssignmentStrategy{}, nil
	}
	return nil, fmt.Errorf("unknown report %q (want plan, critical, slack or tracks)", name)
}

// ExecutionPlanStrategy renders the suggested execution sequence with each
// task's window and its incoming dependencies.
type ExecutionPlanStrategy struct{}

// Render produces a numbered execution plan.
func (ExecutionPlanStrategy) Render(g *Graph, a *Analysis) string {
	if len(a.Order) == 0 {
		return "No tasks in graph."
	}

	var b strings.Builder
	b.WriteString("# Execution Plan\n\n")
	for i, id := range a.Order {
		tt := a.Timings[id]
		task := g.tasks[id]
		fmt.Fprintf(&b, "%d. %s  day %s–%s (%s, %s)", i+1, id,
			formatDays(tt.EarliestStart), formatDays(tt.EarliestFinish),
			formatDays(task.DurationDays)+"d", task.Priority)
		if deps := describePreds(g, id); deps != "" {
			fmt.Fprintf(&b, " [after: %s]", deps)
		}
		if tt.IsCritical {
			b.WriteString(" *")
		}
		b.WriteByte('\n')
	}
	b.WriteString("\n* critical\n")
	return b.String()
}

// CriticalPathStrategy renders the zero-slack tasks that determine the
// project duration.
type CriticalPathStrategy struct{}

// Render produces a critical path report.
func (CriticalPathStrategy) Render(g *Graph, a *Analysis) string {
	if len(a.Order) == 0 {
		return "No tasks in graph."
	}

	var b strings.Builder
	b.WriteString("# Critical Path\n\n")
	fmt.Fprintf(&b, "Project duration: %s days\n", formatDays(a.ProjectDurationDays))
	fmt.Fprintf(&b, "Critical tasks: %d of %d\n\n", len(a.CriticalTasks), len(a.Order))
	for step, id := range a.CriticalTasks {
		tt := a.Timings[id]
		arrow := ""
		if step < len(a.CriticalTasks)-1 {
			arrow = " →"
		}
		fmt.Fprintf(&b, "%d. %s  day %s–%s%s\n", step+1, id,
			formatDays(tt.EarliestStart), formatDays(tt.EarliestFinish), arrow)
	}
	b.WriteString("\nAny delay to these tasks delays the project.\n")
	return b.String()
}

// SlackReportStrategy renders non-critical tasks by how far each can slip.
type SlackReportStrategy struct{}

// Render produces a slack report ordered by ascending slack.
func (SlackReportStrategy) Render(_ *Graph, a *Analysis) string {
	if len(a.SlackTasks) == 0 {
		return "Every task is critical."
	}

	var b strings.Builder
	b.WriteString("# Slack\n\n")
	for _, id := range a.SlackTasks {
		tt := a.Timings[id]
		fmt.Fprintf(&b, "- %s  slack=%sd  start %s..%s\n", id, formatDays(tt.Slack),
			formatDays(tt.EarliestStart), formatDays(tt.LatestStart))
	}
	return b.String()
}

// TrackAssignmentStrategy renders independent tracks with their members.
type TrackAssignmentStrategy struct{}

// Render produces a track-by-track report.
func (TrackAssignmentStrategy) Render(g *Graph, a *Analysis) string {
	tracks := ComputeTracks(g, a)
	if len(tracks) == 0 {
		return "No tasks in graph."
	}

	var b strings.Builder
	b.WriteString("# Tracks\n\n")
	fmt.Fprintf(&b, "Total tracks: %d\n\n", len(tracks))
	for _, tr := range tracks {
		marker := ""
		if tr.IsCritical {
			marker = " (critical)"
		}
		fmt.Fprintf(&b, "## Track %d: %d tasks, span %sd, work %sd%s\n",
			tr.ID, len(tr.TaskIDs), formatDays(tr.SpanDays), formatDays(tr.TotalDurationDays), marker)
		for _, id := range tr.TaskIDs {
			fmt.Fprintf(&b, "  - %s\n", id)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// describePreds lists incoming edges as "pred(FS), …".
func describePreds(g *Graph, id string) string {
	preds := g.PredecessorsOf(id)
	parts := make([]string, len(preds))
	for i, e := range preds {
		parts[i] = fmt.Sprintf("%s(%s)", e.PredecessorID, e.Type)
	}
	return strings.Join(parts, ", ")
}

// formatDays prints whole days without a fraction and anything else with up
// to two decimals.
func formatDays(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
