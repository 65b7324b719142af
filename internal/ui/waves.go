package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/critpath/internal/dag"
)

// WaveRenderer draws an analysis as rows of parallel waves. Each task is
// shown as [title] followed by arrows to the tasks that depend on it.
// Critical tasks are styled, or marked with * when color is off.
type WaveRenderer struct {
	UseColor bool
}

// Render produces the wave listing for a, using g for titles and edges.
func (r *WaveRenderer) Render(g *dag.Graph, a *dag.Analysis) string {
	if len(a.Waves) == 0 {
		return ""
	}

	titles := make(map[string]string, g.Len())
	for _, id := range g.Tasks() {
		task, _ := g.Task(id)
		titles[id] = task.Title
		if titles[id] == "" {
			titles[id] = id
		}
	}

	// Successors per task, deduplicated across edge types.
	children := make(map[string][]string)
	for _, id := range g.Tasks() {
		seen := make(map[string]bool)
		for _, e := range g.SuccessorsOf(id) {
			if !seen[e.SuccessorID] {
				seen[e.SuccessorID] = true
				children[id] = append(children[id], e.SuccessorID)
			}
		}
		sort.Strings(children[id])
	}

	var sb strings.Builder
	for wi, w := range a.Waves {
		if wi > 0 {
			sb.WriteByte('\n')
		}
		waveLabel := fmt.Sprintf("Wave %d (day %s): ", w.Index+1, formatDays(w.EarliestStart))
		sb.WriteString(r.apply(waveLabel, styleMuted.Render))

		for ni, id := range w.TaskIDs {
			if ni > 0 {
				sb.WriteString(strings.Repeat(" ", len(waveLabel)))
			}
			critical := a.Timings[id].IsCritical
			node := r.node(titles[id], critical)
			sb.WriteString(node)

			for ci, childID := range children[id] {
				sb.WriteString(" → ")
				sb.WriteString(r.node(titles[childID], a.Timings[childID].IsCritical))
				if ci < len(children[id])-1 {
					sb.WriteByte('\n')
					sb.WriteString(strings.Repeat(" ", len(waveLabel)+lipgloss.Width(node)))
				}
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// node renders a single task in compact form: [title].
func (r *WaveRenderer) node(title string, critical bool) string {
	text := "[" + title + "]"
	if !r.UseColor {
		if critical {
			return text + "*"
		}
		return text
	}
	if critical {
		return styleCritical.Render(text)
	}
	return text
}

func (r *WaveRenderer) apply(text string, style func(...string) string) string {
	if !r.UseColor {
		return text
	}
	return style(text)
}
