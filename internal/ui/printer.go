// Package ui renders analyses, rejections and progress messages for the
// terminal with lipgloss styling.
package ui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/papapumpkin/critpath/internal/dag"
)

// Printer writes styled output to a single writer.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Info prints a de-emphasized status line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, styleMuted.Render(msg))
}

// Success prints a confirmation line.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, styleOK.Render("✓ ")+msg)
}

// Error prints an error line.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.w, styleError.Render("error: ")+msg)
}

// EdgeAccepted confirms a dependency was stored.
func (p *Printer) EdgeAccepted(e dag.Edge) {
	p.Success(fmt.Sprintf("dependency %s added (%s)", e, e.ID))
}

// EdgeRejected explains why a dependency was refused. Cycle rejections
// show the existing path the edge would have closed.
func (p *Printer) EdgeRejected(e dag.Edge, err error) {
	fmt.Fprintln(p.w, styleError.Render("✗ rejected ")+e.String())
	var cycle *dag.CycleError
	if errors.As(err, &cycle) && len(cycle.Path) > 0 {
		path := append(append([]string{}, cycle.Path...), cycle.Path[0])
		fmt.Fprintln(p.w, "  "+styleMuted.Render("would create cycle: ")+strings.Join(path, " → "))
		return
	}
	fmt.Fprintln(p.w, "  "+styleMuted.Render(err.Error()))
}

// Summary prints the headline numbers of an analysis.
func (p *Printer) Summary(name string, a *dag.Analysis) {
	if name == "" {
		name = "project"
	}
	fmt.Fprintln(p.w, styleHeading.Render(name))
	fmt.Fprintf(p.w, "  duration:  %s days\n", formatDays(a.ProjectDurationDays))
	fmt.Fprintf(p.w, "  tasks:     %d (%s critical)\n", len(a.Order),
		styleCritical.Render(strconv.Itoa(len(a.CriticalTasks))))
	if len(a.CriticalTasks) > 0 {
		fmt.Fprintf(p.w, "  critical:  %s\n", strings.Join(a.CriticalTasks, " → "))
	}
}

// Timings prints one table row per task in execution order. Critical rows
// are highlighted and slack is colored.
func (p *Printer) Timings(g *dag.Graph, a *dag.Analysis) {
	if len(a.Order) == 0 {
		p.Info("No tasks in graph.")
		return
	}
	rows := make([][]string, 0, len(a.Order))
	critical := make([]bool, 0, len(a.Order))
	for i, id := range a.Order {
		tt := a.Timings[id]
		task, _ := g.Task(id)
		title := task.Title
		if title == "" {
			title = id
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			title,
			formatDays(task.DurationDays),
			formatDays(tt.EarliestStart),
			formatDays(tt.EarliestFinish),
			formatDays(tt.LatestStart),
			formatDays(tt.LatestFinish),
			formatDays(tt.Slack),
		})
		critical = append(critical, tt.IsCritical)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styleBorder).
		Headers("#", "Task", "Dur", "ES", "EF", "LS", "LF", "Slack").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleHeading.Padding(0, 1)
			case critical[row]:
				return styleCritical.Padding(0, 1)
			case col == 7:
				return styleSlack.Padding(0, 1)
			}
			return styleCell
		})
	fmt.Fprintln(p.w, t.Render())
}

// Report prints a pre-rendered text report.
func (p *Printer) Report(text string) {
	fmt.Fprint(p.w, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(p.w)
	}
}

// formatDays renders a day count to two decimals without trailing zeros.
func formatDays(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
