package dag

import (
	"fmt"
	"strings"
	"time"
)

// Priority is an ordinal rank used only for tie-breaking when several tasks
// are ready at once. More urgent priorities sort first; the zero value,
// PriorityNone, sorts after every explicit priority.
type Priority int

// Priority values. Only their rank order matters.
const (
	PriorityNone Priority = iota
	PriorityUrgent
	PriorityHigh
	PriorityMedium
	PriorityLow
)

var priorityNames = [...]string{"none", "urgent", "high", "medium", "low"}

// String returns the lower-case name of the priority.
func (p Priority) String() string {
	if p < PriorityNone || p > PriorityLow {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// Rank returns the sort key of p: urgent is 1, low is 4 and none is 5.
func (p Priority) Rank() int {
	if p == PriorityNone {
		return int(PriorityLow) + 1
	}
	return int(p)
}

// ParsePriority maps a priority name (case-insensitive) to its value. The
// empty string maps to PriorityNone. Numeric ranks 1–4 are also accepted.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityNone, nil
	}
	for i, name := range priorityNames {
		if s == name || s == fmt.Sprint(i) {
			return Priority(i), nil
		}
	}
	return PriorityNone, fmt.Errorf("unknown priority %q", s)
}

// DependencyType is the precedence relationship between a predecessor and a
// successor task. The set is closed: every pass switches over all four.
type DependencyType int

// The four CPM precedence relationships.
const (
	FinishToStart DependencyType = iota + 1
	StartToStart
	FinishToFinish
	StartToFinish
)

// String returns the two-letter abbreviation (FS, SS, FF, SF).
func (t DependencyType) String() string {
	switch t {
	case FinishToStart:
		return "FS"
	case StartToStart:
		return "SS"
	case FinishToFinish:
		return "FF"
	case StartToFinish:
		return "SF"
	}
	return fmt.Sprintf("DependencyType(%d)", int(t))
}

// Valid reports whether t is one of the four known relationship types.
func (t DependencyType) Valid() bool {
	return t >= FinishToStart && t <= StartToFinish
}

// ParseDependencyType accepts the abbreviations (FS, SS, FF, SF) and the long
// snake_case or CamelCase names, case-insensitively. An empty string means
// FinishToStart, the conventional default.
func ParseDependencyType(s string) (DependencyType, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "", "fs", "finishtostart":
		return FinishToStart, nil
	case "ss", "starttostart":
		return StartToStart, nil
	case "ff", "finishtofinish":
		return FinishToFinish, nil
	case "sf", "starttofinish":
		return StartToFinish, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDependencyType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t DependencyType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDependencyType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DependencyType) UnmarshalText(b []byte) error {
	parsed, err := ParseDependencyType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Task is a node in the dependency graph. Tasks are owned by the caller's
// task directory; the graph only reads them.
type Task struct {
	ID           string
	Title        string
	DurationDays float64
	// EarliestStart anchors the task to a day offset from the project
	// epoch. Nil means day 0.
	EarliestStart *float64
	Priority      Priority
	DueDate       *time.Time
}

// earliestPossibleStart returns the calendar anchor, or 0.
func (t *Task) earliestPossibleStart() float64 {
	if t.EarliestStart == nil {
		return 0
	}
	return *t.EarliestStart
}

// Edge is a typed precedence link: Successor is constrained by Predecessor.
type Edge struct {
	ID            string         `json:"id"`
	PredecessorID string         `json:"predecessor"`
	SuccessorID   string         `json:"successor"`
	Type          DependencyType `json:"type"`
}

// String renders the edge as "pred -FS-> succ".
func (e Edge) String() string {
	return fmt.Sprintf("%s -%s-> %s", e.PredecessorID, e.Type, e.SuccessorID)
}

// edgeKey identifies an edge by its semantic content, independent of ID.
type edgeKey struct {
	pred, succ string
	typ        DependencyType
}

func (e Edge) key() edgeKey {
	return edgeKey{pred: e.PredecessorID, succ: e.SuccessorID, typ: e.Type}
}

// TaskTiming is the computed schedule of one task. It is an output value and
// is never stored on the graph.
type TaskTiming struct {
	TaskID         string  `json:"task"`
	EarliestStart  float64 `json:"earliest_start"`
	EarliestFinish float64 `json:"earliest_finish"`
	LatestStart    float64 `json:"latest_start"`
	LatestFinish   float64 `json:"latest_finish"`
	Slack          float64 `json:"slack"`
	IsCritical     bool    `json:"critical"`
	Wave           int     `json:"wave"`
}

// Analysis is the result of a critical path run over one graph snapshot.
type Analysis struct {
	ProjectDurationDays float64               `json:"project_duration_days"`
	Timings             map[string]TaskTiming `json:"timings"`
	// CriticalTasks lists zero-slack tasks in execution order.
	CriticalTasks []string `json:"critical_tasks"`
	// SlackTasks lists the remaining tasks by ascending slack, then ID.
	SlackTasks []string `json:"slack_tasks"`
	// Order is the deterministic suggested execution sequence.
	Order []string `json:"order"`
	Waves []Wave   `json:"waves"`
}

// Timing returns the timing for id and whether it exists.
func (a *Analysis) Timing(id string) (TaskTiming, bool) {
	tt, ok := a.Timings[id]
	return tt, ok
}

// Wave groups tasks that share the same earliest start and so may run in
// parallel.
type Wave struct {
	Index         int      `json:"index"`
	EarliestStart float64  `json:"earliest_start"`
	TaskIDs       []string `json:"tasks"`
	IsCritical    bool     `json:"critical"` // true if the wave holds a critical task
}
