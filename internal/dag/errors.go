package dag

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors. These are caller-recoverable: the caller does not apply
// the edge and may report the rejection to the end user.
var (
	// ErrUnknownTask is returned when an edge references a task ID that is
	// not in the graph's task set.
	ErrUnknownTask = errors.New("unknown task")
	// ErrSelfDependency is returned when an edge would link a task to itself.
	ErrSelfDependency = errors.New("task cannot depend on itself")
	// ErrDuplicateEdge is returned when an edge with the same predecessor,
	// successor and type (or the same edge ID) already exists.
	ErrDuplicateEdge = errors.New("duplicate dependency")
	// ErrCircularDependency is returned when an edge would close a cycle,
	// whether directly or through a chain of any length.
	ErrCircularDependency = errors.New("circular dependency")
	// ErrEdgeNotFound is returned when removing an edge ID that is not present.
	ErrEdgeNotFound = errors.New("dependency not found")
	// ErrDuplicateTask is returned when a task ID is added twice.
	ErrDuplicateTask = errors.New("duplicate task")
	// ErrInvalidDuration is returned for negative or non-finite durations
	// and earliest-start anchors.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidDependencyType is returned for a relationship type outside
	// FS, SS, FF and SF.
	ErrInvalidDependencyType = errors.New("invalid dependency type")
)

// Internal-consistency errors. Seeing one of these means an upstream
// invariant was broken; they must propagate as fatal, never as "bad input".
var (
	// ErrCyclePresent is returned by the sequencer and analyzer when handed
	// a graph that already contains a cycle.
	ErrCyclePresent = errors.New("graph contains a cycle")
	// ErrInconsistentTiming is returned when the backward pass produces
	// negative slack.
	ErrInconsistentTiming = errors.New("inconsistent timing")
)

// ErrStaleSnapshot is returned by a store when a write was validated against
// a generation that is no longer current. The caller reloads and validates
// again.
var ErrStaleSnapshot = errors.New("graph changed since it was validated")

// CycleError reports a rejected edge together with the existing path that
// it would have closed into a cycle.
type CycleError struct {
	Edge Edge
	// Path runs successor → … → predecessor through existing edges.
	Path []string
}

// Error implements error.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%v: %s", ErrCircularDependency, e.Edge)
	}
	return fmt.Sprintf("%v: %s closes path %s", ErrCircularDependency, e.Edge, strings.Join(e.Path, " → "))
}

// Unwrap lets errors.Is match ErrCircularDependency.
func (e *CycleError) Unwrap() error { return ErrCircularDependency }

// TimingError reports a task whose computed slack came out negative.
type TimingError struct {
	TaskID string
	Slack  float64
}

// Error implements error.
func (e *TimingError) Error() string {
	return fmt.Sprintf("%v: task %s has slack %g", ErrInconsistentTiming, e.TaskID, e.Slack)
}

// Unwrap lets errors.Is match ErrInconsistentTiming.
func (e *TimingError) Unwrap() error { return ErrInconsistentTiming }

// IsInternal reports whether err signals a broken engine invariant rather
// than a rejected request.
func IsInternal(err error) bool {
	return errors.Is(err, ErrCyclePresent) || errors.Is(err, ErrInconsistentTiming)
}
