package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/critpath/internal/dag"
)

const sampleTOML = `
[project]
name = "launch"
start = "2026-01-05"

[[task]]
id = "design"
title = "Design"
duration_days = 2.0
priority = "high"

[[task]]
id = "build"
estimate_hours = 24.0
depends_on = ["design"]

[[task]]
id = "docs"
start = "2026-01-07"
due = "2026-01-09"

[[dependency]]
predecessor = "design"
successor = "docs"
type = "SS"
`

const sampleYAML = `
project:
  name: launch
  start: "2026-01-05"
tasks:
  - id: design
    title: Design
    duration_days: 2
    priority: high
  - id: build
    estimate_hours: 24
    depends_on: [design]
  - id: docs
    start: "2026-01-07"
    due: "2026-01-09"
dependencies:
  - predecessor: design
    successor: docs
    type: SS
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ptr(v float64) *float64 { return &v }

func TestLoad_Formats(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "plan.toml", sampleTOML},
		{"yaml", "plan.yaml", sampleYAML},
		{"yml", "plan.yml", sampleYAML},
	}
	want := &Manifest{
		Project: Project{Name: "launch", Start: "2026-01-05"},
		Tasks: []TaskSpec{
			{ID: "design", Title: "Design", DurationDays: ptr(2), Priority: "high"},
			{ID: "build", EstimateHours: ptr(24), DependsOn: []string{"design"}},
			{ID: "docs", Start: "2026-01-07", Due: "2026-01-09"},
		},
		Dependencies: []DependencySpec{{Predecessor: "design", Successor: "docs", Type: "SS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if diff := cmp.Diff(want, m); diff != "" {
				t.Errorf("manifest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	if _, err := Load(writeFile(t, "plan.json", "{}")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("json: err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing: err = %v, want ErrNotExist", err)
	}
	if _, err := Load(writeFile(t, "bad.toml", "[[task]\nid=")); err == nil {
		t.Error("malformed toml: expected error")
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()
	m, err := Load(writeFile(t, "plan.toml", sampleTOML))
	if err != nil {
		t.Fatal(err)
	}
	g, err := Build(m, 8)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	build, _ := g.Task("build")
	if build.DurationDays != 3 {
		t.Errorf("build duration = %v, want 3 (24h / 8h)", build.DurationDays)
	}
	docs, _ := g.Task("docs")
	if docs.DurationDays != 2 {
		t.Errorf("docs duration = %v, want 2 (due - start)", docs.DurationDays)
	}
	if docs.EarliestStart == nil || *docs.EarliestStart != 2 {
		t.Errorf("docs earliest start = %v, want 2", docs.EarliestStart)
	}
	if docs.DueDate == nil || docs.DueDate.Day() != 9 {
		t.Errorf("docs due = %v", docs.DueDate)
	}
	design, _ := g.Task("design")
	if design.Priority != dag.PriorityHigh {
		t.Errorf("design priority = %v, want high", design.Priority)
	}

	wantEdges := []dag.Edge{
		{ID: "design->build/FS", PredecessorID: "design", SuccessorID: "build", Type: dag.FinishToStart},
		{ID: "design->docs/SS", PredecessorID: "design", SuccessorID: "docs", Type: dag.StartToStart},
	}
	if diff := cmp.Diff(wantEdges, g.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_DependsOnDirection(t *testing.T) {
	t.Parallel()
	m := &Manifest{Tasks: []TaskSpec{
		{ID: "a", DurationDays: ptr(1)},
		{ID: "b", DurationDays: ptr(1), DependsOn: []string{"a"}},
	}}
	g, err := Build(m, 8)
	if err != nil {
		t.Fatal(err)
	}
	succ := g.SuccessorsOf("a")
	if len(succ) != 1 || succ[0].SuccessorID != "b" {
		t.Errorf("SuccessorsOf(a) = %v, want one edge to b", succ)
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		m    *Manifest
		want error
	}{
		{
			name: "cycle via depends_on",
			m: &Manifest{Tasks: []TaskSpec{
				{ID: "a", DependsOn: []string{"b"}},
				{ID: "b", DependsOn: []string{"a"}},
			}},
			want: dag.ErrCircularDependency,
		},
		{
			name: "unknown dependency",
			m:    &Manifest{Tasks: []TaskSpec{{ID: "a", DependsOn: []string{"ghost"}}}},
			want: dag.ErrUnknownTask,
		},
		{
			name: "duplicate task",
			m:    &Manifest{Tasks: []TaskSpec{{ID: "a"}, {ID: "a"}}},
			want: dag.ErrDuplicateTask,
		},
		{
			name: "negative duration",
			m:    &Manifest{Tasks: []TaskSpec{{ID: "a", DurationDays: ptr(-1)}}},
			want: dag.ErrInvalidDuration,
		},
		{
			name: "due before start",
			m:    &Manifest{Tasks: []TaskSpec{{ID: "a", Start: "2026-02-02", Due: "2026-02-01"}}},
			want: dag.ErrInvalidDuration,
		},
		{
			name: "missing id",
			m:    &Manifest{Tasks: []TaskSpec{{Title: "nameless"}}},
			want: ErrInvalidTask,
		},
		{
			name: "bad priority",
			m:    &Manifest{Tasks: []TaskSpec{{ID: "a", Priority: "whenever"}}},
			want: ErrInvalidTask,
		},
		{
			name: "bad date",
			m:    &Manifest{Tasks: []TaskSpec{{ID: "a", Due: "next week"}}},
			want: ErrInvalidTask,
		},
		{
			name: "bad dependency type",
			m: &Manifest{
				Tasks:        []TaskSpec{{ID: "a"}, {ID: "b"}},
				Dependencies: []DependencySpec{{Predecessor: "a", Successor: "b", Type: "XX"}},
			},
			want: dag.ErrInvalidDependencyType,
		},
		{
			name: "self dependency",
			m: &Manifest{
				Tasks:        []TaskSpec{{ID: "a"}},
				Dependencies: []DependencySpec{{Predecessor: "a", Successor: "a"}},
			},
			want: dag.ErrSelfDependency,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Build(tt.m, 8); !errors.Is(err, tt.want) {
				t.Errorf("Build() err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()
	m := &Manifest{
		Project: Project{Name: "rt"},
		Tasks: []TaskSpec{
			{ID: "a", DurationDays: ptr(1.5), Priority: "urgent"},
			{ID: "b", EstimateHours: ptr(4), DependsOn: []string{"a"}},
		},
		Dependencies: []DependencySpec{{ID: "x", Predecessor: "a", Successor: "b", Type: "FF"}},
	}
	for _, name := range []string{"out.toml", "out.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := Save(path, m); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if diff := cmp.Diff(m, got); diff != "" {
			t.Errorf("%s round trip mismatch (-want +got):\n%s", name, diff)
		}
		entries, _ := os.ReadDir(filepath.Dir(path))
		if len(entries) != 1 {
			t.Errorf("%s: temp files left behind: %d entries", name, len(entries))
		}
	}
}

func TestAddDependency(t *testing.T) {
	t.Parallel()
	m := &Manifest{Tasks: []TaskSpec{
		{ID: "task1", DurationDays: ptr(1)},
		{ID: "task2", DurationDays: ptr(1), DependsOn: []string{"task1"}},
		{ID: "task3", DurationDays: ptr(1), DependsOn: []string{"task2"}},
	}}

	_, err := AddDependency(m, 8, DependencySpec{Predecessor: "task3", Successor: "task1"})
	var cycle *dag.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("AddDependency(task3 -> task1) err = %v, want CycleError", err)
	}
	if diff := cmp.Diff([]string{"task1", "task2", "task3"}, cycle.Path); diff != "" {
		t.Errorf("cycle path mismatch (-want +got):\n%s", diff)
	}
	if len(m.Dependencies) != 0 {
		t.Errorf("rejected dependency was recorded: %v", m.Dependencies)
	}

	e, err := AddDependency(m, 8, DependencySpec{Predecessor: "task1", Successor: "task3", Type: "start_to_start"})
	if err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if e.ID != "task1->task3/SS" {
		t.Errorf("edge id = %q", e.ID)
	}
	want := []DependencySpec{{ID: "task1->task3/SS", Predecessor: "task1", Successor: "task3", Type: "SS"}}
	if diff := cmp.Diff(want, m.Dependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveDependency(t *testing.T) {
	t.Parallel()
	m := &Manifest{
		Tasks: []TaskSpec{
			{ID: "a"},
			{ID: "b", DependsOn: []string{"a"}},
			{ID: "c"},
		},
		Dependencies: []DependencySpec{
			{Predecessor: "b", Successor: "c", Type: "FF"},
			{ID: "named", Predecessor: "a", Successor: "c"},
		},
	}

	for _, id := range []string{"b->c/FF", "named", "a->b/FS"} {
		if err := RemoveDependency(m, id); err != nil {
			t.Errorf("RemoveDependency(%s): %v", id, err)
		}
	}
	if len(m.Dependencies) != 0 || len(m.Task("b").DependsOn) != 0 {
		t.Errorf("edges remain: deps=%v depends_on=%v", m.Dependencies, m.Task("b").DependsOn)
	}
	if err := RemoveDependency(m, "a->b/FS"); !errors.Is(err, dag.ErrEdgeNotFound) {
		t.Errorf("second remove err = %v, want ErrEdgeNotFound", err)
	}
}
