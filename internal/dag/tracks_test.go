package dag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnionFind(t *testing.T) {
	t.Parallel()
	uf := newUnionFind([]string{"a", "b", "c", "d"})
	uf.union("a", "b")
	uf.union("c", "d")
	if uf.find("a") != uf.find("b") {
		t.Error("a and b should share a root")
	}
	if uf.find("a") == uf.find("c") {
		t.Error("a and c should not share a root")
	}
	uf.union("b", "d")
	if uf.find("a") != uf.find("c") {
		t.Error("a and c should be joined transitively")
	}
	if comps := uf.components([]string{"a", "b", "c", "d"}); len(comps) != 1 {
		t.Errorf("components = %v, want 1 group", comps)
	}
}

func TestComputeTracks(t *testing.T) {
	t.Parallel()
	// Two workstreams plus a loner:
	//   api(3) → ui(2)        span 5
	//   db(4) -SS-> etl(1)    span 4
	//   docs(1)               span 1
	g := buildGraph(t, []taskSpec{
		{id: "api", dur: 3}, {id: "ui", dur: 2},
		{id: "db", dur: 4}, {id: "etl", dur: 1},
		{id: "docs", dur: 1},
	}, "api>ui", "db>etl:SS")

	a, err := Analyze(g)
	if err != nil {
		t.Fatal(err)
	}
	tracks := ComputeTracks(g, a)
	if len(tracks) != 3 {
		t.Fatalf("len(tracks) = %d, want 3", len(tracks))
	}

	want := [][]string{{"api", "ui"}, {"db", "etl"}, {"docs"}}
	for i, tr := range tracks {
		if tr.ID != i {
			t.Errorf("track %d has ID %d", i, tr.ID)
		}
		if diff := cmp.Diff(want[i], tr.TaskIDs); diff != "" {
			t.Errorf("track %d members (-want +got):\n%s", i, diff)
		}
	}
	if !tracks[0].IsCritical {
		t.Error("api/ui track should be critical")
	}
	if tracks[1].IsCritical || tracks[2].IsCritical {
		t.Error("only the longest track should be critical")
	}
	if tracks[1].TotalDurationDays != 5 || tracks[1].SpanDays != 4 {
		t.Errorf("db track work=%v span=%v, want 5 and 4", tracks[1].TotalDurationDays, tracks[1].SpanDays)
	}
}

func TestComputeTracks_Empty(t *testing.T) {
	t.Parallel()
	a, err := Analyze(New())
	if err != nil {
		t.Fatal(err)
	}
	if tracks := ComputeTracks(New(), a); tracks != nil {
		t.Errorf("ComputeTracks(empty) = %v, want nil", tracks)
	}
}
