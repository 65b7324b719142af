package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/papapumpkin/critpath/internal/dag"
	"github.com/papapumpkin/critpath/internal/logging"
	"github.com/papapumpkin/critpath/internal/telemetry"
)

// testSession opens a session over a fresh database file, or over dbPath
// when one is given.
func testSession(t *testing.T, dbPath string) *dbSession {
	t.Helper()
	if dbPath == "" {
		dbPath = filepath.Join(t.TempDir(), "critpath.db")
	}
	e := testEnv(t)
	e.cfg.DBPath = dbPath
	s, err := newDBSession(context.Background(), e)
	if err != nil {
		t.Fatalf("newDBSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func storedAnalysis(t *testing.T, s *dbSession) dag.Analysis {
	t.Helper()
	var buf bytes.Buffer
	if err := analyzeStored(context.Background(), &buf, s.svc, "launch", analyzeOptions{JSON: true}); err != nil {
		t.Fatalf("analyzeStored: %v", err)
	}
	var a dag.Analysis
	if err := json.Unmarshal(buf.Bytes(), &a); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	return a
}

func generationOf(t *testing.T, s *dbSession) uint64 {
	t.Helper()
	gen, err := s.store.Generation(context.Background(), "launch")
	if err != nil {
		t.Fatal(err)
	}
	return gen
}

func TestDBSession_Workflow(t *testing.T) {
	t.Parallel()
	s := testSession(t, "")
	ctx := context.Background()

	var out bytes.Buffer
	if err := s.importManifest(ctx, &out, writeManifest(t), ""); err != nil {
		t.Fatalf("importManifest: %v", err)
	}
	if !strings.Contains(out.String(), "imported launch: 3 task(s), 2 dependencies") {
		t.Errorf("import output = %q", out.String())
	}
	if a := storedAnalysis(t, s); a.ProjectDurationDays != 5 {
		t.Fatalf("duration after import = %v, want 5", a.ProjectDurationDays)
	}
	imported := generationOf(t, s)

	t.Run("cycle rejected", func(t *testing.T) {
		out.Reset()
		err := s.addDependency(ctx, &out, "launch", dag.Edge{PredecessorID: "docs", SuccessorID: "design", Type: dag.FinishToStart})
		if !errors.Is(err, dag.ErrCircularDependency) {
			t.Fatalf("err = %v, want ErrCircularDependency", err)
		}
		if !strings.Contains(out.String(), "rejected") {
			t.Errorf("output = %q, want a rejection", out.String())
		}
		if gen := generationOf(t, s); gen != imported {
			t.Errorf("generation = %d after rejection, want %d", gen, imported)
		}
		g, _, err := s.svc.Graph(ctx, "launch")
		if err != nil {
			t.Fatal(err)
		}
		if g.EdgeCount() != 2 {
			t.Errorf("stored %d edges after rejection, want 2", g.EdgeCount())
		}
	})

	t.Run("accepted edge refreshes analysis", func(t *testing.T) {
		out.Reset()
		edge := dag.Edge{ID: "build-docs", PredecessorID: "build", SuccessorID: "docs", Type: dag.FinishToStart}
		if err := s.addDependency(ctx, &out, "launch", edge); err != nil {
			t.Fatalf("addDependency: %v", err)
		}
		if gen := generationOf(t, s); gen != imported+1 {
			t.Errorf("generation = %d, want %d", gen, imported+1)
		}
		a := storedAnalysis(t, s)
		if a.ProjectDurationDays <= 5 {
			t.Errorf("duration = %v, want docs pushed past build", a.ProjectDurationDays)
		}
		if docs, build := a.Timings["docs"], a.Timings["build"]; docs.EarliestStart < build.EarliestFinish {
			t.Errorf("docs starts at %v before build finishes at %v", docs.EarliestStart, build.EarliestFinish)
		}

		out.Reset()
		if err := s.removeDependency(ctx, &out, "launch", "build-docs"); err != nil {
			t.Fatalf("removeDependency: %v", err)
		}
		if a := storedAnalysis(t, s); a.ProjectDurationDays != 5 {
			t.Errorf("duration after removal = %v, want 5", a.ProjectDurationDays)
		}
	})

	t.Run("re-import refreshes analysis", func(t *testing.T) {
		before := storedAnalysis(t, s)
		if _, ok := before.Timings["docs"]; !ok {
			t.Fatal("docs missing before re-import")
		}
		var buf bytes.Buffer
		if err := analyzeStored(ctx, &buf, s.svc, "launch", analyzeOptions{Report: "plan"}); err != nil {
			t.Fatalf("plan report: %v", err)
		}
		if err := s.importManifest(ctx, &out, writeManifest(t), "launch"); err != nil {
			t.Fatal(err)
		}
		if gen := generationOf(t, s); gen <= imported+2 {
			t.Errorf("generation = %d after re-import, want > %d", gen, imported+2)
		}
		if a := storedAnalysis(t, s); a.ProjectDurationDays != 5 || len(a.Timings) != 3 {
			t.Errorf("after re-import: duration %v, %d tasks", a.ProjectDurationDays, len(a.Timings))
		}
	})
}

func TestDBSession_OppositeEdgesFromTwoSessions(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	first := testSession(t, dbPath)
	var out bytes.Buffer
	if err := first.importManifest(context.Background(), &out, writeManifest(t), ""); err != nil {
		t.Fatal(err)
	}
	sessions := []*dbSession{first, testSession(t, dbPath)}
	edges := []dag.Edge{
		{PredecessorID: "build", SuccessorID: "docs", Type: dag.FinishToStart},
		{PredecessorID: "docs", SuccessorID: "build", Type: dag.FinishToStart},
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var buf bytes.Buffer
			errs[i] = sessions[i].addDependency(context.Background(), &buf, "launch", edges[i])
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case !errors.Is(err, dag.ErrCircularDependency):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted %d edges, want 1 (errs %v)", accepted, errs)
	}
	for _, s := range sessions {
		a := storedAnalysis(t, s)
		if len(a.Order) != 3 {
			t.Errorf("order = %v, want all three tasks", a.Order)
		}
	}
}

func TestRecord_TelemetryFailureIsLogged(t *testing.T) {
	t.Parallel()
	events, err := telemetry.NewEmitter(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if err := events.Close(); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	e := testEnv(t)
	e.events = events
	e.logger = logging.New(logging.Options{Output: &logs})

	var buf bytes.Buffer
	if err := analyzeManifest(&buf, e, writeManifest(t), analyzeOptions{}); err != nil {
		t.Fatalf("analyzeManifest: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "telemetry write failed") {
		t.Errorf("logs = %q, want a telemetry warning", out)
	}
}
