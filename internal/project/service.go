// Package project hosts dependency graphs behind a persistence boundary.
// Mutations for one project are serialised and validated against a fresh
// snapshot before anything is written; reads never take the writer lock
// and reuse a cached analysis while the project's generation is unchanged.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/papapumpkin/critpath/internal/dag"
	"github.com/papapumpkin/critpath/internal/logging"
	"github.com/papapumpkin/critpath/internal/telemetry"
)

// ErrCorruptSnapshot is returned when stored state cannot be rebuilt into an
// acyclic graph. It is an internal error; see IsInternal.
var ErrCorruptSnapshot = errors.New("stored graph is inconsistent")

// Store is the task directory and edge store for many projects. Every
// mutation returns the project's new generation. InsertEdge must refuse with
// dag.ErrStaleSnapshot when the project is no longer at validatedAt, since
// other processes may write the same store.
type Store interface {
	LoadSnapshot(ctx context.Context, projectID string) (dag.Snapshot, uint64, error)
	UpsertTask(ctx context.Context, projectID string, t dag.Task) (uint64, error)
	InsertEdge(ctx context.Context, projectID string, validatedAt uint64, e dag.Edge) (uint64, error)
	DeleteEdge(ctx context.Context, projectID, edgeID string) (uint64, error)
}

// maxCommitAttempts bounds how often AddDependency reloads after losing a
// race with another writer.
const maxCommitAttempts = 5

// IsInternal reports whether err signals a broken invariant rather than a
// rejected request.
func IsInternal(err error) bool {
	return dag.IsInternal(err) || errors.Is(err, ErrCorruptSnapshot)
}

// Analyzed pairs an analysis with the graph it was computed from.
type Analyzed struct {
	Generation uint64
	Graph      *dag.Graph
	Analysis   *dag.Analysis
}

// Service coordinates graph operations over a Store.
type Service struct {
	store  Store
	logger *slog.Logger
	events *telemetry.Emitter
	newID  func() string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	cacheMu sync.Mutex
	cache   map[string]*Analyzed
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. The default discards records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = logging.OrDiscard(l) }
}

// WithTelemetry sets the event emitter. A nil emitter is a no-op.
func WithTelemetry(e *telemetry.Emitter) Option {
	return func(s *Service) { s.events = e }
}

// WithIDGenerator overrides how IDs are assigned to edges added without one.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService returns a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logging.Discard(),
		newID:  uuid.NewString,
		locks:  make(map[string]*sync.Mutex),
		cache:  make(map[string]*Analyzed),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock acquires the single-writer lock for projectID and returns its release.
func (s *Service) lock(projectID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[projectID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[projectID] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Graph loads a fresh graph for projectID together with its generation.
func (s *Service) Graph(ctx context.Context, projectID string) (*dag.Graph, uint64, error) {
	snap, gen, err := s.store.LoadSnapshot(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	g, err := s.rebuild(projectID, snap)
	if err != nil {
		return nil, 0, err
	}
	return g, gen, nil
}

func (s *Service) rebuild(projectID string, snap dag.Snapshot) (*dag.Graph, error) {
	g, err := dag.FromSnapshot(snap)
	if err != nil {
		s.internal(projectID, "load", err)
		return nil, fmt.Errorf("project: %s: %w: %w", projectID, ErrCorruptSnapshot, err)
	}
	return g, nil
}

// AddDependency validates e against the project's current graph and, only if
// it is accepted, writes it to the store. An empty e.ID is replaced with a
// generated one. Rejections return the engine's validation error and leave
// the store untouched. When another writer changes the project between
// validation and the write, the graph is reloaded and e validated again.
func (s *Service) AddDependency(ctx context.Context, projectID string, e dag.Edge) (dag.Edge, error) {
	unlock := s.lock(projectID)
	defer unlock()

	if e.ID == "" {
		e.ID = s.newID()
	}
	var err error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		var added bool
		added, err = s.addDependency(ctx, projectID, e)
		if added {
			return e, nil
		}
		if !errors.Is(err, dag.ErrStaleSnapshot) {
			return dag.Edge{}, err
		}
		s.logger.Debug("graph changed during add, reloading", "project", projectID, "edge", e.String(), "attempt", attempt)
	}
	return dag.Edge{}, fmt.Errorf("project: add %s to %s: %w", e, projectID, err)
}

func (s *Service) addDependency(ctx context.Context, projectID string, e dag.Edge) (bool, error) {
	g, gen, err := s.Graph(ctx, projectID)
	if err != nil {
		return false, err
	}
	if err := g.AddEdge(e); err != nil {
		s.logger.Info("dependency rejected", "project", projectID, "edge", e.String(), "error", err)
		s.emit(telemetry.KindEdgeRejected, projectID, e.SuccessorID, edgeData(e, err))
		return false, err
	}

	next, err := s.store.InsertEdge(ctx, projectID, gen, e)
	if err != nil {
		return false, err
	}
	s.invalidate(projectID)
	s.logger.Debug("dependency added", "project", projectID, "edge", e.String(), "id", e.ID, "generation", next)
	s.emit(telemetry.KindEdgeAdded, projectID, e.SuccessorID, edgeData(e, nil))
	return true, nil
}

// RemoveDependency deletes an edge by ID.
func (s *Service) RemoveDependency(ctx context.Context, projectID, edgeID string) error {
	unlock := s.lock(projectID)
	defer unlock()

	gen, err := s.store.DeleteEdge(ctx, projectID, edgeID)
	if err != nil {
		return err
	}
	s.invalidate(projectID)
	s.logger.Debug("dependency removed", "project", projectID, "id", edgeID, "generation", gen)
	s.emit(telemetry.KindEdgeRemoved, projectID, "", map[string]string{"id": edgeID})
	return nil
}

// UpsertTask inserts or replaces a task after checking its duration and
// anchor.
func (s *Service) UpsertTask(ctx context.Context, projectID string, t dag.Task) error {
	if err := dag.New().AddTask(t); err != nil {
		return err
	}
	unlock := s.lock(projectID)
	defer unlock()

	gen, err := s.store.UpsertTask(ctx, projectID, t)
	if err != nil {
		return err
	}
	s.invalidate(projectID)
	s.logger.Debug("task upserted", "project", projectID, "task", t.ID, "generation", gen)
	s.emit(telemetry.KindTaskUpserted, projectID, t.ID, map[string]any{"duration_days": t.DurationDays})
	return nil
}

// Analyze returns the critical path analysis of the project's current state.
// Results are cached per generation and shared between callers, who must
// treat them as read-only.
func (s *Service) Analyze(ctx context.Context, projectID string) (*dag.Analysis, error) {
	r, err := s.AnalyzeGraph(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return r.Analysis, nil
}

// AnalyzeGraph is Analyze but also returns the graph the analysis was
// computed from, so callers can render both without reading the store twice.
func (s *Service) AnalyzeGraph(ctx context.Context, projectID string) (*Analyzed, error) {
	snap, gen, err := s.store.LoadSnapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	c, ok := s.cache[projectID]
	s.cacheMu.Unlock()
	if ok && c.Generation == gen {
		return c, nil
	}

	g, err := s.rebuild(projectID, snap)
	if err != nil {
		return nil, err
	}
	a, err := dag.Analyze(g)
	if err != nil {
		if dag.IsInternal(err) {
			s.internal(projectID, "analyze", err)
		}
		return nil, fmt.Errorf("project: analyze %s: %w", projectID, err)
	}
	r := &Analyzed{Generation: gen, Graph: g, Analysis: a}

	s.cacheMu.Lock()
	if cur, ok := s.cache[projectID]; !ok || cur.Generation <= gen {
		s.cache[projectID] = r
	}
	s.cacheMu.Unlock()

	s.logger.Debug("analysis done", "project", projectID, "generation", gen,
		"duration_days", a.ProjectDurationDays, "critical", len(a.CriticalTasks))
	s.emit(telemetry.KindAnalysisDone, projectID, "", map[string]any{
		"generation":    gen,
		"duration_days": a.ProjectDurationDays,
		"critical":      a.CriticalTasks,
	})
	return r, nil
}

// Sequence returns the project's suggested execution order.
func (s *Service) Sequence(ctx context.Context, projectID string) ([]string, error) {
	g, _, err := s.Graph(ctx, projectID)
	if err != nil {
		return nil, err
	}
	order, err := dag.TopologicalOrder(g)
	if err != nil {
		s.internal(projectID, "sequence", err)
		return nil, fmt.Errorf("project: sequence %s: %w", projectID, err)
	}
	return order, nil
}

func (s *Service) invalidate(projectID string) {
	s.cacheMu.Lock()
	delete(s.cache, projectID)
	s.cacheMu.Unlock()
}

func (s *Service) internal(projectID, op string, err error) {
	s.logger.Error("internal graph error", "project", projectID, "op", op, "error", err)
	s.emit(telemetry.KindInternalError, projectID, "", map[string]string{"op": op, "error": err.Error()})
}

func (s *Service) emit(kind, projectID, taskID string, data any) {
	if err := s.events.Record(kind, projectID, taskID, data); err != nil {
		s.logger.Warn("telemetry write failed", "kind", kind, "error", err)
	}
}

func edgeData(e dag.Edge, err error) map[string]string {
	m := map[string]string{
		"id":          e.ID,
		"predecessor": e.PredecessorID,
		"successor":   e.SuccessorID,
		"type":        e.Type.String(),
	}
	if err != nil {
		m["reason"] = err.Error()
	}
	return m
}
