package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/critpath/internal/dag"
	"github.com/papapumpkin/critpath/internal/manifest"
	"github.com/papapumpkin/critpath/internal/project"
	"github.com/papapumpkin/critpath/internal/store"
	"github.com/papapumpkin/critpath/internal/ui"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage projects stored in the SQLite database",
	Long: `Projects imported into the database are edited one dependency at a time.
Each change is validated against the stored graph before it is written,
and concurrent writers to the same project are serialised.`,
}

var dbImportCmd = &cobra.Command{
	Use:   "import [manifest]",
	Short: "Replace a stored project with the contents of a manifest",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDBImport,
}

var dbAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a stored project",
	Args:  cobra.NoArgs,
	RunE:  runDBAnalyze,
}

var dbOrderCmd = &cobra.Command{
	Use:   "order",
	Short: "Print a stored project's execution order",
	Args:  cobra.NoArgs,
	RunE:  runDBOrder,
}

var dbAddDepCmd = &cobra.Command{
	Use:   "add-dep <predecessor> <successor>",
	Short: "Add a dependency to a stored project",
	Args:  cobra.ExactArgs(2),
	RunE:  runDBAddDep,
}

var dbRmDepCmd = &cobra.Command{
	Use:   "rm-dep <edge-id>",
	Short: "Remove a dependency from a stored project",
	Args:  cobra.ExactArgs(1),
	RunE:  runDBRmDep,
}

var dbProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List stored projects",
	Args:  cobra.NoArgs,
	RunE:  runDBProjects,
}

func init() {
	dbCmd.PersistentFlags().StringP("project", "p", "", "project ID (default: manifest project name)")
	dbAnalyzeCmd.Flags().String("report", "", "text report: plan, critical, slack or tracks")
	dbAnalyzeCmd.Flags().Bool("json", false, "print the analysis as JSON")
	dbAddDepCmd.Flags().StringP("type", "t", "FS", "dependency type: FS, SS, FF or SF")
	dbAddDepCmd.Flags().String("id", "", "edge ID (default: random UUID)")
	dbCmd.AddCommand(dbImportCmd, dbAnalyzeCmd, dbOrderCmd, dbAddDepCmd, dbRmDepCmd, dbProjectsCmd)
	rootCmd.AddCommand(dbCmd)
}

// dbSession is an open store and the service over it.
type dbSession struct {
	*env
	store *store.SQLiteStore
	svc   *project.Service
}

func openDB(cmd *cobra.Command) (*dbSession, error) {
	e, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(e.cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			e.Close()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	s, err := newDBSession(cmd.Context(), e)
	if err != nil {
		e.Close()
		return nil, err
	}
	return s, nil
}

// newDBSession opens the store at e.cfg.DBPath. Closing the session also
// closes e.
func newDBSession(ctx context.Context, e *env) (*dbSession, error) {
	st, err := store.Open(ctx, e.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	svc := project.NewService(st, project.WithLogger(e.logger), project.WithTelemetry(e.events))
	return &dbSession{env: e, store: st, svc: svc}, nil
}

func (s *dbSession) Close() error {
	return errors.Join(s.store.Close(), s.env.Close())
}

func projectFlag(cmd *cobra.Command) (string, error) {
	id, _ := cmd.Flags().GetString("project")
	if id == "" {
		return "", fmt.Errorf("--project is required")
	}
	return id, nil
}

func runDBImport(cmd *cobra.Command, args []string) error {
	s, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	id, _ := cmd.Flags().GetString("project")
	return s.importManifest(cmd.Context(), cmd.OutOrStdout(), manifestPath(s.env, args), id)
}

// importManifest replaces project id with the manifest at path. An empty id
// is derived from the manifest.
func (s *dbSession) importManifest(ctx context.Context, w io.Writer, path, id string) error {
	m, g, err := loadManifestGraph(path, s.cfg.HoursPerDay)
	if err != nil {
		return err
	}
	if id == "" {
		id = projectIDFor(m, path)
	}
	gen, err := s.store.ImportSnapshot(ctx, id, m.Project.Name, g.Snapshot())
	if err != nil {
		return err
	}
	s.logger.Info("project imported", "project", id, "tasks", g.Len(), "edges", g.EdgeCount(), "generation", gen)
	ui.New(w).Success(fmt.Sprintf("imported %s: %d task(s), %d dependencies", id, g.Len(), g.EdgeCount()))
	return nil
}

// projectIDFor derives a project ID from the manifest name or file name.
func projectIDFor(m *manifest.Manifest, path string) string {
	name := m.Project.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
}

func runDBAnalyze(cmd *cobra.Command, _ []string) error {
	s, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	id, err := projectFlag(cmd)
	if err != nil {
		return err
	}
	report, _ := cmd.Flags().GetString("report")
	asJSON, _ := cmd.Flags().GetBool("json")
	return analyzeStored(cmd.Context(), cmd.OutOrStdout(), s.svc, id, analyzeOptions{Report: report, JSON: asJSON})
}

// analyzeStored renders the analysis of project id. The graph and the
// analysis always come from the same stored generation.
func analyzeStored(ctx context.Context, w io.Writer, svc *project.Service, id string, opts analyzeOptions) error {
	r, err := svc.AnalyzeGraph(ctx, id)
	if err != nil {
		return err
	}
	g, a := r.Graph, r.Analysis
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	p := ui.New(w)
	if opts.Report != "" {
		strategy, err := dag.StrategyByName(opts.Report)
		if err != nil {
			return err
		}
		p.Report(strategy.Render(g, a))
		return nil
	}
	p.Summary(id, a)
	p.Timings(g, a)
	return nil
}

func runDBOrder(cmd *cobra.Command, _ []string) error {
	s, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	id, err := projectFlag(cmd)
	if err != nil {
		return err
	}
	order, err := s.svc.Sequence(cmd.Context(), id)
	if err != nil {
		return err
	}
	for i, taskID := range order {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, taskID)
	}
	return nil
}

func runDBAddDep(cmd *cobra.Command, args []string) error {
	s, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	id, err := projectFlag(cmd)
	if err != nil {
		return err
	}
	typName, _ := cmd.Flags().GetString("type")
	typ, err := dag.ParseDependencyType(typName)
	if err != nil {
		return err
	}
	edgeID, _ := cmd.Flags().GetString("id")
	edge := dag.Edge{ID: edgeID, PredecessorID: args[0], SuccessorID: args[1], Type: typ}

	return s.addDependency(cmd.Context(), cmd.OutOrStdout(), id, edge)
}

func (s *dbSession) addDependency(ctx context.Context, w io.Writer, id string, edge dag.Edge) error {
	p := ui.New(w)
	added, err := s.svc.AddDependency(ctx, id, edge)
	if err != nil {
		if !project.IsInternal(err) {
			p.EdgeRejected(edge, err)
		}
		return err
	}
	p.EdgeAccepted(added)
	return nil
}

func runDBRmDep(cmd *cobra.Command, args []string) error {
	s, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	id, err := projectFlag(cmd)
	if err != nil {
		return err
	}
	return s.removeDependency(cmd.Context(), cmd.OutOrStdout(), id, args[0])
}

func (s *dbSession) removeDependency(ctx context.Context, w io.Writer, id, edgeID string) error {
	if err := s.svc.RemoveDependency(ctx, id, edgeID); err != nil {
		return err
	}
	ui.New(w).Success(fmt.Sprintf("dependency %s removed", edgeID))
	return nil
}

func runDBProjects(cmd *cobra.Command, _ []string) error {
	s, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	projects, err := s.store.Projects(cmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
		return nil
	}
	for _, p := range projects {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tgeneration %d\tcreated %s\n",
			p.ID, p.Name, p.Generation, p.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
