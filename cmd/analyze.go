package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/critpath/internal/dag"
	"github.com/papapumpkin/critpath/internal/manifest"
	"github.com/papapumpkin/critpath/internal/telemetry"
	"github.com/papapumpkin/critpath/internal/ui"
	"github.com/papapumpkin/critpath/internal/watch"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [manifest]",
	Short: "Compute the critical path of a project manifest",
	Long: `Loads a TOML or YAML manifest, validates its dependencies and prints the
critical path analysis: project duration, per-task timings and slack.

With --report, prints one of the text reports (plan, critical, slack, tracks).
With --watch, re-runs the analysis every time the manifest is saved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("report", "", "text report: plan, critical, slack or tracks")
	analyzeCmd.Flags().Bool("json", false, "print the analysis as JSON")
	analyzeCmd.Flags().Bool("waves", false, "also print parallel waves")
	analyzeCmd.Flags().BoolP("watch", "w", false, "re-run when the manifest changes")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeOptions selects the output of analyzeManifest.
type analyzeOptions struct {
	Report string
	JSON   bool
	Waves  bool
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	path := manifestPath(e, args)
	var opts analyzeOptions
	opts.Report, _ = cmd.Flags().GetString("report")
	opts.JSON, _ = cmd.Flags().GetBool("json")
	opts.Waves, _ = cmd.Flags().GetBool("waves")
	watching, _ := cmd.Flags().GetBool("watch")

	out := cmd.OutOrStdout()
	err = analyzeManifest(out, e, path, opts)
	if !watching {
		return err
	}
	if err != nil {
		ui.New(cmd.ErrOrStderr()).Error(err.Error())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return watchManifest(ctx, out, e, path, opts)
}

// analyzeManifest loads, analyzes and prints one manifest.
func analyzeManifest(w io.Writer, e *env, path string, opts analyzeOptions) error {
	m, g, err := loadManifestGraph(path, e.cfg.HoursPerDay)
	if err != nil {
		return err
	}
	a, err := dag.Analyze(g)
	if err != nil {
		if dag.IsInternal(err) {
			e.logger.Error("analysis failed", "manifest", path, "error", err)
			e.record(telemetry.KindInternalError, m.Project.Name, "", map[string]string{"error": err.Error()})
		}
		return fmt.Errorf("analyze %s: %w", path, err)
	}
	e.logger.Debug("analysis done", "manifest", path, "tasks", g.Len(), "edges", g.EdgeCount(),
		"duration_days", a.ProjectDurationDays)
	e.record(telemetry.KindAnalysisDone, m.Project.Name, "", map[string]any{
		"duration_days": a.ProjectDurationDays,
		"critical":      a.CriticalTasks,
	})

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
	p.Summary(m.Project.Name, a)
	p.Timings(g, a)
	if opts.Waves {
		fmt.Fprintln(w)
		fmt.Fprint(w, (&ui.WaveRenderer{}).Render(g, a))
	}
	return nil
}

// watchManifest re-runs analyzeManifest after every settled change until
// ctx is cancelled.
func watchManifest(ctx context.Context, w io.Writer, e *env, path string, opts analyzeOptions) error {
	watcher, err := watch.New(path, e.logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	p := ui.New(w)
	p.Info(fmt.Sprintf("watching %s (ctrl-c to stop)", path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-watcher.Changes:
			if !ok {
				return nil
			}
			if change.Removed {
				p.Info(fmt.Sprintf("%s removed; waiting for it to return", path))
				continue
			}
			e.logger.Debug("manifest changed", "manifest", path, "digest", change.Digest)
			fmt.Fprintln(w)
			if err := analyzeManifest(w, e, path, opts); err != nil {
				if dag.IsInternal(err) {
					return err
				}
				p.Error(err.Error())
			}
		}
	}
}

// loadManifestGraph reads the manifest at path and builds its graph.
func loadManifestGraph(path string, hoursPerDay float64) (*manifest.Manifest, *dag.Graph, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := manifest.Build(m, hoursPerDay)
	if err != nil {
		return nil, nil, err
	}
	return m, g, nil
}

// manifestPath returns the positional manifest argument or the configured
// default.
func manifestPath(e *env, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return e.cfg.ManifestPath
}
