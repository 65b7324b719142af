package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/critpath/internal/dag"
	"github.com/papapumpkin/critpath/internal/manifest"
	"github.com/papapumpkin/critpath/internal/telemetry"
	"github.com/papapumpkin/critpath/internal/ui"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Add or remove dependencies in a manifest",
}

var depAddCmd = &cobra.Command{
	Use:   "add <predecessor> <successor>",
	Short: "Add a dependency; refused if it would create a cycle",
	Args:  cobra.ExactArgs(2),
	RunE:  runDepAdd,
}

var depRmCmd = &cobra.Command{
	Use:   "rm <edge-id>",
	Short: "Remove a dependency by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepRm,
}

func init() {
	for _, c := range []*cobra.Command{depAddCmd, depRmCmd} {
		c.Flags().StringP("manifest", "m", "", "manifest file (default from config)")
	}
	depAddCmd.Flags().StringP("type", "t", "FS", "dependency type: FS, SS, FF or SF")
	depAddCmd.Flags().String("id", "", "edge ID (default pred->succ/TYPE)")
	depCmd.AddCommand(depAddCmd, depRmCmd)
	rootCmd.AddCommand(depCmd)
}

func depManifestPath(cmd *cobra.Command, e *env) string {
	if p, _ := cmd.Flags().GetString("manifest"); p != "" {
		return p
	}
	return e.cfg.ManifestPath
}

func runDepAdd(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	typ, _ := cmd.Flags().GetString("type")
	id, _ := cmd.Flags().GetString("id")
	spec := manifest.DependencySpec{ID: id, Predecessor: args[0], Successor: args[1], Type: typ}
	return addManifestDependency(cmd.OutOrStdout(), e, depManifestPath(cmd, e), spec)
}

// addManifestDependency validates spec through the engine and saves the
// manifest only if it is accepted.
func addManifestDependency(w io.Writer, e *env, path string, spec manifest.DependencySpec) error {
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	printer := ui.New(w)
	edge, err := manifest.AddDependency(m, e.cfg.HoursPerDay, spec)
	if err != nil {
		attempted := dag.Edge{ID: spec.ID, PredecessorID: spec.Predecessor, SuccessorID: spec.Successor}
		attempted.Type, _ = dag.ParseDependencyType(spec.Type)
		printer.EdgeRejected(attempted, err)
		e.logger.Info("dependency rejected", "manifest", path, "edge", attempted.String(), "error", err)
		e.record(telemetry.KindEdgeRejected, m.Project.Name, spec.Successor, map[string]string{"reason": err.Error()})
		return fmt.Errorf("dependency %s -> %s rejected: %w", spec.Predecessor, spec.Successor, err)
	}
	if err := manifest.Save(path, m); err != nil {
		return err
	}
	printer.EdgeAccepted(edge)
	e.record(telemetry.KindEdgeAdded, m.Project.Name, edge.SuccessorID, map[string]string{"id": edge.ID})
	return nil
}

func runDepRm(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()
	return removeManifestDependency(cmd.OutOrStdout(), e, depManifestPath(cmd, e), args[0])
}

func removeManifestDependency(w io.Writer, e *env, path, edgeID string) error {
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if err := manifest.RemoveDependency(m, edgeID); err != nil {
		return err
	}
	if err := manifest.Save(path, m); err != nil {
		return err
	}
	ui.New(w).Success(fmt.Sprintf("dependency %s removed", edgeID))
	e.record(telemetry.KindEdgeRemoved, m.Project.Name, "", map[string]string{"id": edgeID})
	return nil
}
