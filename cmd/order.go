package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/critpath/internal/dag"
)

var orderCmd = &cobra.Command{
	Use:   "order [manifest]",
	Short: "Print the suggested execution order",
	Long: `Prints every task in dependency-respecting order. Ties between tasks that
are ready at the same time break on priority, then due date, then ID.

With --done, prints only the tasks whose predecessors are all finished.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOrder,
}

func init() {
	orderCmd.Flags().StringSlice("done", nil, "completed task IDs; print the tasks ready to start")
	rootCmd.AddCommand(orderCmd)
}

func runOrder(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	_, g, err := loadManifestGraph(manifestPath(e, args), e.cfg.HoursPerDay)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("done") {
		done, _ := cmd.Flags().GetStringSlice("done")
		return writeReady(cmd.OutOrStdout(), g, done)
	}
	return writeOrder(cmd.OutOrStdout(), g)
}

func writeOrder(w io.Writer, g *dag.Graph) error {
	order, err := dag.TopologicalOrder(g)
	if err != nil {
		return err
	}
	for i, id := range order {
		task, _ := g.Task(id)
		line := fmt.Sprintf("%d. %s", i+1, id)
		if task.Title != "" {
			line += "  " + task.Title
		}
		if task.Priority != dag.PriorityNone {
			line += "  (" + task.Priority.String() + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func writeReady(w io.Writer, g *dag.Graph, doneIDs []string) error {
	done := make(map[string]bool, len(doneIDs))
	for _, id := range doneIDs {
		if !g.HasTask(id) {
			return fmt.Errorf("%w: %s", dag.ErrUnknownTask, id)
		}
		done[id] = true
	}
	ready := dag.Ready(g, done)
	if len(ready) == 0 {
		fmt.Fprintln(w, "Nothing is ready.")
		return nil
	}
	fmt.Fprintln(w, strings.Join(ready, "\n"))
	return nil
}
