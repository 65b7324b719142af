package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/critpath/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate [manifest]",
	Short: "Check a manifest for unknown tasks, duplicates and cycles",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	printer := ui.New(cmd.OutOrStdout())
	path := manifestPath(e, args)
	m, g, err := loadManifestGraph(path, e.cfg.HoursPerDay)
	if err != nil {
		printer.Error(err.Error())
		return fmt.Errorf("validation of %s failed", path)
	}
	name := m.Project.Name
	if name == "" {
		name = path
	}
	printer.Success(fmt.Sprintf("%s: %d task(s), %d dependencies, no errors", name, g.Len(), g.EdgeCount()))
	return nil
}
