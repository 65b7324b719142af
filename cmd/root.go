package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/critpath/internal/config"
	"github.com/papapumpkin/critpath/internal/logging"
	"github.com/papapumpkin/critpath/internal/project"
	"github.com/papapumpkin/critpath/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "critpath",
	Short: "Task dependency graphs and critical path analysis",
	Long: `critpath keeps a project's task dependencies acyclic, orders the work
deterministically and computes the critical path (earliest/latest start and
finish, slack) across FS, SS, FF and SF dependencies.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Rejected input exits 1; a broken internal
// invariant exits 2.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if project.IsInternal(err) {
			fmt.Fprintln(os.Stderr, "internal error:", err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default .critpath.yaml)")
	pf.BoolP("verbose", "v", false, "verbose output")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("db", "", "SQLite database path")
	pf.String("telemetry", "", "append JSONL events to this file")
	pf.Float64("hours-per-day", 0, "working hours per day for estimate_hours")

	for key, flag := range map[string]string{
		"verbose":        "verbose",
		"log_level":      "log-level",
		"log_format":     "log-format",
		"db_path":        "db",
		"telemetry_path": "telemetry",
		"hours_per_day":  "hours-per-day",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".critpath")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("CRITPATH")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// env bundles what every command needs after configuration is resolved.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	events *telemetry.Emitter
}

// loadEnv resolves configuration and builds the logger and telemetry
// emitter. Callers must Close the result.
func loadEnv(stderr io.Writer) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:    cfg,
		logger: logging.New(logging.Options{Level: level, Format: format, Output: stderr}),
	}
	if cfg.TelemetryPath != "" {
		if e.events, err = telemetry.NewEmitter(cfg.TelemetryPath); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *env) Close() error {
	return e.events.Close()
}

// record appends a telemetry event. A failed write is logged and otherwise
// ignored so it never fails the command.
func (e *env) record(kind, projectID, taskID string, data any) {
	if err := e.events.Record(kind, projectID, taskID, data); err != nil {
		e.logger.Warn("telemetry write failed", "kind", kind, "project", projectID, "error", err)
	}
}
