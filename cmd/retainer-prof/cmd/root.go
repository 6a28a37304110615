package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/retainer-prof/pkg/config"
	apperrors "github.com/retainer-prof/pkg/errors"
	"github.com/retainer-prof/pkg/telemetry"
	"github.com/retainer-prof/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg      *config.Config
	logger   utils.Logger = &utils.NullLogger{}
	shutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "retainer-prof",
	Short: "Retainer profiler for heap snapshots",
	Long: `retainer-prof computes, for every live closure of a heap snapshot, the
set of retainers keeping it alive, and reports how much of the heap each
retainer set holds.

Retainers are attributed by info table, cost-centre stack or cost centre.
Results are written to the output directory and can be stored in a database
and uploaded to object storage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		l, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		utils.SetGlobalLogger(logger)

		if shutdown, err = telemetry.Init(cmd.Context(), nil); err != nil {
			logger.Warn("Tracing disabled: %v", err)
			shutdown = nil
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdown == nil {
			return nil
		}
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces: %v", err)
		}
		return nil
	},
}

func newLogger(lc config.LogConfig) (utils.Logger, error) {
	level := utils.ParseLogLevel(lc.Level)
	if verbose {
		level = utils.LevelDebug
	}
	if lc.OutputPath != "" {
		l, err := utils.NewFileLogger(level, lc.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return l, nil
	}
	return utils.NewDefaultLogger(level, os.Stdout), nil
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func reportError(err error) {
	switch {
	case apperrors.IsInvariantViolation(err):
		logger.Error("Heap invariant violated, pass aborted: %v", err)
	case apperrors.IsResourceExhausted(err):
		logger.Error("Out of traversal stack, pass aborted: %v", err)
	default:
		logger.Error("%v", err)
	}
	if _, ok := logger.(*utils.NullLogger); ok {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	binName := BinName()
	rootCmd.Example = `  # Profile a snapshot, attributing retainers by info table
  ` + binName + ` profile -i ./heap.json.zst

  # Attribute by cost-centre stack and keep the 50 largest sets
  ` + binName + ` profile -i ./heap.json --scheme ccs --top 50

  # Print a stored census
  ` + binName + ` census <task-uuid> -c ./config.yaml`
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
