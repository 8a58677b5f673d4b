package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	devLog  bool

	cfg    config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "exokern",
	Short: "A simulated exokernel with user-level copy-on-write fork.",
	Long: `exokern boots a simulated multi-CPU machine whose kernel only ` +
		`multiplexes CPUs and physical pages. Processes, fork and ` +
		`copy-on-write live in the user-level library.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		cfg, err = loadConfig(".env")
		if err != nil {
			return err
		}

		logger, err = buildLogger()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func buildLogger() (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	if devLog {
		logConfig = zap.NewDevelopmentConfig()
	}

	if verbose {
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	return logConfig.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log every dispatch, fault and scheduling decision.")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev-log", false,
		"Use human readable log lines.")
}
