package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/simulation"
	"github.com/sarchlab/exokern/user"
)

var runCmd = &cobra.Command{
	Use:   "run [program...]",
	Short: "Boot the machine with one environment per named program.",
	Long: `Boots the machine, creates one environment for each program in ` +
		`the order given, and runs until no environment is runnable. ` +
		`Use "exokern list" for the available programs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrograms,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd.Flags())
}

func addRunFlags(flags *pflag.FlagSet) {
	flags.Int("cpus", 0, "Number of CPUs ("+envCPUs+").")
	flags.Int("envs", 0, "Size of the environment table ("+envEnvs+").")
	flags.Int("frames", 0, "Number of physical frames ("+envFrames+").")
	flags.String("db", "",
		"Record the run into <db>.sqlite3 ("+envDB+").")
	flags.Int("monitor-port", 0,
		"Serve the monitor on this port ("+envMonitorPort+").")
	flags.Bool("monitor", false,
		"Serve the monitor on a random port.")
	flags.Bool("browser", false,
		"Open the monitor in a browser.")
}

// applyFlags overrides the loaded configuration with the flags the user set.
func applyFlags(cmd *cobra.Command, c config) (config, error) {
	flags := cmd.Flags()

	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"cpus", &c.NumCPU},
		{"envs", &c.NumEnvs},
		{"frames", &c.NumFrames},
		{"monitor-port", &c.MonitorPort},
	} {
		if flags.Changed(f.name) {
			n, err := flags.GetInt(f.name)
			if err != nil {
				return c, err
			}

			*f.dst = n
		}
	}

	if flags.Changed("db") {
		c.DBPath, _ = flags.GetString("db")
	}

	return c, c.validate()
}

func buildSimulation(cmd *cobra.Command, c config) *simulation.Simulation {
	b := simulation.MakeBuilder().
		WithLogger(logger).
		WithKernelBuilder(kern.MakeBuilder().
			WithNumCPU(c.NumCPU).
			WithNumEnvs(c.NumEnvs).
			WithNumFrames(c.NumFrames).
			WithConsole(cmd.OutOrStdout()))

	if c.DBPath == "" {
		b = b.WithoutRecording()
	} else {
		b = b.WithOutputFileName(c.DBPath)
	}

	monitor, _ := cmd.Flags().GetBool("monitor")
	openBrowser, _ := cmd.Flags().GetBool("browser")

	switch {
	case c.MonitorPort > 0:
		b = b.WithMonitorPort(c.MonitorPort)
	case !monitor && !openBrowser:
		return b.WithoutMonitoring().Build()
	}

	if openBrowser {
		b = b.WithBrowser()
	}

	return b.Build()
}

func runPrograms(cmd *cobra.Command, args []string) error {
	c, err := applyFlags(cmd, cfg)
	if err != nil {
		return err
	}

	progs := make([]kern.Program, 0, len(args))
	for _, name := range args {
		prog, err := user.Lookup(name)
		if err != nil {
			return err
		}

		progs = append(progs, prog)
	}

	s := buildSimulation(cmd, c)
	defer func() {
		if err := s.Terminate(); err != nil {
			logger.Warn("terminating simulation", zap.Error(err))
		}
	}()

	for _, prog := range progs {
		if _, err := s.Spawn(prog); err != nil {
			return fmt.Errorf("spawning %s: %w", prog.Name, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}
