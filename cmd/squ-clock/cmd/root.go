package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/squ-clock/internal/config"
	"github.com/oshokin/squ-clock/internal/service/clockd"
	"github.com/oshokin/squ-clock/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// stateFile is where the last tempo, swing and source are persisted.
	stateFile string
	// healthAddress overrides the health endpoint address.
	healthAddress string
	// source overrides the clock source.
	source string
	// tempo overrides the starting tempo.
	tempo int

	// rootCmd represents the base command for running the clock.
	rootCmd = &cobra.Command{
		Use:   "squ-clock [midi-input]",
		Short: "Run the sequencer clock.",
		Long: `Runs the clock that drives the step sequencer.

Pulses come either from the internal tempo generator or from the MIDI realtime
clock of an external device. The MIDI input can be given as argument to override
the configuration file; it is matched by name fragment.

Commands are read from standard input, one per line:
  start | stop | continue | tempo <bpm> | swing <0..1> | source internal|external | status

Readiness is published over the gRPC health protocol.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use MIDI input argument if provided, otherwise rely on config.
			var inputPort string
			if len(args) > 0 {
				inputPort = args[0]
			}

			options := &clockd.Options{
				ConfigPath:    configPath,
				HealthAddress: healthAddress,
				InputPort:     inputPort,
				Source:        source,
				Tempo:         tempo,
				StateFile:     stateFile,
			}

			return clockd.Run(ctx, options)
		},
	}
)

// Execute runs the squ-clock CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist clock state")
	rootCmd.Flags().StringVarP(&healthAddress, "health-addr", "a", "", "gRPC health listen address")
	rootCmd.Flags().StringVar(&source, "source", "", "clock source: internal or external")
	rootCmd.Flags().IntVarP(&tempo, "tempo", "t", 0, "starting tempo in beats per minute")
}
