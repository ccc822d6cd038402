package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/squ-clock/internal/config"
	"github.com/oshokin/squ-clock/internal/service/status"
	"github.com/oshokin/squ-clock/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// service is the health service to query.
	service string
	// wait keeps polling until the clock is serving.
	wait bool

	// rootCmd represents the base command for probing the clock.
	rootCmd = &cobra.Command{
		Use:   "squ-clock-status [health-address]",
		Short: "Check whether the clock is serving.",
		Long: `Queries the gRPC health endpoint of a running squ-clock.

Exits with a non-zero status unless the clock is SERVING. With --wait it keeps
polling until the clock becomes ready or the process is interrupted.
The address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use address argument if provided, otherwise rely on config.
			var address string
			if len(args) > 0 {
				address = args[0]
			}

			return status.Run(ctx, &status.Options{
				ConfigPath: configPath,
				Address:    address,
				Service:    service,
				Wait:       wait,
			})
		},
	}
)

// Execute runs the squ-clock-status CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVar(&service, "service", "", "health service name, defaults to the clock service")
	rootCmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the clock is serving")
}
