package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alevsk/quay-ops/internal/config"
	"github.com/alevsk/quay-ops/internal/formatter"
	"github.com/alevsk/quay-ops/internal/logger"
)

var (
	configPath    string
	debug         bool
	skipTLSVerify bool
	failover      bool
	outputFormat  string
)

var cfg = &config.Config{}

var rootCmd = &cobra.Command{
	Use:   "quay-ops",
	Short: "quay-ops - Quay registry bootstrap and mirroring",
	Long: `quay-ops rolls out a Quay registry on OpenShift and keeps a primary and a
secondary registry in sync: organizations, repositories, robot accounts and
proxy caches are converged on the target and images are mirrored.`,
	SilenceErrors: true, // We'll handle error printing ourselves
	SilenceUsage:  true, // We'll handle usage printing ourselves
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		// Load configuration from file or environment variable
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		// flags override config due to highest precedence
		if debug {
			cfg.Debug = true
		}
		if skipTLSVerify {
			cfg.SkipTLSVerify = true
		}
		if failover {
			cfg.Failover = true
		}

		if _, err := formatter.ParseType(outputFormat); err != nil {
			return err
		}

		// Initialize logger
		logger.Init(cfg)

		// Print configuration source
		if cfg.Path() != "" {
			logger.Debug().Msgf("Using config file: %s", cfg.Path())
		} else {
			logger.Debug().Msg("Using default configuration")
		}

		return nil
	},
}

func init() {
	// Add global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to config file (default: $"+config.QuayOpsConfigPathEnvVar+")")
	flags.BoolVar(&debug, "debug", false, "enable verbose logging and additional debug information")
	flags.BoolVar(&skipTLSVerify, "skip-tls-verify", false, "skip certificate verification against the registries")
	flags.BoolVar(&failover, "failover", false, "treat the secondary registry as the source")
	flags.StringVar(&outputFormat, "output", "table", "report format (table, json, yaml, markdown)")

	// Add operation commands
	for _, cmd := range operationCommands() {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(runCmd)

	// Add cobra completion command
	rootCmd.AddCommand(completionCmd)

	// Add version command to root command
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Custom error handling to show usage before error
	if cmd, err := rootCmd.ExecuteContextC(ctx); err != nil {
		// Show usage first
		fmt.Println(cmd.UsageString())
		// Then show the error
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
