package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alevsk/quay-ops/internal/config"
	"github.com/alevsk/quay-ops/internal/formatter"
	"github.com/alevsk/quay-ops/internal/orchestrator"
)

var (
	params           orchestrator.Params
	autoDiscovery    bool
	skipBrokenImages bool
)

// newOrchestrator is replaced in tests
var newOrchestrator = func(cfg *config.Config) *orchestrator.Orchestrator {
	return orchestrator.New(cfg)
}

// operations lists the operation subcommands
var operations = []struct {
	op    config.Operation
	short string
	flags func(cmd *cobra.Command)
}{
	{
		op:    config.OpSetupCluster,
		short: "Apply the cluster manifests in order and wait for each to become ready",
		flags: func(cmd *cobra.Command) {
			cmd.Flags().BoolVar(&params.RefreshInitConfig, "refresh-init-config", false, "replace the init config secret before the rollout")
		},
	},
	{op: config.OpInitUser, short: "Create the first registry user and store its access token"},
	{op: config.OpDatabaseToken, short: "Insert an OAuth token into the registry database and store it"},
	{
		op:    config.OpProxyCache,
		short: "Configure the proxy cache of each listed organization",
		flags: func(cmd *cobra.Command) {
			cmd.Flags().BoolVar(&params.Overwrite, "overwrite", false, "replace an existing proxy cache configuration")
		},
	},
	{
		op:    config.OpRobots,
		short: "Create the configured robot accounts",
		flags: func(cmd *cobra.Command) {
			cmd.Flags().StringVar(&params.Username, "username", "", "owner of personal robot accounts (default: the registry username)")
		},
	},
	{op: config.OpOrganizations, short: "Converge the target organizations to the declared list"},
	{
		op:    config.OpSync,
		short: "Mirror organizations and images from the source to the target registry",
		flags: func(cmd *cobra.Command) {
			cmd.Flags().BoolVar(&autoDiscovery, "auto-discovery", false, "mirror every tag of every source repository")
			cmd.Flags().BoolVar(&skipBrokenImages, "skip-broken-images", false, "log failed image transfers and continue")
		},
	},
	{op: config.OpOwnership, short: "Add the superusers to the owners team of every target organization"},
	{op: config.OpPreflight, short: "Check that both registries resolve and accept connections"},
}

func operationCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(operations))
	for _, entry := range operations {
		op := entry.op
		cmd := &cobra.Command{
			Use:   string(op),
			Short: entry.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOperations(cmd, op)
			},
		}
		if entry.flags != nil {
			entry.flags(cmd)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

var runCmd = &cobra.Command{
	Use:   "run <operation>...",
	Short: "Run several operations in order",
	Long: `Run several operations in order, stopping at the first failure. Tokens
stored by init-user or db-token are used by the operations that follow.

Examples:
  # Bootstrap a fresh registry
  quay-ops run setup-cluster init-user robots proxycache

  # Mirror after a failover
  quay-ops --failover run preflight sync ownership`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := parseOperations(args)
		if err != nil {
			return err
		}
		return runOperations(cmd, ops...)
	},
}

func init() {
	for _, entry := range operations {
		if entry.flags != nil {
			entry.flags(runCmd)
		}
	}
}

// parseOperations maps operation names to operations
func parseOperations(args []string) ([]config.Operation, error) {
	known := make(map[string]config.Operation, len(operations))
	names := make([]string, 0, len(operations))
	for _, entry := range operations {
		known[string(entry.op)] = entry.op
		names = append(names, string(entry.op))
	}

	ops := make([]config.Operation, 0, len(args))
	for _, arg := range args {
		op, ok := known[arg]
		if !ok {
			return nil, fmt.Errorf("unknown operation %q (valid: %s)", arg, strings.Join(names, ", "))
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// runOperations executes ops and writes one report per executed operation
func runOperations(cmd *cobra.Command, ops ...config.Operation) error {
	if autoDiscovery {
		cfg.AutoDiscovery = true
	}
	if skipBrokenImages {
		cfg.SkipBrokenImages = true
	}

	typ, err := formatter.ParseType(outputFormat)
	if err != nil {
		return err
	}
	f, err := formatter.NewFormatter(typ, formatter.DefaultOptions())
	if err != nil {
		return err
	}

	reports, runErr := newOrchestrator(cfg).Sequence(cmd.Context(), ops, params)
	for _, report := range reports {
		out, err := f.Format(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return runErr
}
