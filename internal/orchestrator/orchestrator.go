// Package orchestrator sequences the rollout and reconciliation phases of
// an operation. It owns the loaded configuration and rebuilds every client
// from it, so a token minted by one phase is seen by the next.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/alevsk/quay-ops/internal/cluster"
	"github.com/alevsk/quay-ops/internal/config"
	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/preflight"
	"github.com/alevsk/quay-ops/internal/quay"
	"github.com/alevsk/quay-ops/internal/reconciler"
	"github.com/alevsk/quay-ops/internal/rollout"
	"github.com/alevsk/quay-ops/internal/transfer"
	"github.com/alevsk/quay-ops/internal/types"
)

// Registry is the registry API surface used across all phases
type Registry interface {
	reconciler.RegistryAPI
	InitializeUser(ctx context.Context, user quay.InitialUser) (*quay.InitializedUser, error)
	ListApplications(ctx context.Context, org string) ([]quay.Application, error)
	CreateApplication(ctx context.Context, org, name, description string) (*quay.Application, error)
}

var _ Registry = (*quay.Client)(nil)

// ClusterFactory builds the cluster client for a configuration
type ClusterFactory func(cfg *config.Config) (cluster.Client, error)

// RegistryFactory builds a client for one registry instance. A registry
// without a token is reached with its username and password.
type RegistryFactory func(reg config.Registry, skipTLSVerify bool) (Registry, error)

// EngineFactory builds the image transfer engine for a sync run
type EngineFactory func(cfg *config.Config) (transfer.Engine, error)

// Prechecker verifies that registry hosts are reachable
type Prechecker interface {
	CheckAll(ctx context.Context, servers ...string) error
}

// Params carries the per-invocation flags that are not configuration
type Params struct {
	// Overwrite replaces an existing proxy cache configuration
	Overwrite bool
	// Username owns personal robot accounts
	Username string
	// RefreshInitConfig replaces the init config secret before the rollout
	RefreshInitConfig bool
}

// Orchestrator runs operations against one configuration
type Orchestrator struct {
	cfg *config.Config

	newCluster  ClusterFactory
	newRegistry RegistryFactory
	newEngine   EngineFactory
	precheck    Prechecker
	sleep       rollout.SleepFunc
	newToken    func() (string, error)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClusterFactory replaces how the cluster client is built
func WithClusterFactory(f ClusterFactory) Option {
	return func(o *Orchestrator) { o.newCluster = f }
}

// WithRegistryFactory replaces how registry clients are built
func WithRegistryFactory(f RegistryFactory) Option {
	return func(o *Orchestrator) { o.newRegistry = f }
}

// WithEngineFactory replaces how the transfer engine is built
func WithEngineFactory(f EngineFactory) Option {
	return func(o *Orchestrator) { o.newEngine = f }
}

// WithPrechecker replaces the reachability checker
func WithPrechecker(p Prechecker) Option {
	return func(o *Orchestrator) { o.precheck = p }
}

// WithSleep replaces the sleep used between readiness polls
func WithSleep(sleep rollout.SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithTokenGenerator replaces how database tokens are minted
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(o *Orchestrator) { o.newToken = gen }
}

// New creates an Orchestrator for cfg
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		newCluster:  DefaultClusterFactory,
		newRegistry: DefaultRegistryFactory,
		newEngine:   DefaultEngineFactory,
		precheck:    preflight.New(),
		sleep:       rollout.Sleep,
		newToken:    GenerateToken,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the current configuration, which changes after a phase
// persisted a token
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// DefaultClusterFactory connects to the cluster named by the openshift
// settings
func DefaultClusterFactory(cfg *config.Config) (cluster.Client, error) {
	return cluster.New(cfg.OpenShift.Kubeconfig, cfg.OpenShift.Context)
}

// DefaultRegistryFactory creates a management API client
func DefaultRegistryFactory(reg config.Registry, skipTLSVerify bool) (Registry, error) {
	opts := []quay.Option{quay.WithInsecureSkipVerify(skipTLSVerify)}
	if reg.Token != "" {
		opts = append(opts, quay.WithToken(reg.Token))
	} else if reg.Username != "" {
		opts = append(opts, quay.WithBasicAuth(reg.Username, reg.Password))
	}
	return quay.New(reg.Server, opts...)
}

// DefaultEngineFactory creates the configured transfer engine with the
// credentials of both registries
func DefaultEngineFactory(cfg *config.Config) (transfer.Engine, error) {
	source, target := cfg.Endpoints()
	auth := map[string]transfer.Credentials{}
	for _, reg := range []config.Registry{source, target} {
		if reg.Server == "" || reg.Username == "" {
			continue
		}
		auth[transfer.RegistryHost(reg.Server)] = transfer.Credentials{Username: reg.Username, Password: reg.Password}
	}
	return transfer.NewEngine(transfer.EngineType(cfg.Transfer.Engine), transfer.Options{
		Insecure: cfg.SkipTLSVerify,
		Auth:     auth,
	})
}

// Run validates the configuration for op and executes it. The report is
// returned even when the operation fails.
func (o *Orchestrator) Run(ctx context.Context, op config.Operation, params Params) (*types.Report, error) {
	report := types.NewReport(string(op))
	defer func() {
		report.Finish()
		logger.Info().Str("operation", string(op)).Int("minutes", types.Minutes(report.Elapsed)).Msg("total run time")
	}()

	if err := o.cfg.Validate(op); err != nil {
		logger.Error().Err(err).Str("operation", string(op)).Msg("invalid configuration")
		return report, err
	}

	var err error
	switch op {
	case config.OpSetupCluster:
		err = o.setupCluster(ctx, report, params)
	case config.OpInitUser:
		err = o.initUser(ctx, report)
	case config.OpDatabaseToken:
		err = o.databaseToken(ctx, report)
	case config.OpProxyCache:
		err = o.proxyCache(ctx, report, params)
	case config.OpRobots:
		err = o.robots(ctx, report, params)
	case config.OpSync:
		err = o.sync(ctx, report)
	case config.OpOwnership:
		err = o.ownership(ctx, report)
	case config.OpOrganizations:
		err = o.organizations(ctx, report)
	case config.OpPreflight:
		err = o.preflight(ctx)
	default:
		err = fmt.Errorf("unsupported operation: %s", op)
	}
	if err != nil {
		logger.Error().Err(err).Str("operation", string(op)).Msg("operation failed")
	}
	return report, err
}

// Sequence runs ops in order and stops at the first failure. Each
// operation sees the configuration as left by the previous one.
func (o *Orchestrator) Sequence(ctx context.Context, ops []config.Operation, params Params) ([]*types.Report, error) {
	reports := make([]*types.Report, 0, len(ops))
	for _, op := range ops {
		report, err := o.Run(ctx, op, params)
		reports = append(reports, report)
		if err != nil {
			return reports, fmt.Errorf("%s: %w", op, err)
		}
	}
	return reports, nil
}

// registries builds the source and target clients after failover
func (o *Orchestrator) registries() (Registry, Registry, error) {
	source, target := o.cfg.Endpoints()
	src, err := o.newRegistry(source, o.cfg.SkipTLSVerify)
	if err != nil {
		return nil, nil, fmt.Errorf("source registry: %w", err)
	}
	dst, err := o.newRegistry(target, o.cfg.SkipTLSVerify)
	if err != nil {
		return nil, nil, fmt.Errorf("target registry: %w", err)
	}
	return src, dst, nil
}
