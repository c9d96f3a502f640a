package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/quay"
	"github.com/alevsk/quay-ops/internal/reconciler"
	"github.com/alevsk/quay-ops/internal/types"
)

// managed returns the client of the registry that robots and proxy caches
// are configured on: the live source after failover
func (o *Orchestrator) managed() (Registry, error) {
	source, _ := o.cfg.Endpoints()
	return o.newRegistry(source, o.cfg.SkipTLSVerify)
}

func (o *Orchestrator) proxyCache(ctx context.Context, report *types.Report, params Params) error {
	client, err := o.managed()
	if err != nil {
		return err
	}
	r := reconciler.New(nil, client, reconciler.WithReport(report))

	keys := make([]string, 0, len(o.cfg.ProxyCache))
	for key := range o.cfg.ProxyCache {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		pc := o.cfg.ProxyCache[key]
		if err := r.EnsureOrganization(ctx, pc.OrgName); err != nil {
			return err
		}
		desired := quay.ProxyCache{
			UpstreamRegistry:         pc.UpstreamRegistry,
			UpstreamRegistryUsername: pc.UpstreamRegistryUsername,
			UpstreamRegistryPassword: pc.UpstreamRegistryPassword,
			Insecure:                 pc.Insecure,
			ExpirationSeconds:        pc.ExpirationSeconds,
		}
		if err := r.EnsureProxyCache(ctx, pc.OrgName, desired, params.Overwrite); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) robots(ctx context.Context, report *types.Report, params Params) error {
	client, err := o.managed()
	if err != nil {
		return err
	}
	username := params.Username
	if username == "" {
		source, _ := o.cfg.Endpoints()
		username = source.Username
	}

	r := reconciler.New(nil, client, reconciler.WithReport(report))
	existing, err := r.RobotExistence(ctx, o.cfg.Robots)
	if err != nil {
		return err
	}
	return r.EnsureRobotAccounts(ctx, o.cfg.Robots, username, existing)
}

func (o *Orchestrator) sync(ctx context.Context, report *types.Report) error {
	source, target := o.cfg.Endpoints()
	if err := o.precheck.CheckAll(ctx, source.Server, target.Server); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	src, dst, err := o.registries()
	if err != nil {
		return err
	}
	engine, err := o.newEngine(o.cfg)
	if err != nil {
		return err
	}
	r := reconciler.New(src, dst,
		reconciler.WithEngine(engine),
		reconciler.WithReport(report),
		reconciler.WithPushRetries(o.cfg.Transfer.PushRetries),
		reconciler.WithTolerateBrokenImages(o.cfg.SkipBrokenImages),
	)

	orgs, err := r.EnsureOrganizations(ctx)
	if err != nil {
		return err
	}

	var intents []types.TransferIntent
	if o.cfg.AutoDiscovery {
		logger.Info().Int("organizations", len(orgs)).Msg("discovering repositories")
		intents, err = r.DiscoverIntents(ctx, orgs)
	} else {
		intents, err = r.ExplicitIntents(o.cfg.Repositories)
	}
	if err != nil {
		return err
	}
	if !o.cfg.AutoDiscovery {
		if err := ensureListedOrganizations(ctx, r, o.cfg.Repositories); err != nil {
			return err
		}
	}

	logger.Info().Str("source", source.Server).Str("target", target.Server).Int("images", len(intents)).Msg("mirroring images")
	return r.MirrorImages(ctx, intents)
}

// ensureListedOrganizations creates the target organizations of explicitly
// listed repositories that the source listing did not cover
func ensureListedOrganizations(ctx context.Context, r *reconciler.Reconciler, repositories []string) error {
	seen := map[string]bool{}
	for _, entry := range repositories {
		path, _, err := reconciler.SplitRepository(entry)
		if err != nil {
			return err
		}
		org := reconciler.Organization(path)
		if seen[org] {
			continue
		}
		seen[org] = true
		if err := r.EnsureOrganization(ctx, org); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) ownership(ctx context.Context, report *types.Report) error {
	_, target := o.cfg.Endpoints()
	client, err := o.newRegistry(target, o.cfg.SkipTLSVerify)
	if err != nil {
		return err
	}
	r := reconciler.New(nil, client, reconciler.WithReport(report))

	orgs, err := r.TargetOrganizations(ctx)
	if err != nil {
		return err
	}
	users, err := r.SuperUsers(ctx, o.cfg.SuperUsers)
	if err != nil {
		return err
	}
	return r.EnsureOrgOwnership(ctx, orgs, users)
}

func (o *Orchestrator) organizations(ctx context.Context, report *types.Report) error {
	_, target := o.cfg.Endpoints()
	client, err := o.newRegistry(target, o.cfg.SkipTLSVerify)
	if err != nil {
		return err
	}
	return reconciler.New(nil, client, reconciler.WithReport(report)).ApplyOrganizations(ctx, o.cfg.Organizations)
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	return o.precheck.CheckAll(ctx, o.cfg.Primary.Server, o.cfg.Secondary.Server)
}
