package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/quay"
	"github.com/alevsk/quay-ops/internal/types"
)

// EnsureProxyCache gives org the desired proxy cache. An organization holds
// at most one; an existing one is replaced only when overwrite is set and
// otherwise left untouched with a warning.
func (r *Reconciler) EnsureProxyCache(ctx context.Context, org string, desired quay.ProxyCache, overwrite bool) error {
	started := time.Now()
	entity := "proxycache/" + org
	log := logger.Logger().With().Str("organization", org).Str("upstream", desired.UpstreamRegistry).Logger()

	existing, err := r.target.GetProxyCache(ctx, org)
	if err != nil {
		log.Error().Err(err).Msg("failed to read proxy cache")
		r.report.Add(types.Step{Entity: entity, Kind: "proxycache", Action: types.ActionFailed, Detail: err.Error(), Elapsed: time.Since(started)})
		return fmt.Errorf("reading proxy cache of %s: %w", org, err)
	}

	action := types.ActionCreated
	if existing != nil {
		if !overwrite {
			log.Warn().Str("current", existing.UpstreamRegistry).Msg("proxy cache already configured, not overwriting")
			r.report.Add(types.Step{Entity: entity, Kind: "proxycache", Action: types.ActionSkipped, Detail: existing.UpstreamRegistry, Elapsed: time.Since(started)})
			return nil
		}
		log.Info().Str("current", existing.UpstreamRegistry).Msg("replacing proxy cache")
		if err := r.target.DeleteProxyCache(ctx, org); err != nil {
			log.Error().Err(err).Msg("failed to delete proxy cache")
			r.report.Add(types.Step{Entity: entity, Kind: "proxycache", Action: types.ActionFailed, Detail: err.Error(), Elapsed: time.Since(started)})
			return fmt.Errorf("deleting proxy cache of %s: %w", org, err)
		}
		action = types.ActionUpdated
	}

	log.Info().Msg("creating proxy cache")
	if err := r.target.CreateProxyCache(ctx, org, desired); err != nil {
		log.Error().Err(err).Msg("failed to create proxy cache")
		r.report.Add(types.Step{Entity: entity, Kind: "proxycache", Action: types.ActionFailed, Detail: err.Error(), Elapsed: time.Since(started)})
		return fmt.Errorf("creating proxy cache of %s: %w", org, err)
	}
	r.report.Add(types.Step{Entity: entity, Kind: "proxycache", Action: action, Detail: desired.UpstreamRegistry, Elapsed: time.Since(started)})
	return nil
}
