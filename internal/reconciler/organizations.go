package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alevsk/quay-ops/internal/config"
	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/quay"
	"github.com/alevsk/quay-ops/internal/types"
)

const (
	statePresent = "present"
	stateAbsent  = "absent"
)

// ErrNoSource is returned by operations that read the source registry when
// none was given
var ErrNoSource = errors.New("no source registry")

// orgExists checks the target. A failed check counts as existing so that a
// flaky API never leads to duplicate creation attempts.
func (r *Reconciler) orgExists(ctx context.Context, name string) bool {
	_, err := r.target.GetOrganization(ctx, name)
	if err == nil {
		return true
	}
	if quay.IsNotFound(err) {
		return false
	}
	logger.Warn().Err(err).Str("organization", name).Msg("could not check organization, assuming it exists")
	return true
}

// EnsureOrganization creates the organization on the target when absent
func (r *Reconciler) EnsureOrganization(ctx context.Context, name string) error {
	started := time.Now()
	entity := "organization/" + name
	if r.orgExists(ctx, name) {
		logger.Debug().Str("organization", name).Msg("organization already exists")
		r.report.Add(types.Step{Entity: entity, Kind: "organization", Action: types.ActionSkipped, Elapsed: time.Since(started)})
		return nil
	}

	logger.Info().Str("organization", name).Msg("creating organization")
	if err := r.target.CreateOrganization(ctx, name); err != nil {
		logger.Error().Err(err).Str("organization", name).Msg("failed to create organization")
		r.report.Add(types.Step{Entity: entity, Kind: "organization", Action: types.ActionFailed, Detail: err.Error(), Elapsed: time.Since(started)})
		return fmt.Errorf("creating organization %s: %w", name, err)
	}
	r.report.Add(types.Step{Entity: entity, Kind: "organization", Action: types.ActionCreated, Elapsed: time.Since(started)})
	return nil
}

// EnsureOrganizations creates every source organization missing on the
// target and returns the source organization names. Organizations are
// never deleted here.
func (r *Reconciler) EnsureOrganizations(ctx context.Context) ([]string, error) {
	if r.source == nil {
		return nil, ErrNoSource
	}
	orgs, err := r.source.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing source organizations: %w", err)
	}

	names := make([]string, 0, len(orgs))
	var errs []error
	for _, org := range orgs {
		names = append(names, org.Name)
		if err := r.EnsureOrganization(ctx, org.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return names, errors.Join(errs...)
}

// ApplyOrganizations converges the target to a declared organization list.
// Entries with state "absent" are deleted when present; all others are
// created when missing.
func (r *Reconciler) ApplyOrganizations(ctx context.Context, declared []config.Organization) error {
	var errs []error
	for _, org := range declared {
		if org.State != stateAbsent {
			if err := r.EnsureOrganization(ctx, org.Name); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := r.deleteOrganization(ctx, org.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reconciler) deleteOrganization(ctx context.Context, name string) error {
	started := time.Now()
	entity := "organization/" + name
	if !r.orgExists(ctx, name) {
		r.report.Add(types.Step{Entity: entity, Kind: "organization", Action: types.ActionSkipped, Detail: stateAbsent, Elapsed: time.Since(started)})
		return nil
	}

	logger.Info().Str("organization", name).Msg("deleting organization")
	if err := r.target.DeleteOrganization(ctx, name); err != nil {
		if quay.IsNotFound(err) {
			r.report.Add(types.Step{Entity: entity, Kind: "organization", Action: types.ActionSkipped, Detail: stateAbsent, Elapsed: time.Since(started)})
			return nil
		}
		logger.Error().Err(err).Str("organization", name).Msg("failed to delete organization")
		r.report.Add(types.Step{Entity: entity, Kind: "organization", Action: types.ActionFailed, Detail: err.Error(), Elapsed: time.Since(started)})
		return fmt.Errorf("deleting organization %s: %w", name, err)
	}
	r.report.Add(types.Step{Entity: entity, Kind: "organization", Action: types.ActionDeleted, Elapsed: time.Since(started)})
	return nil
}
