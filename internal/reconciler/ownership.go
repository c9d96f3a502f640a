package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/types"
)

// OwnersTeam is the team whose members administer an organization
const OwnersTeam = "owners"

// TargetOrganizations returns the names of all organizations on the target
func (r *Reconciler) TargetOrganizations(ctx context.Context) ([]string, error) {
	orgs, err := r.target.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	names := make([]string, 0, len(orgs))
	for _, org := range orgs {
		names = append(names, org.Name)
	}
	return names, nil
}

// SuperUsers returns configured when it is not empty, otherwise the
// superusers reported by the target
func (r *Reconciler) SuperUsers(ctx context.Context, configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	users, err := r.target.ListSuperUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing superusers: %w", err)
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names, nil
}

// EnsureOrgOwnership adds every username to the owners team of every
// organization. Members are only ever added.
func (r *Reconciler) EnsureOrgOwnership(ctx context.Context, orgs, usernames []string) error {
	var errs []error
	for _, org := range orgs {
		members, err := r.target.ListTeamMembers(ctx, org, OwnersTeam)
		if err != nil {
			logger.Error().Err(err).Str("organization", org).Msg("failed to list owners")
			r.report.Add(types.Step{Entity: "organization/" + org, Kind: "ownership", Action: types.ActionFailed, Detail: err.Error()})
			errs = append(errs, fmt.Errorf("listing owners of %s: %w", org, err))
			continue
		}
		current := make(map[string]bool, len(members))
		for _, m := range members {
			current[m.Name] = true
		}

		for _, user := range usernames {
			started := time.Now()
			entity := org + "/" + user
			if current[user] {
				r.report.Add(types.Step{Entity: entity, Kind: "ownership", Action: types.ActionSkipped, Elapsed: time.Since(started)})
				continue
			}
			logger.Info().Str("organization", org).Str("user", user).Msg("adding owner")
			if err := r.target.AddTeamMember(ctx, org, OwnersTeam, user); err != nil {
				logger.Error().Err(err).Str("organization", org).Str("user", user).Msg("failed to add owner")
				r.report.Add(types.Step{Entity: entity, Kind: "ownership", Action: types.ActionFailed, Detail: err.Error(), Elapsed: time.Since(started)})
				errs = append(errs, fmt.Errorf("adding %s to %s/%s: %w", user, org, OwnersTeam, err))
				continue
			}
			current[user] = true
			r.report.Add(types.Step{Entity: entity, Kind: "ownership", Action: types.ActionCreated, Elapsed: time.Since(started)})
		}
	}
	return errors.Join(errs...)
}
