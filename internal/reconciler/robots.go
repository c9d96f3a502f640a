package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alevsk/quay-ops/internal/config"
	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/types"
)

const robotTypePersonal = "personal"

// RobotName is the wire identity of a robot: "org+name" for organization
// robots and "username+name" for personal ones.
func RobotName(robot config.Robot, username string) string {
	if robot.Type == robotTypePersonal {
		return username + "+" + robot.Name
	}
	return robot.OrgName + "+" + robot.Name
}

// robotOwner is the organization a robot lives in, empty for personal robots
func robotOwner(robot config.Robot) string {
	if robot.Type == robotTypePersonal {
		return ""
	}
	return robot.OrgName
}

// RobotExistence lists the robots of every owner referenced by robots and
// returns the set of composite names found
func (r *Reconciler) RobotExistence(ctx context.Context, robots map[string]config.Robot) (map[string]bool, error) {
	owners := map[string]bool{}
	for _, robot := range robots {
		owners[robotOwner(robot)] = true
	}

	existing := map[string]bool{}
	for owner := range owners {
		list, err := r.target.ListRobots(ctx, owner)
		if err != nil {
			if owner == "" {
				owner = robotTypePersonal
			}
			return nil, fmt.Errorf("listing robots of %s: %w", owner, err)
		}
		for _, robot := range list {
			existing[robot.Name] = true
		}
	}
	return existing, nil
}

// EnsureRobotAccounts creates every desired robot whose composite name is
// not in existing. Robots are never deleted. existing is updated with the
// robots created. A nil existing treats every robot as missing.
func (r *Reconciler) EnsureRobotAccounts(ctx context.Context, desired map[string]config.Robot, username string, existing map[string]bool) error {
	if existing == nil {
		existing = map[string]bool{}
	}
	keys := make([]string, 0, len(desired))
	for key := range desired {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		robot := desired[key]
		started := time.Now()
		composite := RobotName(robot, username)
		entity := "robot/" + composite

		if existing[composite] {
			logger.Info().Str("robot", composite).Msg("robot account already exists")
			r.report.Add(types.Step{Entity: entity, Kind: "robot", Action: types.ActionSkipped, Elapsed: time.Since(started)})
			continue
		}

		logger.Info().Str("robot", composite).Msg("creating robot account")
		if _, err := r.target.CreateRobot(ctx, robotOwner(robot), robot.Name, robot.Description); err != nil {
			logger.Error().Err(err).Str("robot", composite).Msg("failed to create robot account")
			r.report.Add(types.Step{Entity: entity, Kind: "robot", Action: types.ActionFailed, Detail: err.Error(), Elapsed: time.Since(started)})
			errs = append(errs, fmt.Errorf("creating robot %s: %w", composite, err))
			continue
		}
		existing[composite] = true
		r.report.Add(types.Step{Entity: entity, Kind: "robot", Action: types.ActionCreated, Elapsed: time.Since(started)})
	}
	return errors.Join(errs...)
}
