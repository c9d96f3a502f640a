package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/transfer"
	"github.com/alevsk/quay-ops/internal/types"
)

// ErrNoEngine is returned by MirrorImages when no transfer engine is set
var ErrNoEngine = errors.New("no transfer engine")

// ErrInvalidRepository reports an explicit repository entry that is not
// in the form org/repo:tag
var ErrInvalidRepository = errors.New("repository must be in the form org/repo:tag")

// DiscoverIntents enumerates every tag of every repository of the given
// source organizations
func (r *Reconciler) DiscoverIntents(ctx context.Context, orgs []string) ([]types.TransferIntent, error) {
	if r.source == nil {
		return nil, ErrNoSource
	}

	var intents []types.TransferIntent
	for _, org := range orgs {
		repos, err := r.source.ListRepositories(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("listing repositories of %s: %w", org, err)
		}
		for _, repo := range repos {
			tags, err := r.source.ListTags(ctx, repo.Namespace, repo.Name)
			if err != nil {
				return nil, fmt.Errorf("listing tags of %s/%s: %w", repo.Namespace, repo.Name, err)
			}
			path := repo.Namespace + "/" + repo.Name
			for _, tag := range tags {
				intents = append(intents, r.intent(path, tag.Name))
			}
		}
	}
	logger.Info().Int("images", len(intents)).Int("organizations", len(orgs)).Msg("discovered images")
	return intents, nil
}

// ExplicitIntents builds intents from "org/repo:tag" entries
func (r *Reconciler) ExplicitIntents(repositories []string) ([]types.TransferIntent, error) {
	if r.source == nil {
		return nil, ErrNoSource
	}
	intents := make([]types.TransferIntent, 0, len(repositories))
	for _, entry := range repositories {
		path, tag, err := SplitRepository(entry)
		if err != nil {
			return nil, err
		}
		intents = append(intents, r.intent(path, tag))
	}
	return intents, nil
}

// SplitRepository splits "org/repo:tag" into "org/repo" and "tag"
func SplitRepository(entry string) (string, string, error) {
	entry = transfer.StripScheme(strings.TrimSpace(entry))
	i := strings.LastIndex(entry, ":")
	if i <= 0 || i == len(entry)-1 || !strings.Contains(entry[:i], "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, entry)
	}
	return entry[:i], entry[i+1:], nil
}

// Organization returns the organization part of "org/repo"
func Organization(path string) string {
	org, _, _ := strings.Cut(path, "/")
	return org
}

func (r *Reconciler) intent(path, tag string) types.TransferIntent {
	return types.TransferIntent{
		Source:      transfer.Reference(r.source.Host(), path, tag),
		Destination: transfer.Reference(r.target.Host(), path, tag),
		Tag:         tag,
	}
}

// MirrorImages pulls, tags and pushes every intent in order. A failed pull
// or tag skips the rest of that intent; a failed push is retried. Unless
// broken images are tolerated, the first failure aborts the run.
func (r *Reconciler) MirrorImages(ctx context.Context, intents []types.TransferIntent) error {
	if r.engine == nil {
		return ErrNoEngine
	}

	failed := 0
	for _, intent := range intents {
		started := time.Now()
		err := r.mirror(ctx, intent)
		if err == nil {
			r.report.Add(types.Step{Entity: intent.Destination, Kind: "image", Action: types.ActionCopied, Elapsed: time.Since(started)})
			continue
		}

		failed++
		r.report.Add(types.Step{Entity: intent.Destination, Kind: "image", Action: types.ActionFailed, Detail: err.Error(), Elapsed: time.Since(started)})
		if !r.tolerateBroken {
			logger.Error().Err(err).Str("image", intent.Source).Msg("image transfer failed")
			return err
		}
		logger.Warn().Err(err).Str("image", intent.Source).Msg("skipping broken image")
	}

	logger.Info().Int("images", len(intents)).Int("failed", failed).Msg("mirroring finished")
	return nil
}

func (r *Reconciler) mirror(ctx context.Context, intent types.TransferIntent) error {
	src := transfer.StripScheme(intent.Source)
	dst := transfer.StripScheme(intent.Destination)

	logger.Info().Str("image", src).Str("destination", dst).Msg("mirroring image")
	if err := r.engine.Pull(ctx, src); err != nil {
		return err
	}
	if err := r.engine.Tag(ctx, src, dst); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt <= r.pushRetries; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(err).Str("image", dst).Int("attempt", attempt+1).Msg("retrying push")
		}
		if err = r.engine.Push(ctx, dst); err == nil {
			return nil
		}
	}
	return err
}
