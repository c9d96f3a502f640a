// Package reconciler converges a target registry towards a source registry
// or a declared state. Every operation reads fresh state and is safe to
// run again.
package reconciler

import (
	"context"

	"github.com/alevsk/quay-ops/internal/quay"
	"github.com/alevsk/quay-ops/internal/transfer"
	"github.com/alevsk/quay-ops/internal/types"
)

// RegistryAPI is the part of quay.Client the reconciler drives
type RegistryAPI interface {
	Host() string

	ListOrganizations(ctx context.Context) ([]quay.Organization, error)
	GetOrganization(ctx context.Context, name string) (*quay.Organization, error)
	CreateOrganization(ctx context.Context, name string) error
	DeleteOrganization(ctx context.Context, name string) error

	ListRepositories(ctx context.Context, org string) ([]quay.Repository, error)
	ListTags(ctx context.Context, org, repo string) ([]quay.Tag, error)

	ListRobots(ctx context.Context, org string) ([]quay.Robot, error)
	CreateRobot(ctx context.Context, org, name, description string) (*quay.Robot, error)

	GetProxyCache(ctx context.Context, org string) (*quay.ProxyCache, error)
	CreateProxyCache(ctx context.Context, org string, pc quay.ProxyCache) error
	DeleteProxyCache(ctx context.Context, org string) error

	ListSuperUsers(ctx context.Context) ([]quay.User, error)
	ListTeamMembers(ctx context.Context, org, team string) ([]quay.Member, error)
	AddTeamMember(ctx context.Context, org, team, username string) error
}

var _ RegistryAPI = (*quay.Client)(nil)

// Reconciler holds the clients of one reconciliation pass. Nothing is
// cached between calls.
type Reconciler struct {
	source RegistryAPI
	target RegistryAPI
	engine transfer.Engine
	report *types.Report

	pushRetries    int
	tolerateBroken bool
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithEngine sets the engine used to mirror images
func WithEngine(engine transfer.Engine) Option {
	return func(r *Reconciler) { r.engine = engine }
}

// WithReport records every step in report
func WithReport(report *types.Report) Option {
	return func(r *Reconciler) { r.report = report }
}

// WithPushRetries sets how often a failed push is retried
func WithPushRetries(n int) Option {
	return func(r *Reconciler) {
		if n >= 0 {
			r.pushRetries = n
		}
	}
}

// WithTolerateBrokenImages logs failed transfers and moves on to the next
// image instead of aborting
func WithTolerateBrokenImages(tolerate bool) Option {
	return func(r *Reconciler) { r.tolerateBroken = tolerate }
}

// New creates a Reconciler. source may be nil for operations that only
// touch the target.
func New(source, target RegistryAPI, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:      source,
		target:      target,
		pushRetries: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
