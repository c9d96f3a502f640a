// Package rollout applies manifests in order and blocks on kind-specific
// readiness before moving to the next one.
package rollout

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/alevsk/quay-ops/internal/cluster"
	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/readiness"
	"github.com/alevsk/quay-ops/internal/types"
)

// ClusterClient is the part of cluster.Client the engine uses
type ClusterClient interface {
	Get(ctx context.Context, q cluster.Query) (*unstructured.UnstructuredList, error)
	Apply(ctx context.Context, m *types.Manifest, namespace string) error
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Engine applies manifests one at a time
type Engine struct {
	client    ClusterClient
	rules     *Rules
	namespace string
	sleep     SleepFunc
	now       func() time.Time
	report    *types.Report
}

// Option configures an Engine
type Option func(*Engine)

// WithSleep replaces the function used to wait between polls
func WithSleep(sleep SleepFunc) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithClock replaces the clock used to measure elapsed time
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithReport records every step in report
func WithReport(report *types.Report) Option {
	return func(e *Engine) { e.report = report }
}

// WithNamespace sets the namespace for namespaced manifests that omit one
func WithNamespace(namespace string) Option {
	return func(e *Engine) { e.namespace = namespace }
}

// New creates an Engine
func New(client ClusterClient, rules *Rules, opts ...Option) *Engine {
	if rules == nil {
		rules = NewRules()
	}
	e := &Engine{
		client: client,
		rules:  rules,
		sleep:  Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run applies the manifests in the given order. The first apply failure or
// readiness timeout aborts the run; nothing already applied is rolled back.
func (e *Engine) Run(ctx context.Context, manifests []*types.Manifest) error {
	for _, m := range manifests {
		if err := e.step(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) step(ctx context.Context, m *types.Manifest) error {
	started := e.now()
	rule, _ := e.rules.Lookup(m)
	log := logger.Logger().With().Str("kind", m.Kind).Str("name", m.Name).Logger()

	if rule.BeforeApply != nil {
		if err := rule.BeforeApply(ctx, m); err != nil {
			log.Error().Err(err).Msg("pre-apply step failed")
			e.report.Add(types.Step{Entity: m.ID(), Kind: "manifest", Action: types.ActionFailed, Detail: err.Error(), Elapsed: e.now().Sub(started)})
			return &ApplyError{Kind: m.Kind, Name: m.Name, Source: m.Source, Err: err}
		}
	}

	target := m
	if rule.Preprocess != nil {
		var err error
		target, err = rule.Preprocess(ctx, m)
		if err != nil {
			log.Error().Err(err).Msg("preprocessing failed")
			e.report.Add(types.Step{Entity: m.ID(), Kind: "manifest", Action: types.ActionFailed, Detail: err.Error(), Elapsed: e.now().Sub(started)})
			return &ApplyError{Kind: m.Kind, Name: m.Name, Source: m.Source, Err: err}
		}
	}

	log.Info().Str("source", m.Source).Msg("apply")
	if err := e.client.Apply(ctx, target, e.namespace); err != nil {
		log.Error().Err(err).Str("source", m.Source).Msg("apply failed")
		e.report.Add(types.Step{Entity: target.ID(), Kind: "manifest", Action: types.ActionFailed, Detail: err.Error(), Elapsed: e.now().Sub(started)})
		return &ApplyError{Kind: m.Kind, Name: target.Name, Source: m.Source, Err: err}
	}
	e.report.Add(types.Step{Entity: target.ID(), Kind: "manifest", Action: types.ActionApplied, Elapsed: e.now().Sub(started)})

	if rule.Wait != nil {
		if err := e.wait(ctx, target, rule.Wait); err != nil {
			return err
		}
		e.report.Add(types.Step{Entity: target.ID(), Kind: "manifest", Action: types.ActionReady, Detail: rule.Wait.Resource, Elapsed: e.now().Sub(started)})
	}

	if rule.SettleDelay > 0 {
		log.Info().Dur("delay", rule.SettleDelay).Msg("waiting for the service to settle")
		if err := e.sleep(ctx, rule.SettleDelay); err != nil {
			return err
		}
	}
	return nil
}

// wait polls until the policy is satisfied or the bounds are exhausted.
// Readiness is derived from a fresh read on every iteration.
func (e *Engine) wait(ctx context.Context, m *types.Manifest, w *Wait) error {
	policy := w.Policy
	if w.ManifestReplicas && m.Replicas != nil {
		replicas := *m.Replicas
		policy.ReplicaCount = &replicas
	}

	bounds := w.Bounds
	if bounds.MaxIterations < 1 {
		bounds.MaxIterations = 1
	}

	log := logger.Logger().With().Str("kind", m.Kind).Str("name", m.Name).Str("resource", w.Resource).Logger()
	query := cluster.Query{Resource: w.Resource, Namespace: w.Namespace, Label: w.Label}
	started := e.now()
	var pending []string

	for i := 1; i <= bounds.MaxIterations; i++ {
		list, err := e.client.Get(ctx, query)
		if err != nil {
			log.Warn().Err(err).Int("iteration", i).Msg("readiness check failed")
		} else {
			ready := readiness.Evaluate(list.Items, policy)
			if readiness.Satisfied(ready, policy) {
				log.Info().Int("objects", len(ready)).Int("iteration", i).Msg("ready")
				return nil
			}
			pending = readiness.Pending(ready)
			if len(ready) > 0 {
				log.Info().
					Int("objects", len(ready)).
					Strs("pending", pending).
					Msg("not all objects are ready")
			}
		}

		if i == bounds.MaxIterations {
			break
		}
		remaining := bounds.MaxIterations - i
		log.Info().
			Int("iterations_remaining", remaining).
			Float64("minutes_remaining", (time.Duration(remaining) * bounds.Delay).Minutes()).
			Msg("waiting")
		if err := e.sleep(ctx, bounds.Delay); err != nil {
			return fmt.Errorf("waiting for %s: %w", m.ID(), err)
		}
	}

	elapsed := e.now().Sub(started)
	log.Error().Int("iterations", bounds.MaxIterations).Int("elapsed_minutes", types.Minutes(elapsed)).Msg("timed out waiting for readiness")
	e.report.Add(types.Step{Entity: m.ID(), Kind: "manifest", Action: types.ActionFailed, Detail: "readiness timeout", Elapsed: elapsed})
	return &ReadinessTimeoutError{
		Kind:       m.Kind,
		Name:       m.Name,
		Resource:   w.Resource,
		Iterations: bounds.MaxIterations,
		Elapsed:    elapsed,
		Pending:    pending,
	}
}
