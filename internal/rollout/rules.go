package rollout

import (
	"context"
	"strings"
	"time"

	"github.com/alevsk/quay-ops/internal/readiness"
	"github.com/alevsk/quay-ops/internal/types"
)

// Bounds limits a readiness poll loop
type Bounds struct {
	MaxIterations int
	Delay         time.Duration
}

// Wait describes the objects to poll after a manifest is applied
type Wait struct {
	Resource  string
	Namespace string
	Label     string
	Policy    readiness.Policy
	// ManifestReplicas takes the expected object count from the manifest's
	// spec.replicas
	ManifestReplicas bool
	Bounds           Bounds
}

// Rule is the kind-specific behavior of a manifest. The zero Rule applies
// the manifest and continues.
type Rule struct {
	// BeforeApply runs before the manifest is applied
	BeforeApply func(ctx context.Context, m *types.Manifest) error
	// Preprocess returns the manifest to apply. It must not modify m.
	Preprocess func(ctx context.Context, m *types.Manifest) (*types.Manifest, error)
	// Wait, when set, blocks until the readiness policy is satisfied
	Wait *Wait
	// SettleDelay is slept unconditionally once the manifest is ready
	SettleDelay time.Duration
}

// Rules maps manifests to rules. A rule registered for kind and name wins
// over one registered for the kind alone. Matching ignores case.
type Rules struct {
	rules map[string]Rule
}

// NewRules returns an empty rule table
func NewRules() *Rules {
	return &Rules{rules: make(map[string]Rule)}
}

func ruleKey(kind, name string) string {
	if name == "" {
		return strings.ToLower(kind)
	}
	return strings.ToLower(kind + "/" + name)
}

// Register adds a rule for kind, or for kind and name when name is set
func (r *Rules) Register(kind, name string, rule Rule) *Rules {
	r.rules[ruleKey(kind, name)] = rule
	return r
}

// Lookup returns the rule for the manifest
func (r *Rules) Lookup(m *types.Manifest) (Rule, bool) {
	if r == nil {
		return Rule{}, false
	}
	if rule, ok := r.rules[ruleKey(m.Kind, m.Name)]; ok {
		return rule, true
	}
	rule, ok := r.rules[ruleKey(m.Kind, "")]
	return rule, ok
}

// Len returns the number of registered rules
func (r *Rules) Len() int {
	return len(r.rules)
}
