package rollout

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/alevsk/quay-ops/internal/config"
	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/readiness"
	"github.com/alevsk/quay-ops/internal/renderer"
	"github.com/alevsk/quay-ops/internal/types"
)

// InfraIDPlaceholder is replaced with the cluster infrastructure name in
// MachineSet manifests
const InfraIDPlaceholder = "<INFRAID>"

// StorageNodeLabel marks nodes that run OpenShift Data Foundation
const StorageNodeLabel = "cluster.ocs.openshift.io/openshift-storage"

// InitConfigKey is the key of the registry config bundle secret
const InitConfigKey = "config.yaml"

// Bootstrapper is the part of cluster.Client used by the default rules
type Bootstrapper interface {
	CreateSecretFromFile(ctx context.Context, name, namespace, key, path string, secretType corev1.SecretType) (bool, error)
	InfrastructureName(ctx context.Context) (string, error)
}

func boundsFor(cfg *config.Config, key string) Bounds {
	b := cfg.PollFor(key)
	return Bounds{MaxIterations: b.MaxIterations, Delay: b.Delay}
}

// DefaultRules returns the rule table for a registry on OpenShift with
// OpenShift Data Foundation storage:
//
//   - Subscription/quay-operator creates the config bundle secret first and
//     waits for the QuayRegistry object.
//   - Subscription/odf-operator waits for the storage operator pods.
//   - any other Subscription is followed by the settle delay.
//   - MachineSet gets the infrastructure id substituted and waits for its
//     storage nodes.
//   - StorageCluster waits for the storage claims to bind.
func DefaultRules(cfg *config.Config, c Bootstrapper) *Rules {
	ns := cfg.OpenShift.Namespace
	storageNS := cfg.OpenShift.StorageNamespace

	rules := NewRules()

	rules.Register("Subscription", "quay-operator", Rule{
		BeforeApply: func(ctx context.Context, m *types.Manifest) error {
			if cfg.OpenShift.InitConfig == "" {
				return nil
			}
			created, err := c.CreateSecretFromFile(ctx, cfg.OpenShift.InitSecretName, ns, InitConfigKey, cfg.OpenShift.InitConfig, corev1.SecretTypeOpaque)
			if err != nil {
				return fmt.Errorf("creating %s: %w", cfg.OpenShift.InitSecretName, err)
			}
			if !created {
				logger.Info().Str("secret", cfg.OpenShift.InitSecretName).Str("namespace", ns).Msg("secret already exists, leaving it as is")
			}
			return nil
		},
		Wait: &Wait{
			Resource:  "quayregistry",
			Namespace: ns,
			Policy:    readiness.Policy{StatusField: readiness.Presence},
			Bounds:    boundsFor(cfg, "subscription/quay-operator"),
		},
	})

	rules.Register("Subscription", "odf-operator", Rule{
		Wait: &Wait{
			Resource:  "pods",
			Namespace: storageNS,
			Policy:    readiness.Policy{StatusField: readiness.Phase, ReadyPhase: "Running", MinCount: 7},
			Bounds:    boundsFor(cfg, "subscription/odf-operator"),
		},
	})

	rules.Register("Subscription", "", Rule{
		SettleDelay: cfg.Rollout.SettleDelay,
	})

	rules.Register("MachineSet", "", Rule{
		Preprocess: func(ctx context.Context, m *types.Manifest) (*types.Manifest, error) {
			infraID, err := c.InfrastructureName(ctx)
			if err != nil {
				return nil, err
			}
			logger.Debug().Str("infrastructure", infraID).Str("name", m.Name).Msg("substituting infrastructure id")
			return renderer.Substitute(m, InfraIDPlaceholder, infraID)
		},
		Wait: &Wait{
			Resource:         "nodes",
			Label:            StorageNodeLabel,
			Policy:           readiness.Policy{StatusField: readiness.Conditions},
			ManifestReplicas: true,
			Bounds:           boundsFor(cfg, "machineset"),
		},
	})

	rules.Register("StorageCluster", "", Rule{
		Wait: &Wait{
			Resource:  "persistentvolumeclaims",
			Namespace: storageNS,
			Policy:    readiness.Policy{StatusField: readiness.Phase, ReadyPhase: "Bound", MinCount: 1},
			Bounds:    boundsFor(cfg, "storagecluster"),
		},
	})

	return rules
}
