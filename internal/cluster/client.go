// Package cluster wraps the cluster object API used by the rollout and the
// database token flow. Every read returns structured objects.
package cluster

import (
	"context"
	"errors"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/alevsk/quay-ops/internal/types"
)

// FieldManager identifies this tool in server-side apply
const FieldManager = "quay-ops"

var (
	// ErrNoPod is returned when no running pod matches a selector
	ErrNoPod = errors.New("no running pod found")
	// ErrNoInfrastructureName is returned when the cluster infrastructure
	// object does not report an infrastructure name
	ErrNoInfrastructureName = errors.New("infrastructure name not reported")
)

// Query selects cluster objects. Resource accepts a plural, singular or
// short name ("pods", "quayregistry", "pvc") and may be group qualified.
type Query struct {
	Resource  string
	Name      string
	Namespace string
	Label     string
}

// Client is the set of cluster operations the tool needs
type Client interface {
	// Get returns the matching objects. An unknown resource type or a
	// missing named object yields an empty list.
	Get(ctx context.Context, q Query) (*unstructured.UnstructuredList, error)
	// Apply creates or updates the manifest with server-side apply.
	// Namespaced objects without a namespace go to the given namespace.
	Apply(ctx context.Context, m *types.Manifest, namespace string) error
	// CreateSecretFromFile creates a secret holding the file under key.
	// It reports false without error when the secret already exists.
	CreateSecretFromFile(ctx context.Context, name, namespace, key, path string, secretType corev1.SecretType) (bool, error)
	// ReplaceSecretFromFile overwrites key of an existing secret, creating
	// the secret when absent.
	ReplaceSecretFromFile(ctx context.Context, name, namespace, key, path string) error
	// FindPod returns the name of a running pod matching the label selector
	FindPod(ctx context.Context, namespace, selector string) (string, error)
	// ExecInPod runs argv in the pod and returns its stdout
	ExecInPod(ctx context.Context, pod, namespace, container string, argv []string) ([]byte, error)
	// CopyFileToPod copies a local file to remotePath inside the pod
	CopyFileToPod(ctx context.Context, localPath, pod, namespace, container, remotePath string) error
	// InfrastructureName returns the OpenShift infrastructure id
	InfrastructureName(ctx context.Context) (string, error)
}
