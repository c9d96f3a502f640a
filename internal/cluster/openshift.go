package cluster

import (
	"context"
	"fmt"

	configv1 "github.com/openshift/api/config/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// infrastructureResource is the cluster-scoped singleton carrying the infra id
var infrastructureResource = configv1.GroupVersion.WithResource("infrastructures")

// InfrastructureName implements Client
func (k *Kube) InfrastructureName(ctx context.Context) (string, error) {
	obj, err := k.dynamic.Resource(infrastructureResource).Get(ctx, "cluster", metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", fmt.Errorf("%w: infrastructure/cluster not found", ErrNoInfrastructureName)
	}
	if err != nil {
		return "", fmt.Errorf("getting infrastructure/cluster: %w", err)
	}

	var infra configv1.Infrastructure
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &infra); err != nil {
		return "", fmt.Errorf("decoding infrastructure/cluster: %w", err)
	}
	if infra.Status.InfrastructureName == "" {
		return "", ErrNoInfrastructureName
	}
	return infra.Status.InfrastructureName, nil
}
