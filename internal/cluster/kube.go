package cluster

import (
	"context"
	"fmt"
	"os"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/types"
)

// Kube implements Client over client-go
type Kube struct {
	dynamic dynamic.Interface
	typed   kubernetes.Interface
	mapper  meta.RESTMapper
	exec    Executor
}

var _ Client = (*Kube)(nil)

// BuildRESTConfig builds a REST config from a kubeconfig path and optional
// context. An empty path uses the standard loading rules (KUBECONFIG, then
// ~/.kube/config).
func BuildRESTConfig(kubeconfig, context string) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}

	overrides := &clientcmd.ConfigOverrides{}
	if context != "" {
		overrides.CurrentContext = context
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return restConfig, nil
}

// New connects to the cluster named by kubeconfig and context
func New(kubeconfig, context string) (*Kube, error) {
	restConfig, err := BuildRESTConfig(kubeconfig, context)
	if err != nil {
		return nil, err
	}

	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	typed, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	disco := memory.NewMemCacheClient(typed.Discovery())
	mapper := restmapper.NewShortcutExpander(
		restmapper.NewDeferredDiscoveryRESTMapper(disco),
		disco,
		func(msg string) { logger.Warn().Msg(msg) },
	)

	return NewForClients(dyn, typed, mapper, NewSPDYExecutor(restConfig, typed)), nil
}

// NewForClients assembles a Kube from existing clients
func NewForClients(dyn dynamic.Interface, typed kubernetes.Interface, mapper meta.RESTMapper, exec Executor) *Kube {
	return &Kube{
		dynamic: dyn,
		typed:   typed,
		mapper:  mapper,
		exec:    exec,
	}
}

// resolve maps a resource name to its REST mapping
func (k *Kube) resolve(resource string) (*meta.RESTMapping, error) {
	gvr, err := k.mapper.ResourceFor(schema.ParseGroupResource(resource).WithVersion(""))
	if err != nil {
		return nil, err
	}
	gvk, err := k.mapper.KindFor(gvr)
	if err != nil {
		return nil, err
	}
	return k.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
}

// mapping maps gvk, rediscovering once when the kind is not known yet.
// Operators installed earlier in a rollout serve new API groups.
func (k *Kube) mapping(gvk schema.GroupVersionKind) (*meta.RESTMapping, error) {
	mapping, err := k.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil && meta.IsNoMatchError(err) {
		meta.MaybeResetRESTMapper(k.mapper)
		mapping, err = k.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	}
	return mapping, err
}

// Get implements Client
func (k *Kube) Get(ctx context.Context, q Query) (*unstructured.UnstructuredList, error) {
	empty := &unstructured.UnstructuredList{}

	mapping, err := k.resolve(q.Resource)
	if err != nil {
		if meta.IsNoMatchError(err) {
			// The API group may not be served yet; rediscover on the next call
			meta.MaybeResetRESTMapper(k.mapper)
			logger.Debug().Str("resource", q.Resource).Msg("resource type not served yet")
			return empty, nil
		}
		return nil, fmt.Errorf("resolving %s: %w", q.Resource, err)
	}

	var ri dynamic.ResourceInterface = k.dynamic.Resource(mapping.Resource)
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		ri = k.dynamic.Resource(mapping.Resource).Namespace(q.Namespace)
	}

	if q.Name != "" {
		obj, err := ri.Get(ctx, q.Name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return empty, nil
		}
		if err != nil {
			return nil, fmt.Errorf("getting %s/%s: %w", q.Resource, q.Name, err)
		}
		empty.Items = append(empty.Items, *obj)
		return empty, nil
	}

	list, err := ri.List(ctx, metav1.ListOptions{LabelSelector: q.Label})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", q.Resource, err)
	}
	return list, nil
}

// Apply implements Client
func (k *Kube) Apply(ctx context.Context, m *types.Manifest, namespace string) error {
	if m == nil || m.Object == nil {
		return fmt.Errorf("apply: empty manifest")
	}
	obj := m.Object.DeepCopy()
	gvk := obj.GroupVersionKind()

	mapping, err := k.mapping(gvk)
	if err != nil {
		return fmt.Errorf("mapping %s: %w", gvk.String(), err)
	}

	var ri dynamic.ResourceInterface = k.dynamic.Resource(mapping.Resource)
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		if obj.GetNamespace() == "" {
			obj.SetNamespace(namespace)
		}
		ri = k.dynamic.Resource(mapping.Resource).Namespace(obj.GetNamespace())
	} else {
		obj.SetNamespace("")
	}

	data, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", m.ID(), err)
	}

	force := true
	_, err = ri.Patch(ctx, obj.GetName(), k8stypes.ApplyPatchType, data, metav1.PatchOptions{
		FieldManager: FieldManager,
		Force:        &force,
	})
	if err != nil {
		return err
	}
	return nil
}

// CreateSecretFromFile implements Client
func (k *Kube) CreateSecretFromFile(ctx context.Context, name, namespace, key, path string, secretType corev1.SecretType) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if secretType == "" {
		secretType = corev1.SecretTypeOpaque
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Type:       secretType,
		Data:       map[string][]byte{key: content},
	}
	_, err = k.typed.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{FieldManager: FieldManager})
	if apierrors.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating secret %s/%s: %w", namespace, name, err)
	}
	return true, nil
}

// ReplaceSecretFromFile implements Client
func (k *Kube) ReplaceSecretFromFile(ctx context.Context, name, namespace, key, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	secrets := k.typed.CoreV1().Secrets(namespace)
	secret, err := secrets.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err = k.CreateSecretFromFile(ctx, name, namespace, key, path, corev1.SecretTypeOpaque)
		return err
	}
	if err != nil {
		return fmt.Errorf("getting secret %s/%s: %w", namespace, name, err)
	}

	if secret.Data == nil {
		secret.Data = map[string][]byte{}
	}
	secret.Data[key] = content
	if _, err := secrets.Update(ctx, secret, metav1.UpdateOptions{FieldManager: FieldManager}); err != nil {
		return fmt.Errorf("updating secret %s/%s: %w", namespace, name, err)
	}
	return nil
}

// FindPod implements Client
func (k *Kube) FindPod(ctx context.Context, namespace, selector string) (string, error) {
	pods, err := k.typed.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return "", fmt.Errorf("listing pods %q in %s: %w", selector, namespace, err)
	}
	for _, pod := range pods.Items {
		if pod.Status.Phase == corev1.PodRunning {
			return pod.Name, nil
		}
	}
	return "", fmt.Errorf("%w: selector %q in %s", ErrNoPod, selector, namespace)
}
