package renderer

import (
	"context"
	"testing"
)

func TestKustomizeRenderer(t *testing.T) {
	kustomizationContent := []byte(`apiVersion: kustomize.config.k8s.io/v1beta1
kind: Kustomization
namespace: quay
resources:
- secret.yaml`)

	secretContent := []byte(`apiVersion: v1
kind: Secret
metadata:
  name: init-config-bundle-secret
stringData:
  config.yaml: |
    FEATURE_USER_INITIALIZE: true`)

	r := NewKustomizeRenderer(DefaultOptions())

	if err := r.AddFile("secret.yaml", secretContent); err != nil {
		t.Fatalf("failed to add secret.yaml: %v", err)
	}
	if err := r.AddFile("kustomization.yaml", kustomizationContent); err != nil {
		t.Fatalf("failed to add kustomization.yaml: %v", err)
	}

	if err := r.Validate(kustomizationContent); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	result, err := r.Render(context.Background(), kustomizationContent)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}

	if len(result.Manifests) != 1 {
		t.Fatalf("expected 1 manifest, got %d", len(result.Manifests))
	}

	manifest := result.Manifests[0]
	if manifest.Kind != "Secret" {
		t.Errorf("expected Secret, got %v", manifest.Kind)
	}
	if manifest.Name != "init-config-bundle-secret" {
		t.Errorf("expected init-config-bundle-secret, got %v", manifest.Name)
	}
	if manifest.Namespace != "quay" {
		t.Errorf("expected namespace quay from kustomization, got %q", manifest.Namespace)
	}
}

func TestKustomizeRenderer_Validate(t *testing.T) {
	r := NewKustomizeRenderer(nil)
	if err := r.Validate([]byte("kind: Deployment")); err == nil {
		t.Error("expected error for non-kustomization input")
	}
	if err := r.AddFile("", []byte("x")); err == nil {
		t.Error("expected error for empty file name")
	}
	if err := r.SetOptions(nil); err == nil {
		t.Error("expected error setting nil options")
	}
}
