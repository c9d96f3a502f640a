package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFolderResolver_Order(t *testing.T) {
	dir := createTempDir(t, map[string]string{
		"10-storagecluster.yaml": manifestDoc("StorageCluster", "ocs"),
		"01-namespace.yaml":      manifestDoc("Namespace", "quay"),
		"02-subscriptions.yaml":  manifestDoc("Subscription", "quay-operator") + "---\n" + manifestDoc("Subscription", "odf-operator"),
		"05-machineset.yml":      manifestDoc("MachineSet", "storage"),
		"README.md":              "# manifests",
		"empty.yaml":             "   \n",
	})

	r := NewFolderResolver(dir, DefaultOptions())
	if !r.CanResolve(dir) {
		t.Fatal("expected folder resolver to handle directory")
	}

	result, meta, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []string{"Namespace/quay", "Subscription/quay-operator", "Subscription/odf-operator", "MachineSet/storage", "StorageCluster/ocs"}
	if len(result.Manifests) != len(want) {
		t.Fatalf("expected %d manifests, got %d", len(want), len(result.Manifests))
	}
	for i, m := range result.Manifests {
		if m.ID() != want[i] {
			t.Errorf("manifest %d: expected %s, got %s", i, want[i], m.ID())
		}
	}
	if meta.Type != SourceTypeFolder || meta.RendererType != RendererTypeYAML {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if result.Manifests[0].Source != "01-namespace.yaml" {
		t.Errorf("expected source 01-namespace.yaml, got %s", result.Manifests[0].Source)
	}
}

func TestFolderResolver_Nested(t *testing.T) {
	dir := createTempDir(t, map[string]string{
		"01-operators/01-quay.yaml": manifestDoc("Subscription", "quay-operator"),
		"01-operators/02-odf.yaml":  manifestDoc("Subscription", "odf-operator"),
		"02-storage/cluster.yaml":   manifestDoc("StorageCluster", "ocs"),
	})

	result, _, err := NewFolderResolver(dir, nil).Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Manifests) != 3 || result.Manifests[2].Kind != "StorageCluster" {
		t.Errorf("unexpected manifests %v", result.Manifests)
	}
	if result.Manifests[1].Source != "01-operators/02-odf.yaml" {
		t.Errorf("unexpected source %s", result.Manifests[1].Source)
	}
}

func TestFolderResolver_Kustomize(t *testing.T) {
	dir := createTempDir(t, map[string]string{
		"kustomization.yaml": "apiVersion: kustomize.config.k8s.io/v1beta1\nkind: Kustomization\nnamespace: quay\nresources:\n- registry.yaml\n",
		"registry.yaml":      "apiVersion: quay.redhat.com/v1\nkind: QuayRegistry\nmetadata:\n  name: registry\n",
	})

	result, meta, err := NewFolderResolver(dir, DefaultOptions()).Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if meta.RendererType != RendererTypeKustomize {
		t.Errorf("expected kustomize renderer, got %v", meta.RendererType)
	}
	if len(result.Manifests) != 1 || result.Manifests[0].Namespace != "quay" {
		t.Errorf("unexpected manifests %v", result.Manifests)
	}
}

func TestFolderResolver_Errors(t *testing.T) {
	empty := t.TempDir()
	if _, _, err := NewFolderResolver(empty, nil).Resolve(context.Background()); err == nil {
		t.Error("expected error for directory without YAML files")
	}

	if _, _, err := NewFolderResolver(filepath.Join(empty, "missing"), nil).Resolve(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(empty, "file.yaml")
	if err := os.WriteFile(file, []byte(manifestDoc("Namespace", "a")), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFolderResolver(file, nil).Resolve(context.Background()); err == nil {
		t.Error("expected error for regular file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewFolderResolver(empty, nil).Resolve(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestFolderResolver_Symlinks(t *testing.T) {
	target := createTempDir(t, map[string]string{
		"02-linked.yaml": manifestDoc("ConfigMap", "linked"),
	})
	dir := createTempDir(t, map[string]string{
		"01-local.yaml": manifestDoc("ConfigMap", "local"),
	})
	if err := os.Symlink(filepath.Join(target, "02-linked.yaml"), filepath.Join(dir, "02-linked.yaml")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	result, _, err := NewFolderResolver(dir, &Options{}).Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Manifests) != 1 {
		t.Errorf("expected symlink to be ignored, got %d manifests", len(result.Manifests))
	}

	result, _, err = NewFolderResolver(dir, &Options{FollowSymlinks: true}).Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Manifests) != 2 || result.Manifests[1].Name != "linked" {
		t.Errorf("expected symlink to be followed, got %v", result.Manifests)
	}
}
