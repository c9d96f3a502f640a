package types

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Manifest represents a single cluster object definition
type Manifest struct {
	// Kind, APIVersion, Name and Namespace are copied from the object
	Kind       string `json:"kind"`
	APIVersion string `json:"apiVersion"`
	Name       string `json:"name"`
	Namespace  string `json:"namespace,omitempty"`
	// Replicas is spec.replicas when the object declares it
	Replicas *int `json:"replicas,omitempty"`
	// Source is the file the manifest was read from
	Source string `json:"source,omitempty"`
	// Raw is the YAML encoding of the object
	Raw []byte `json:"raw,omitempty"`
	// Object is the decoded object. It must be treated as read-only;
	// substitutions work on a DeepCopy.
	Object *unstructured.Unstructured `json:"-"`
}

// ID returns "Kind/name", used in logs and reports
func (m *Manifest) ID() string {
	return m.Kind + "/" + m.Name
}

// Result represents the output of rendering one manifest source
type Result struct {
	Version   string      `json:"version"`
	Name      string      `json:"name"`
	Source    string      `json:"source"`
	Manifests []*Manifest `json:"manifests,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// TransferIntent is one image to copy from the source to the target registry
type TransferIntent struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Tag         string `json:"tag"`
}
