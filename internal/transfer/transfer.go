// Package transfer copies container images between registries.
package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// Op names one step of an image transfer
type Op string

const (
	OpPull Op = "pull"
	OpTag  Op = "tag"
	OpPush Op = "push"
)

// Engine performs the three steps of an image transfer. References are
// full image references without a URL scheme.
type Engine interface {
	Pull(ctx context.Context, ref string) error
	Tag(ctx context.Context, src, dst string) error
	Push(ctx context.Context, ref string) error
}

// Credentials authenticate against one registry host
type Credentials struct {
	Username string
	Password string
}

// Options configures an engine
type Options struct {
	// Insecure allows plain HTTP and skips certificate verification
	Insecure bool
	// Auth maps registry host to credentials. Hosts without an entry use the
	// engine's default credential lookup.
	Auth map[string]Credentials
}

func (o Options) credentialsFor(ref string) (Credentials, string, bool) {
	host := Host(ref)
	creds, ok := o.Auth[host]
	return creds, host, ok
}

// TransferError reports a failed step for one image
type TransferError struct {
	Op    Op
	Image string
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Image, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// StripScheme removes a URL scheme such as "https://" from a registry
// server or image reference. Schemes are not valid in image references.
func StripScheme(ref string) string {
	if i := strings.Index(ref, "//"); i >= 0 {
		return ref[i+2:]
	}
	return ref
}

// Host returns the registry host of an image reference
func Host(ref string) string {
	ref = StripScheme(ref)
	parsed, err := name.ParseReference(ref, name.WeakValidation)
	if err != nil {
		host, _, _ := strings.Cut(ref, "/")
		return host
	}
	return parsed.Context().RegistryStr()
}

// RegistryHost returns the host of a registry server setting in the form
// Host reports for references on that registry
func RegistryHost(server string) string {
	host, _, _ := strings.Cut(strings.TrimSpace(StripScheme(server)), "/")
	reg, err := name.NewRegistry(host, name.WeakValidation)
	if err != nil {
		return host
	}
	return reg.RegistryStr()
}

// Reference joins a registry host, repository path and tag into an image
// reference
func Reference(server, repository, tag string) string {
	host := strings.TrimSuffix(StripScheme(server), "/")
	return fmt.Sprintf("%s/%s:%s", host, repository, tag)
}
