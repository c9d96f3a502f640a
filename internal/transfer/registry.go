package transfer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// ErrNotPulled is returned when tagging or pushing an image that was not
// pulled first
var ErrNotPulled = errors.New("image was not pulled")

// Registry moves images registry to registry without a daemon. Pulled
// manifests are held in memory until pushed and blobs are streamed on push.
type Registry struct {
	opts      Options
	transport http.RoundTripper

	mu     sync.Mutex
	images map[string]*remote.Descriptor
	// origin maps a tag to the pulled reference it was made from
	origin map[string]string
}

var _ Engine = (*Registry)(nil)

// NewRegistry creates a daemonless engine
func NewRegistry(opts Options) *Registry {
	var rt http.RoundTripper = remote.DefaultTransport
	if opts.Insecure {
		t := remote.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // requested by skip_tls_verify
		rt = t
	}
	return &Registry{
		opts:      opts,
		transport: rt,
		images:    map[string]*remote.Descriptor{},
		origin:    map[string]string{},
	}
}

func (r *Registry) reference(ref string) (name.Reference, error) {
	nameOpts := []name.Option{name.WeakValidation}
	if r.opts.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	parsed, err := name.ParseReference(ref, nameOpts...)
	if err != nil {
		return nil, fmt.Errorf("parse reference: %w", err)
	}
	return parsed, nil
}

func (r *Registry) remoteOptions(ctx context.Context, ref string) []remote.Option {
	opts := []remote.Option{
		remote.WithContext(ctx),
		remote.WithTransport(r.transport),
	}
	if creds, _, ok := r.opts.credentialsFor(ref); ok {
		opts = append(opts, remote.WithAuth(&authn.Basic{
			Username: creds.Username,
			Password: creds.Password,
		}))
	} else {
		opts = append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	}
	return opts
}

// Pull fetches the manifest of ref
func (r *Registry) Pull(ctx context.Context, ref string) error {
	parsed, err := r.reference(ref)
	if err != nil {
		return &TransferError{Op: OpPull, Image: ref, Err: err}
	}
	desc, err := remote.Get(parsed, r.remoteOptions(ctx, ref)...)
	if err != nil {
		return &TransferError{Op: OpPull, Image: ref, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[ref] = desc
	return nil
}

// Tag names the pulled image src as dst
func (r *Registry) Tag(_ context.Context, src, dst string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.images[src]
	if !ok {
		return &TransferError{Op: OpTag, Image: dst, Err: fmt.Errorf("%w: %s", ErrNotPulled, src)}
	}
	r.images[dst] = desc
	if dst != src {
		r.origin[dst] = src
	}
	return nil
}

// Push writes the image tagged as ref, with all its blobs, to ref's
// registry
func (r *Registry) Push(ctx context.Context, ref string) error {
	r.mu.Lock()
	desc, ok := r.images[ref]
	r.mu.Unlock()
	if !ok {
		return &TransferError{Op: OpPush, Image: ref, Err: fmt.Errorf("%w: %s", ErrNotPulled, ref)}
	}

	parsed, err := r.reference(ref)
	if err != nil {
		return &TransferError{Op: OpPush, Image: ref, Err: err}
	}
	opts := r.remoteOptions(ctx, ref)

	if desc.MediaType.IsIndex() {
		idx, err := desc.ImageIndex()
		if err != nil {
			return &TransferError{Op: OpPush, Image: ref, Err: err}
		}
		if err := remote.WriteIndex(parsed, idx, opts...); err != nil {
			return &TransferError{Op: OpPush, Image: ref, Err: err}
		}
		r.release(ref)
		return nil
	}

	img, err := desc.Image()
	if err != nil {
		return &TransferError{Op: OpPush, Image: ref, Err: err}
	}
	if err := remote.Write(parsed, img, opts...); err != nil {
		return &TransferError{Op: OpPush, Image: ref, Err: err}
	}
	r.release(ref)
	return nil
}

// release drops a pushed image and the pull it was tagged from
func (r *Registry) release(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src, ok := r.origin[ref]; ok {
		delete(r.images, src)
		delete(r.origin, ref)
	}
	delete(r.images, ref)
}

// held reports how many image references are kept in memory
func (r *Registry) held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}
