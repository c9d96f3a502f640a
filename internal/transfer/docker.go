package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/alevsk/quay-ops/internal/logger"
)

// DockerAPI is the part of the Docker client the engine uses
type DockerAPI interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
}

// Docker moves images through a local Docker daemon. TLS settings of the
// daemon apply; Options.Insecure has no effect here.
type Docker struct {
	api  DockerAPI
	opts Options
}

var _ Engine = (*Docker)(nil)

// NewDocker connects to the daemon named by the DOCKER_* environment
func NewDocker(opts Options) (*Docker, error) {
	api, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	if opts.Insecure {
		logger.Debug().Msg("insecure registries must be configured on the docker daemon")
	}
	return NewDockerWithClient(api, opts), nil
}

// NewDockerWithClient wraps an existing client
func NewDockerWithClient(api DockerAPI, opts Options) *Docker {
	return &Docker{api: api, opts: opts}
}

// registryAuth returns the encoded credentials for the reference's host,
// or "" when none are configured
func (d *Docker) registryAuth(ref string) (string, error) {
	creds, host, ok := d.opts.credentialsFor(ref)
	if !ok {
		return "", nil
	}
	return registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Password,
		ServerAddress: host,
	})
}

// Pull pulls ref into the daemon
func (d *Docker) Pull(ctx context.Context, ref string) error {
	auth, err := d.registryAuth(ref)
	if err != nil {
		return &TransferError{Op: OpPull, Image: ref, Err: err}
	}
	reader, err := d.api.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: auth})
	if err != nil {
		return &TransferError{Op: OpPull, Image: ref, Err: err}
	}
	if err := consume(reader); err != nil {
		return &TransferError{Op: OpPull, Image: ref, Err: err}
	}
	return nil
}

// Tag adds dst as a name of the local image src
func (d *Docker) Tag(ctx context.Context, src, dst string) error {
	if err := d.api.ImageTag(ctx, src, dst); err != nil {
		return &TransferError{Op: OpTag, Image: dst, Err: err}
	}
	return nil
}

// Push pushes the local image ref to its registry
func (d *Docker) Push(ctx context.Context, ref string) error {
	auth, err := d.registryAuth(ref)
	if err != nil {
		return &TransferError{Op: OpPush, Image: ref, Err: err}
	}
	reader, err := d.api.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return &TransferError{Op: OpPush, Image: ref, Err: err}
	}
	if err := consume(reader); err != nil {
		return &TransferError{Op: OpPush, Image: ref, Err: err}
	}
	return nil
}

// consume drains a progress stream. Errors reported inside the stream are
// returned.
func consume(reader io.ReadCloser) error {
	streamErr := jsonmessage.DisplayJSONMessagesStream(reader, io.Discard, 0, false, nil)
	closeErr := reader.Close()
	if streamErr != nil {
		return streamErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close progress stream: %w", closeErr)
	}
	return nil
}
