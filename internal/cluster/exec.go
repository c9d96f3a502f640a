package cluster

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// Executor runs a command inside a pod container
type Executor func(ctx context.Context, pod, namespace, container string, argv []string, stdin io.Reader) (stdout []byte, err error)

// NewSPDYExecutor returns an Executor that uses the pods/exec subresource
func NewSPDYExecutor(config *rest.Config, typed kubernetes.Interface) Executor {
	return func(ctx context.Context, pod, namespace, container string, argv []string, stdin io.Reader) ([]byte, error) {
		req := typed.CoreV1().RESTClient().Post().
			Resource("pods").
			Name(pod).
			Namespace(namespace).
			SubResource("exec").
			VersionedParams(&corev1.PodExecOptions{
				Container: container,
				Command:   argv,
				Stdin:     stdin != nil,
				Stdout:    true,
				Stderr:    true,
			}, scheme.ParameterCodec)

		executor, err := remotecommand.NewSPDYExecutor(config, "POST", req.URL())
		if err != nil {
			return nil, fmt.Errorf("creating executor: %w", err)
		}

		var stdout, stderr bytes.Buffer
		err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
			Stdin:  stdin,
			Stdout: &stdout,
			Stderr: &stderr,
		})
		if err != nil {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return stdout.Bytes(), nil
	}
}

// ExecInPod implements Client
func (k *Kube) ExecInPod(ctx context.Context, pod, namespace, container string, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("exec: empty command")
	}
	out, err := k.exec(ctx, pod, namespace, container, argv, nil)
	if err != nil {
		return out, fmt.Errorf("exec %s in %s/%s: %w", argv[0], namespace, pod, err)
	}
	return out, nil
}

// CopyFileToPod implements Client. The file is streamed as a tar archive
// into "tar xf -" running in the pod.
func (k *Kube) CopyFileToPod(ctx context.Context, localPath, pod, namespace, container, remotePath string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", localPath, err)
	}

	var archive bytes.Buffer
	tw := tar.NewWriter(&archive)
	if err := tw.WriteHeader(&tar.Header{
		Name: path.Base(remotePath),
		Mode: 0o644,
		Size: int64(len(content)),
	}); err != nil {
		return fmt.Errorf("archiving %s: %w", localPath, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("archiving %s: %w", localPath, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archiving %s: %w", localPath, err)
	}

	argv := []string{"tar", "xf", "-", "-C", path.Dir(remotePath)}
	if _, err := k.exec(ctx, pod, namespace, container, argv, &archive); err != nil {
		return fmt.Errorf("copying %s to %s/%s:%s: %w", localPath, namespace, pod, remotePath, err)
	}
	return nil
}
