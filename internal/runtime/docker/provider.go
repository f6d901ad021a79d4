// Package docker provides a Docker-based implementation of the
// runtime.Runtime interface.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	containerTypes "github.com/docker/docker/api/types/container"
	imageTypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"

	"github.com/aks-ide/gateway/internal/config"
	"github.com/aks-ide/gateway/internal/runtime"
)

// Provider implements runtime.Runtime using the Docker Engine API.
type Provider struct {
	client   *client.Client
	image    string
	platform ocispec.Platform
	log      *zap.SugaredLogger
}

// NewProvider creates a Docker runtime. An unreachable daemon is only a
// warning: sessions will surface the failure per operation, and the
// daemon may come up later.
func NewProvider(cfg *config.Config, log *zap.SugaredLogger) (*Provider, error) {
	clientOpts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if cfg.DockerHost != "" {
		clientOpts = append(clientOpts, client.WithHost(cfg.DockerHost))
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	p := &Provider{
		client:   cli,
		image:    cfg.SandboxImage,
		platform: parsePlatform(cfg.ImagePlatform),
		log:      log.With("component", "docker_runtime"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		p.log.Warnw("docker daemon not reachable", "error", err)
	}

	return p, nil
}

// parsePlatform splits "linux/amd64" into an OCI platform.
func parsePlatform(s string) ocispec.Platform {
	parts := strings.SplitN(s, "/", 2)
	p := ocispec.Platform{OS: "linux", Architecture: "amd64"}
	if len(parts) == 2 {
		p.OS = parts[0]
		p.Architecture = parts[1]
	}
	return p
}

// Image returns the configured sandbox image name.
func (p *Provider) Image() string {
	return p.image
}

// EnsureImage checks if the sandbox image exists locally and pulls it if not.
func (p *Provider) EnsureImage(ctx context.Context, progress runtime.PullProgress) error {
	if _, err := p.client.ImageInspect(ctx, p.image); err == nil {
		return nil
	}

	p.log.Infow("pulling sandbox image", "image", p.image)
	reader, err := p.client.ImagePull(ctx, p.image, imageTypes.PullOptions{
		Platform: p.platform.OS + "/" + p.platform.Architecture,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrImagePull, err)
	}
	defer func() { _ = reader.Close() }()

	if err := p.streamPullProgress(reader, progress); err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrImagePull, err)
	}

	p.log.Infow("sandbox image pulled", "image", p.image)
	return nil
}

// streamPullProgress decodes Docker pull events and forwards status lines.
// Decode errors on individual events are skipped; a transport error aborts.
func (p *Provider) streamPullProgress(reader io.Reader, progress runtime.PullProgress) error {
	decoder := json.NewDecoder(reader)
	lastStatus := ""

	for {
		var event struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if event.Error != "" {
			return fmt.Errorf("pull error: %s", event.Error)
		}
		// Collapse the per-layer noise to status transitions.
		if progress != nil && event.Status != "" && event.Status != lastStatus {
			lastStatus = event.Status
			progress(event.Status)
		}
	}
}

// CreateContainer creates a sandbox container with a TTY and an open stdin
// so a shell can be attached later. A stale container holding the same
// name is removed first.
func (p *Provider) CreateContainer(ctx context.Context, name string) (string, error) {
	containerConfig := &containerTypes.Config{
		Image:        p.image,
		Tty:          true,
		Cmd:          []string{"/bin/bash"},
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}

	resp, err := p.client.ContainerCreate(ctx, containerConfig, nil, nil, &p.platform, name)
	if err != nil {
		if !cerrdefs.IsConflict(err) {
			return "", fmt.Errorf("%w: %v", runtime.ErrCreateFailed, err)
		}
		// Name conflict from a previous run; remove the stale container
		// and retry once.
		p.log.Infow("removing stale container", "name", name)
		if rmErr := p.client.ContainerRemove(ctx, name, containerTypes.RemoveOptions{Force: true}); rmErr != nil {
			return "", fmt.Errorf("%w: %v", runtime.ErrCreateFailed, rmErr)
		}
		resp, err = p.client.ContainerCreate(ctx, containerConfig, nil, nil, &p.platform, name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", runtime.ErrCreateFailed, err)
		}
	}

	return resp.ID, nil
}

// StartContainer starts a previously created container.
func (p *Provider) StartContainer(ctx context.Context, id string) error {
	if err := p.client.ContainerStart(ctx, id, containerTypes.StartOptions{}); err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrStartFailed, err)
	}
	return nil
}

// IsRunning reports whether the container is currently running.
func (p *Provider) IsRunning(ctx context.Context, id string) (bool, error) {
	info, err := p.client.ContainerInspect(ctx, id)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, runtime.ErrNotFound
		}
		return false, fmt.Errorf("failed to inspect container: %w", err)
	}
	return info.State != nil && info.State.Running, nil
}

// Exec runs a non-interactive command in the container.
func (p *Provider) Exec(ctx context.Context, id string, cmd []string, opts runtime.ExecOptions) (*runtime.ExecResult, error) {
	env := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	execConfig := containerTypes.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  opts.Stdin != nil,
		Env:          env,
		WorkingDir:   opts.WorkDir,
	}

	execCreate, err := p.client.ContainerExecCreate(ctx, id, execConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", runtime.ErrExecFailed, err)
	}

	resp, err := p.client.ContainerExecAttach(ctx, execCreate.ID, containerTypes.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", runtime.ErrExecFailed, err)
	}
	defer resp.Close()

	if opts.Stdin != nil {
		go func() {
			_, _ = io.Copy(resp.Conn, opts.Stdin)
			_ = resp.CloseWrite()
		}()
	}

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil {
		return nil, fmt.Errorf("%w: %v", runtime.ErrExecFailed, err)
	}

	inspect, err := p.client.ContainerExecInspect(ctx, execCreate.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", runtime.ErrExecFailed, err)
	}

	return &runtime.ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}

// FileRead returns the contents of a file inside the container.
func (p *Provider) FileRead(ctx context.Context, id, filePath string) ([]byte, error) {
	res, err := p.Exec(ctx, id, []string{"cat", filePath}, runtime.ExecOptions{})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("failed to read file '%s': %s", filePath, strings.TrimSpace(string(res.Stderr)))
	}
	return res.Stdout, nil
}

// FileWrite writes content to a file inside the container. The content is
// streamed to a temp file via tee, then renamed over the target, then the
// byte count is verified with wc -c.
func (p *Provider) FileWrite(ctx context.Context, id, filePath string, content []byte) error {
	if parent := path.Dir(filePath); parent != "/" && parent != "." {
		res, err := p.Exec(ctx, id, []string{"mkdir", "-p", parent}, runtime.ExecOptions{})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			p.log.Warnw("failed to create parent directory",
				"path", parent, "stderr", strings.TrimSpace(string(res.Stderr)))
		}
	}

	tempPath := filePath + ".tmp"
	res, err := p.Exec(ctx, id, []string{"tee", tempPath}, runtime.ExecOptions{
		Stdin: bytes.NewReader(content),
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("failed to write temp file '%s': %s", tempPath, strings.TrimSpace(string(res.Stderr)))
	}

	res, err = p.Exec(ctx, id, []string{"mv", tempPath, filePath}, runtime.ExecOptions{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("failed to move temp file to '%s': %s", filePath, strings.TrimSpace(string(res.Stderr)))
	}

	res, err = p.Exec(ctx, id, []string{"wc", "-c", filePath}, runtime.ExecOptions{})
	if err != nil || res.ExitCode != 0 {
		p.log.Warnw("could not verify file size", "path", filePath)
		return nil
	}
	fields := strings.Fields(string(res.Stdout))
	if len(fields) > 0 && fields[0] != fmt.Sprintf("%d", len(content)) {
		return fmt.Errorf("size mismatch after writing '%s': wrote %d bytes, found %s", filePath, len(content), fields[0])
	}

	return nil
}

// Close closes the Docker client connection.
func (p *Provider) Close() error {
	return p.client.Close()
}
