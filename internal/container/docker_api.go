// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/phylorun/phylorun/pkg/types"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/docker/docker/api/types/build"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/moby/go-archive"
	"github.com/moby/term"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// apiPingTimeout bounds the daemon ping so a dead DOCKER_HOST fails fast.
const apiPingTimeout = 5 * time.Second

// DockerAPIEngine implements the Engine interface against the Docker Engine
// HTTP API. DOCKER_HOST and the related variables are honored.
type DockerAPIEngine struct {
	cli client.APIClient
}

// NewDockerAPIEngine creates a client from the environment with API version
// negotiation. The daemon is not contacted until Ping.
func NewDockerAPIEngine() (*DockerAPIEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &EngineNotAvailableError{Engine: EngineTypeDocker, Reason: err.Error()}
	}
	return &DockerAPIEngine{cli: cli}, nil
}

// newDockerAPIEngineWithClient wraps an existing client. Used by tests.
func newDockerAPIEngineWithClient(cli client.APIClient) *DockerAPIEngine {
	return &DockerAPIEngine{cli: cli}
}

// Name returns the engine name.
func (e *DockerAPIEngine) Name() string {
	return string(EngineTypeDocker)
}

// Ping checks that the daemon answers.
func (e *DockerAPIEngine) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, apiPingTimeout)
	defer cancel()

	if _, err := e.cli.Ping(ctx); err != nil {
		return &EngineNotAvailableError{Engine: EngineTypeDocker, Reason: err.Error()}
	}
	return nil
}

// InspectImage returns the image labels, or ErrImageNotFound.
func (e *DockerAPIEngine) InspectImage(ctx context.Context, ref ImageRef) (ImageInfo, error) {
	resp, err := e.cli.ImageInspect(ctx, string(ref))
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return ImageInfo{}, fmt.Errorf("%w: %s", ErrImageNotFound, ref)
		}
		return ImageInfo{}, fmt.Errorf("inspect image %s: %w", ref, err)
	}

	info := ImageInfo{Labels: map[string]string{}}
	if resp.Config != nil {
		maps.Copy(info.Labels, resp.Config.Labels)
	}
	return info, nil
}

// Build sends a one-file build context and renders the progress stream.
func (e *DockerAPIEngine) Build(ctx context.Context, opts BuildOptions) error {
	buildContext, err := archive.Generate("Dockerfile", opts.Dockerfile)
	if err != nil {
		return fmt.Errorf("create build context: %w", err)
	}

	resp, err := e.cli.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:        []string{string(opts.Tag)},
		Dockerfile:  "Dockerfile",
		Labels:      opts.Labels,
		Platform:    platformOrDefault(opts.Platform),
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return buildContainerError(e.Name(), opts, err)
	}
	defer func() { _ = resp.Body.Close() }()

	out := opts.Stderr
	if out == nil {
		out = io.Discard
	}
	fd, isTerminal := term.GetFdInfo(out)
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, fd, isTerminal, nil); err != nil {
		return buildContainerError(e.Name(), opts, err)
	}

	return nil
}

// Start creates and starts a detached container. A container that was
// created but failed to start is removed before returning.
func (e *DockerAPIEngine) Start(ctx context.Context, opts StartOptions) (ContainerID, error) {
	platform, err := parsePlatform(opts.Platform)
	if err != nil {
		return "", err
	}

	mounts := make([]mount.Mount, 0, len(opts.Mounts))
	for _, m := range opts.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.HostPath,
			Target:   m.ContainerPath,
			ReadOnly: m.ReadOnly,
		})
	}

	created, err := e.cli.ContainerCreate(ctx,
		&dockercontainer.Config{
			Image:  string(opts.Image),
			Cmd:    opts.Cmd,
			Labels: opts.Labels,
		},
		&dockercontainer.HostConfig{Mounts: mounts},
		nil,
		platform,
		"",
	)
	if err != nil {
		return "", fmt.Errorf("create container from %s: %w", opts.Image, err)
	}

	if err := e.cli.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		_ = e.cli.ContainerRemove(context.WithoutCancel(ctx), created.ID, dockercontainer.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container %s: %w", created.ID, err)
	}

	return ContainerID(created.ID), nil
}

// Exec runs a command and copies the demultiplexed output streams as they
// arrive. The exit code comes from inspecting the finished exec.
func (e *DockerAPIEngine) Exec(ctx context.Context, id ContainerID, opts ExecOptions) (types.ExitCode, error) {
	env := make([]string, 0, len(opts.Env))
	for _, k := range slices.Sorted(maps.Keys(opts.Env)) {
		env = append(env, k+"="+opts.Env[k])
	}

	created, err := e.cli.ContainerExecCreate(ctx, string(id), dockercontainer.ExecOptions{
		User:         opts.User,
		WorkingDir:   opts.WorkDir,
		Env:          env,
		Cmd:          opts.Cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return types.ExitFailure, fmt.Errorf("create exec in %s: %w", id, err)
	}

	attach, err := e.cli.ContainerExecAttach(ctx, created.ID, dockercontainer.ExecAttachOptions{})
	if err != nil {
		return types.ExitFailure, fmt.Errorf("attach exec in %s: %w", id, err)
	}
	defer attach.Close()

	// The hijacked connection does not observe ctx on its own.
	stop := context.AfterFunc(ctx, attach.Close)
	defer stop()

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if _, err := stdcopy.StdCopy(stdout, stderr, attach.Reader); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.ExitFailure, fmt.Errorf("exec in %s: %w", id, ctxErr)
		}
		return types.ExitFailure, fmt.Errorf("stream exec output from %s: %w", id, err)
	}

	inspect, err := e.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return types.ExitFailure, fmt.Errorf("inspect exec in %s: %w", id, err)
	}

	return types.ExitCode(inspect.ExitCode).Normalize(), nil
}

// Stop stops a container.
func (e *DockerAPIEngine) Stop(ctx context.Context, id ContainerID) error {
	if err := e.cli.ContainerStop(ctx, string(id), dockercontainer.StopOptions{}); err != nil {
		return fmt.Errorf("stop container %s: %w", id, err)
	}
	return nil
}

// Remove force-removes a container.
func (e *DockerAPIEngine) Remove(ctx context.Context, id ContainerID) error {
	if err := e.cli.ContainerRemove(ctx, string(id), dockercontainer.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container %s: %w", id, err)
	}
	return nil
}

// Close closes the API client.
func (e *DockerAPIEngine) Close() error {
	return e.cli.Close()
}

func parsePlatform(p string) (*ocispec.Platform, error) {
	parsed, err := platforms.Parse(platformOrDefault(p))
	if err != nil {
		return nil, fmt.Errorf("invalid platform %q: %w", p, err)
	}
	return &parsed, nil
}
