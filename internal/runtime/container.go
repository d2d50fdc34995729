// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/phylorun/phylorun/internal/container"
	"github.com/phylorun/phylorun/internal/provision"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/charmbracelet/log"
)

const (
	// DataDir is where the analysis file's directory is mounted.
	DataDir = "/data"
	// WorkingDir is where the caller's working directory is mounted when it
	// differs from the analysis file's directory.
	WorkingDir = "/working"

	// ExecUser runs every exec step.
	ExecUser = "root"

	teardownTimeout = 30 * time.Second
)

// keepAlive keeps the container running between exec steps.
var keepAlive = []string{"sleep", "infinity"}

type (
	// Job is one containerized analysis: an image and the commands to run
	// in order inside a single container.
	Job struct {
		Image provision.Image
		// HostFile is the analysis file on the host. Its directory is
		// mounted at DataDir.
		HostFile string
		// Steps run in order. The first non-zero exit stops the job.
		Steps [][]string
	}

	// ConnectFunc returns a reachable container engine.
	ConnectFunc func(ctx context.Context) (container.Engine, error)

	// ContainerOption configures a ContainerRuntime.
	ContainerOption func(*ContainerRuntime)

	// ContainerRuntime runs jobs inside short-lived containers.
	ContainerRuntime struct {
		connect       ConnectFunc
		platform      string
		provisionOpts []provision.Option
		logger        *log.Logger
		stdout        io.Writer
		stderr        io.Writer
		getwd         func() (string, error)
	}
)

// WithContainerLogger sets the logger.
func WithContainerLogger(logger *log.Logger) ContainerOption {
	return func(r *ContainerRuntime) {
		r.logger = logger
	}
}

// WithContainerStreams sets where exec output is written.
func WithContainerStreams(stdout, stderr io.Writer) ContainerOption {
	return func(r *ContainerRuntime) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithContainerPlatform sets the platform containers are started on.
func WithContainerPlatform(platform string) ContainerOption {
	return func(r *ContainerRuntime) {
		r.platform = platform
	}
}

// WithProvisionOptions sets the options images are provisioned with.
func WithProvisionOptions(opts ...provision.Option) ContainerOption {
	return func(r *ContainerRuntime) {
		r.provisionOpts = opts
	}
}

// WithGetwd sets the working directory lookup used for mounts.
func WithGetwd(getwd func() (string, error)) ContainerOption {
	return func(r *ContainerRuntime) {
		r.getwd = getwd
	}
}

// NewContainerRuntime creates a runtime that obtains its engine from
// connect on every run.
func NewContainerRuntime(connect ConnectFunc, opts ...ContainerOption) *ContainerRuntime {
	r := &ContainerRuntime{
		connect:  connect,
		platform: container.DefaultPlatform,
		logger:   log.New(io.Discard),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		getwd:    os.Getwd,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ContainerPath returns where hostFile appears inside the container.
func ContainerPath(hostFile string) string {
	return path.Join(DataDir, filepath.Base(hostFile))
}

// Run provisions the job's image, starts a container and runs the steps.
// Once the container has started it is stopped and removed exactly once,
// also when a step fails or ctx is cancelled.
func (r *ContainerRuntime) Run(ctx context.Context, job Job) (types.ExitCode, error) {
	if len(job.Steps) == 0 {
		return types.ExitFailure, errors.New("container job has no steps")
	}

	mounts, workDir, err := r.mounts(job.HostFile)
	if err != nil {
		return types.ExitFailure, err
	}

	engine, err := r.connect(ctx)
	if err != nil {
		return types.ExitFailure, err
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			r.logger.Debug("Closing container engine", "err", closeErr)
		}
	}()

	provisionOpts := append([]provision.Option{provision.WithPlatform(r.platform)}, r.provisionOpts...)
	if err := provision.NewImageProvisioner(engine, r.logger, provisionOpts...).EnsureImage(ctx, job.Image); err != nil {
		return types.ExitFailure, &ImageError{Ref: string(job.Image.Ref), Err: err}
	}

	id, err := engine.Start(ctx, container.StartOptions{
		Image:    job.Image.Ref,
		Mounts:   mounts,
		Platform: r.platform,
		Cmd:      keepAlive,
		Labels:   map[string]string{provision.LabelEngine: string(job.Image.Key)},
	})
	if err != nil {
		return types.ExitFailure, &ExecutionError{Op: "start container from " + string(job.Image.Ref), Err: err}
	}
	r.logger.Debug("Started container", "id", id, "image", job.Image.Ref, "workdir", workDir)
	defer r.teardown(ctx, engine, id)

	for _, step := range job.Steps {
		r.logger.Debug("Running in container", "command", FormatCommand(step[0], step[1:]...))

		code, err := engine.Exec(ctx, id, container.ExecOptions{
			Cmd:     step,
			WorkDir: workDir,
			User:    ExecUser,
			Stdout:  r.stdout,
			Stderr:  r.stderr,
		})
		if err != nil {
			return types.ExitFailure, &ExecutionError{Op: "exec", Command: step, Err: err}
		}
		if !code.IsSuccess() {
			return code, nil
		}
	}
	return types.ExitSuccess, nil
}

// mounts returns the bind mounts and exec working directory for hostFile.
func (r *ContainerRuntime) mounts(hostFile string) ([]container.Mount, string, error) {
	abs, err := filepath.Abs(hostFile)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", hostFile, err)
	}
	dataDir := filepath.Dir(abs)

	mounts := []container.Mount{{HostPath: dataDir, ContainerPath: DataDir}}

	cwd, err := r.getwd()
	if err != nil {
		return nil, "", fmt.Errorf("get working directory: %w", err)
	}
	if filepath.Clean(cwd) == dataDir {
		return mounts, DataDir, nil
	}
	return append(mounts, container.Mount{HostPath: filepath.Clean(cwd), ContainerPath: WorkingDir}), WorkingDir, nil
}

// teardown stops and removes the container on a context that survives
// cancellation of the run.
func (r *ContainerRuntime) teardown(ctx context.Context, engine container.Engine, id container.ContainerID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	if err := engine.Stop(ctx, id); err != nil {
		r.logger.Warn("Failed to stop container", "id", id, "err", err)
	}
	if err := engine.Remove(ctx, id); err != nil {
		r.logger.Warn("Failed to remove container", "id", id, "err", err)
		return
	}
	r.logger.Debug("Removed container", "id", id)
}
