// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/phylorun/phylorun/internal/issue"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/tidwall/gjson"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats a mount as a "-v" flag value.
	// Podman uses this to add SELinux labels.
	VolumeFormatFunc func(m Mount) string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the shared implementation for CLI-based engines.
	// DockerEngine and PodmanEngine embed it and supply the engine-specific
	// pings and image lookups.
	BaseCLIEngine struct {
		name            string
		binaryPath      string
		execCommand     ExecCommandFunc
		volumeFormatter VolumeFormatFunc
	}
)

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithBinaryPath overrides the binary resolved through PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
	}
}

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:      binaryPath,
		execCommand:     exec.CommandContext,
		volumeFormatter: FormatVolumeMount,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for an image build.
//
// Generated command: <binary> build --platform <p> -t <tag> [--label k=v...] -f <dockerfile> <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions, dockerfilePath, contextDir string) []string {
	args := []string{"build", "--platform", platformOrDefault(opts.Platform)}

	if opts.Tag != "" {
		args = append(args, "-t", string(opts.Tag))
	}

	args = appendLabels(args, opts.Labels)
	args = append(args, "-f", dockerfilePath, contextDir)

	return args
}

// StartArgs constructs arguments for starting a detached container.
//
// Generated command: <binary> run -d --platform <p> [-v host:ctr...] <image> <cmd...>
func (e *BaseCLIEngine) StartArgs(opts StartOptions) []string {
	args := []string{"run", "-d", "--platform", platformOrDefault(opts.Platform)}

	args = appendLabels(args, opts.Labels)

	for _, m := range opts.Mounts {
		args = append(args, "-v", e.volumeFormatter(m))
	}

	args = append(args, string(opts.Image))
	args = append(args, opts.Cmd...)

	return args
}

// ExecArgs constructs arguments for running a command in a container.
//
// Generated command: <binary> exec [-u user] [-w dir] [-e k=v...] <container> <cmd...>
func (e *BaseCLIEngine) ExecArgs(id ContainerID, opts ExecOptions) []string {
	args := []string{"exec"}

	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	for _, k := range slices.Sorted(maps.Keys(opts.Env)) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}

	args = append(args, string(id))
	args = append(args, opts.Cmd...)

	return args
}

// StopArgs constructs arguments for stopping a container.
func (e *BaseCLIEngine) StopArgs(id ContainerID) []string {
	return []string{"stop", string(id)}
}

// RemoveArgs constructs arguments for force-removing a container.
func (e *BaseCLIEngine) RemoveArgs(id ContainerID) []string {
	return []string{"rm", "-f", string(id)}
}

// InspectLabelsArgs constructs arguments that print an image's labels as JSON.
func (e *BaseCLIEngine) InspectLabelsArgs(ref ImageRef) []string {
	return []string{"image", "inspect", "--format", "{{json .Config.Labels}}", string(ref)}
}

func appendLabels(args []string, labels map[string]string) []string {
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		args = append(args, "--label", k+"="+labels[k])
	}
	return args
}

// --- Command Execution ---

// CreateCommand creates an exec.Cmd for the given arguments.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// RunCommandWithOutput executes a command and returns its stdout. The error
// carries stderr so callers can classify failures.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(errOut.String()); msg != "" {
			return out.String(), fmt.Errorf("command %s %v failed: %w: %s", e.binaryPath, args, err, msg)
		}
		return out.String(), fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	_, err := e.RunCommandWithOutput(ctx, args...)
	return err
}

// Close is a no-op; CLI engines hold no client resources.
func (e *BaseCLIEngine) Close() error {
	return nil
}

// --- Promoted Engine Methods (shared by Docker and Podman) ---

// Build writes the Dockerfile to a temporary context directory and builds it.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	contextDir, err := os.MkdirTemp("", "phylorun-build-*")
	if err != nil {
		return fmt.Errorf("create build context: %w", err)
	}
	defer func() { _ = os.RemoveAll(contextDir) }()

	dockerfilePath := filepath.Join(contextDir, "Dockerfile")
	if err := os.WriteFile(dockerfilePath, []byte(opts.Dockerfile), 0o600); err != nil {
		return fmt.Errorf("write Dockerfile: %w", err)
	}

	cmd := e.CreateCommand(ctx, e.BuildArgs(opts, dockerfilePath, contextDir)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, err)
	}

	return nil
}

// Start runs a detached container and returns the ID it prints.
func (e *BaseCLIEngine) Start(ctx context.Context, opts StartOptions) (ContainerID, error) {
	out, err := e.RunCommandWithOutput(ctx, e.StartArgs(opts)...)
	if err != nil {
		return "", fmt.Errorf("start container from %s: %w", opts.Image, err)
	}

	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("start container from %s: %s printed no container ID", opts.Image, e.name)
	}

	return ContainerID(id), nil
}

// Exec runs a command in a running container.
// A non-zero exit code of the command is returned without an error; only
// failures to run the engine binary itself are errors.
func (e *BaseCLIEngine) Exec(ctx context.Context, id ContainerID, opts ExecOptions) (types.ExitCode, error) {
	cmd := e.CreateCommand(ctx, e.ExecArgs(id, opts)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()
	if err == nil {
		return types.ExitSuccess, nil
	}
	if code, ok := types.ExitCodeFromError(err); ok {
		return code, nil
	}
	return types.ExitFailure, fmt.Errorf("exec in container %s: %w", id, err)
}

// Stop stops a container.
func (e *BaseCLIEngine) Stop(ctx context.Context, id ContainerID) error {
	return e.RunCommandStatus(ctx, e.StopArgs(id)...)
}

// Remove force-removes a container.
func (e *BaseCLIEngine) Remove(ctx context.Context, id ContainerID) error {
	return e.RunCommandStatus(ctx, e.RemoveArgs(id)...)
}

// inspectLabels runs InspectLabelsArgs and parses the JSON object it prints.
func (e *BaseCLIEngine) inspectLabels(ctx context.Context, ref ImageRef) (ImageInfo, error) {
	out, err := e.RunCommandWithOutput(ctx, e.InspectLabelsArgs(ref)...)
	if err != nil {
		return ImageInfo{}, err
	}
	return ImageInfo{Labels: ParseLabels(out)}, nil
}

// ParseLabels decodes a JSON label object as printed by "image inspect".
// "null" and malformed output yield an empty map.
func ParseLabels(out string) map[string]string {
	labels := make(map[string]string)
	parsed := gjson.Parse(strings.TrimSpace(out))
	if !parsed.IsObject() {
		return labels
	}
	parsed.ForEach(func(key, value gjson.Result) bool {
		labels[key.String()] = value.String()
		return true
	})
	return labels
}

// FormatVolumeMount formats a mount as a string for the -v flag.
func FormatVolumeMount(m Mount) string {
	s := m.HostPath + ":" + m.ContainerPath
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// --- Actionable Error Helpers ---

// buildContainerError creates an actionable error for image build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image").
		WithResource(string(opts.Tag)).
		WithIssue(issue.ImageBuildFailedId)

	ctx.WithSuggestion("Check that the release archive URL in the image catalog is reachable")
	ctx.WithSuggestion("Ensure base images are available (try: " + engine + " pull ubuntu:latest)")
	if IsTransientError(cause) {
		ctx.WithSuggestion("The failure looks transient; retry the run")
	}
	ctx.WithSuggestion("Run with --verbose to see full build output")

	return ctx.Wrap(cause).BuildError()
}

// isExitError reports whether err carries a process exit status.
func isExitError(err error) bool {
	_, ok := errors.AsType[*exec.ExitError](err)
	return ok
}
