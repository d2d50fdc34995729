// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// PodmanEngine implements the Engine interface using the podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new podman engine.
// On Linux with SELinux enforcing, bind mounts are labeled with :z.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")

	allOpts := append([]BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(selinuxVolumeFormatter(isSELinuxEnabled)),
	}, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Ping checks that the podman binary exists and answers.
func (e *PodmanEngine) Ping(ctx context.Context) error {
	if e.BinaryPath() == "" {
		return &EngineNotAvailableError{Engine: EngineTypePodman, Reason: "podman binary not found in PATH"}
	}
	if _, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}"); err != nil {
		return &EngineNotAvailableError{Engine: EngineTypePodman, Reason: err.Error()}
	}
	return nil
}

// InspectImage returns the image labels, or ErrImageNotFound.
// "podman image exists" exits 1 for a missing image.
func (e *PodmanEngine) InspectImage(ctx context.Context, ref ImageRef) (ImageInfo, error) {
	if err := e.RunCommandStatus(ctx, "image", "exists", string(ref)); err != nil {
		if isExitError(err) {
			return ImageInfo{}, fmt.Errorf("%w: %s", ErrImageNotFound, ref)
		}
		return ImageInfo{}, fmt.Errorf("inspect image %s: %w", ref, err)
	}

	info, err := e.inspectLabels(ctx, ref)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("inspect image %s: %w", ref, err)
	}
	return info, nil
}

// isSELinuxEnabled checks if SELinux is enforcing on the system.
func isSELinuxEnabled() bool {
	data, err := os.ReadFile("/sys/fs/selinux/enforce")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// selinuxVolumeFormatter appends the shared :z label when enabled reports true.
func selinuxVolumeFormatter(enabled func() bool) VolumeFormatFunc {
	return func(m Mount) string {
		s := FormatVolumeMount(m)
		if !enabled() {
			return s
		}
		if m.ReadOnly {
			return s + ",z"
		}
		return s + ":z"
	}
}
