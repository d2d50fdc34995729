// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DockerEngine implements the Engine interface using the docker CLI.
// It embeds BaseCLIEngine for common CLI operations.
type DockerEngine struct {
	*BaseCLIEngine
}

// NewDockerEngine creates a new docker CLI engine.
func NewDockerEngine(opts ...BaseCLIEngineOption) *DockerEngine {
	path, _ := exec.LookPath("docker")
	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypeDockerCLI))}, opts...)
	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Ping checks that the docker binary exists and its daemon answers.
func (e *DockerEngine) Ping(ctx context.Context) error {
	if e.BinaryPath() == "" {
		return &EngineNotAvailableError{Engine: EngineTypeDockerCLI, Reason: "docker binary not found in PATH"}
	}
	if _, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Server.Version}}"); err != nil {
		return &EngineNotAvailableError{Engine: EngineTypeDockerCLI, Reason: err.Error()}
	}
	return nil
}

// InspectImage returns the image labels, or ErrImageNotFound.
func (e *DockerEngine) InspectImage(ctx context.Context, ref ImageRef) (ImageInfo, error) {
	info, err := e.inspectLabels(ctx, ref)
	if err == nil {
		return info, nil
	}
	if isExitError(err) && strings.Contains(strings.ToLower(err.Error()), "no such image") {
		return ImageInfo{}, fmt.Errorf("%w: %s", ErrImageNotFound, ref)
	}
	return ImageInfo{}, fmt.Errorf("inspect image %s: %w", ref, err)
}
