// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/phylorun/phylorun/pkg/types"
)

const (
	// EngineTypeAuto tries the Docker API, then the docker CLI, then podman.
	EngineTypeAuto EngineType = "auto"
	// EngineTypeDocker talks to the Docker daemon through its HTTP API.
	EngineTypeDocker EngineType = "docker"
	// EngineTypeDockerCLI shells out to the docker binary.
	EngineTypeDockerCLI EngineType = "docker-cli"
	// EngineTypePodman shells out to the podman binary.
	EngineTypePodman EngineType = "podman"

	// DefaultPlatform is used when StartOptions or BuildOptions leave Platform empty.
	DefaultPlatform = "linux/amd64"
)

var (
	// ErrEngineNotAvailable is the sentinel wrapped by EngineNotAvailableError.
	ErrEngineNotAvailable = errors.New("container engine not available")

	// ErrImageNotFound is returned by InspectImage when no image has the given reference.
	ErrImageNotFound = errors.New("image not found")

	// ErrInvalidEngineType is returned by NewEngine for an unrecognized EngineType.
	ErrInvalidEngineType = errors.New("invalid container engine type")

	// fallbackOrder is the order EngineTypeAuto tries engines in.
	fallbackOrder = []EngineType{EngineTypeDocker, EngineTypeDockerCLI, EngineTypePodman}

	// engineFactories builds an unconnected engine per type. Tests replace entries.
	engineFactories = map[EngineType]func() (Engine, error){
		EngineTypeDocker:    func() (Engine, error) { return NewDockerAPIEngine() },
		EngineTypeDockerCLI: func() (Engine, error) { return NewDockerEngine(), nil },
		EngineTypePodman:    func() (Engine, error) { return NewPodmanEngine(), nil },
	}
)

type (
	// EngineType identifies a container engine implementation.
	EngineType string

	// ContainerID identifies a started container.
	ContainerID string

	// ImageRef is an image reference such as "phylorun/beast2:2.7.7".
	ImageRef string

	// Engine is the set of container operations one containerized run needs.
	Engine interface {
		// Name returns the engine name ("docker", "docker-cli", or "podman").
		Name() string
		// Ping checks that the engine can be reached.
		Ping(ctx context.Context) error
		// InspectImage returns image metadata, or ErrImageNotFound.
		InspectImage(ctx context.Context, ref ImageRef) (ImageInfo, error)
		// Build builds an image from an in-memory Dockerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// Start creates and starts a detached container.
		Start(ctx context.Context, opts StartOptions) (ContainerID, error)
		// Exec runs a command in a running container and returns its exit code.
		// A non-zero exit code is not an error.
		Exec(ctx context.Context, id ContainerID, opts ExecOptions) (types.ExitCode, error)
		// Stop stops a running container.
		Stop(ctx context.Context, id ContainerID) error
		// Remove force-removes a container.
		Remove(ctx context.Context, id ContainerID) error
		// Close releases client resources.
		Close() error
	}

	// ImageInfo is the subset of image metadata phylorun inspects.
	ImageInfo struct {
		Labels map[string]string
	}

	// Mount is a read-write bind mount of a host directory.
	Mount struct {
		HostPath      string
		ContainerPath string
		ReadOnly      bool
	}

	// BuildOptions describes an image build from a single Dockerfile with an
	// otherwise empty build context.
	BuildOptions struct {
		// Dockerfile is the Dockerfile content, not a path.
		Dockerfile string
		Tag        ImageRef
		Labels     map[string]string
		Platform   string
		// Stdout and Stderr receive build progress. Nil discards it.
		Stdout io.Writer
		Stderr io.Writer
	}

	// StartOptions describes a detached container.
	StartOptions struct {
		Image    ImageRef
		Mounts   []Mount
		Platform string
		// Cmd keeps the container alive, e.g. ["sleep", "infinity"].
		Cmd    []string
		Labels map[string]string
	}

	// ExecOptions describes one command run inside a started container.
	ExecOptions struct {
		Cmd     []string
		WorkDir string
		User    string
		Env     map[string]string
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// EngineNotAvailableError is returned when no requested engine can be reached.
	// It wraps ErrEngineNotAvailable for errors.Is() compatibility.
	EngineNotAvailableError struct {
		Engine EngineType
		Reason string
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// Validate returns an error if the EngineType is not one of the defined types.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypeAuto, EngineTypeDocker, EngineTypeDockerCLI, EngineTypePodman:
		return nil
	default:
		return fmt.Errorf("%w %q (valid: auto, docker, docker-cli, podman)", ErrInvalidEngineType, t)
	}
}

// Command returns the binary a user runs to manage this engine's images.
// Both Docker engines map to "docker".
func (t EngineType) Command() string {
	switch t {
	case EngineTypeDocker, EngineTypeDockerCLI:
		return "docker"
	default:
		return string(t)
	}
}

// String returns the string representation of the ContainerID.
func (id ContainerID) String() string { return string(id) }

// String returns the string representation of the ImageRef.
func (r ImageRef) String() string { return string(r) }

// NewEngine returns a reachable engine of the preferred type. With
// EngineTypeAuto the first reachable engine of fallbackOrder wins; explicit
// types do not fall back.
func NewEngine(ctx context.Context, preferred EngineType) (Engine, error) {
	if err := preferred.Validate(); err != nil {
		return nil, err
	}

	candidates := []EngineType{preferred}
	if preferred == EngineTypeAuto {
		candidates = fallbackOrder
	}

	var reasons []error
	for _, candidate := range candidates {
		engine, err := connect(ctx, candidate)
		if err == nil {
			return engine, nil
		}
		reasons = append(reasons, fmt.Errorf("%s: %w", candidate, err))
	}

	return nil, &EngineNotAvailableError{
		Engine: preferred,
		Reason: errors.Join(reasons...).Error(),
	}
}

func connect(ctx context.Context, t EngineType) (Engine, error) {
	factory, ok := engineFactories[t]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrInvalidEngineType, t)
	}
	engine, err := factory()
	if err != nil {
		return nil, err
	}
	if err := engine.Ping(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return engine, nil
}

func platformOrDefault(p string) string {
	if p == "" {
		return DefaultPlatform
	}
	return p
}
