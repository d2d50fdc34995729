// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
)

const (
	// ContainerEngineAuto tries the Docker Engine API, then the docker CLI, then podman.
	ContainerEngineAuto ContainerEngine = "auto"
	// ContainerEngineDocker talks to the Docker daemon through its HTTP API.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEngineDockerCLI shells out to the docker binary.
	ContainerEngineDockerCLI ContainerEngine = "docker-cli"
	// ContainerEnginePodman shells out to the podman binary.
	ContainerEnginePodman ContainerEngine = "podman"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// DefaultPlatform is the platform engine images are built and run for.
	// The release archives in the image catalog are x86_64 builds.
	DefaultPlatform = "linux/amd64"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// LogLevel is the minimum level of log messages printed to stderr.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// Config holds the application configuration.
	Config struct {
		// Container configures containerized runs.
		Container ContainerConfig `json:"container" yaml:"container" toml:"container" mapstructure:"container"`
		// Binaries pins local engine binaries, ahead of install-location heuristics.
		Binaries BinariesConfig `json:"binaries" yaml:"binaries" toml:"binaries" mapstructure:"binaries"`
		// PhyloSpec configures the PhyloSpec converter subprocess.
		PhyloSpec PhyloSpecConfig `json:"phylospec" yaml:"phylospec" toml:"phylospec" mapstructure:"phylospec"`
		// UI configures console output.
		UI UIConfig `json:"ui" yaml:"ui" toml:"ui" mapstructure:"ui"`
	}

	// ContainerConfig configures the container engine and image builds.
	ContainerConfig struct {
		Engine   ContainerEngine `json:"engine" yaml:"engine" toml:"engine" mapstructure:"engine"`
		Platform string          `json:"platform" yaml:"platform" toml:"platform" mapstructure:"platform"`
		// BuildLock serializes image builds across concurrent phylorun processes.
		BuildLock bool `json:"build_lock" yaml:"build_lock" toml:"build_lock" mapstructure:"build_lock"`
	}

	// BinariesConfig holds explicit binary paths. Empty means "discover".
	BinariesConfig struct {
		Beast2    string `json:"beast2,omitempty" yaml:"beast2,omitempty" toml:"beast2,omitempty" mapstructure:"beast2"`
		BeastX    string `json:"beastx,omitempty" yaml:"beastx,omitempty" toml:"beastx,omitempty" mapstructure:"beastx"`
		RevBayes  string `json:"revbayes,omitempty" yaml:"revbayes,omitempty" toml:"revbayes,omitempty" mapstructure:"revbayes"`
		LPhyBeast string `json:"lphybeast,omitempty" yaml:"lphybeast,omitempty" toml:"lphybeast,omitempty" mapstructure:"lphybeast"`
	}

	// PhyloSpecConfig configures the converter JAR invocation.
	PhyloSpecConfig struct {
		Java   string `json:"java" yaml:"java" toml:"java" mapstructure:"java"`
		JarDir string `json:"jar_dir,omitempty" yaml:"jar_dir,omitempty" toml:"jar_dir,omitempty" mapstructure:"jar_dir"`
	}

	// UIConfig configures console output.
	UIConfig struct {
		Verbose  bool     `json:"verbose" yaml:"verbose" toml:"verbose" mapstructure:"verbose"`
		LogLevel LogLevel `json:"log_level" yaml:"log_level" toml:"log_level" mapstructure:"log_level"`
	}
)

// Error implements the error interface for InvalidContainerEngineError.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: auto, docker, docker-cli, podman)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// Validate returns an error if the ContainerEngine is not one of the defined engines.
func (ce ContainerEngine) Validate() error {
	switch ce {
	case ContainerEngineAuto, ContainerEngineDocker, ContainerEngineDockerCLI, ContainerEnginePodman:
		return nil
	default:
		return &InvalidContainerEngineError{Value: ce}
	}
}

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Validate returns an error if the LogLevel is not one of the defined levels.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Validate checks the fields CUE cannot fully express after env overrides are applied.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Container.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.UI.LogLevel.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Container: ContainerConfig{
			Engine:    ContainerEngineAuto,
			Platform:  DefaultPlatform,
			BuildLock: true,
		},
		PhyloSpec: PhyloSpecConfig{
			Java: "java",
		},
		UI: UIConfig{
			Verbose:  false,
			LogLevel: LogLevelInfo,
		},
	}
}
