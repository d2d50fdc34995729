// SPDX-License-Identifier: MPL-2.0

// Package container provides an abstraction layer for the container engines
// phylorun runs analyses in.
//
// The Engine interface covers one run lifecycle: InspectImage, Build, Start,
// Exec, Stop, and Remove. DockerAPIEngine talks to the Docker daemon through
// its HTTP API; DockerEngine and PodmanEngine shell out to the respective
// CLIs and share argument construction through BaseCLIEngine.
//
// NewEngine(EngineType) selects an implementation. EngineTypeAuto tries the
// Docker API first, then the docker CLI, then the podman CLI.
//
// Only Linux containers are supported.
package container
