// SPDX-License-Identifier: MPL-2.0

// Package container drives the local container toolchain (Docker or Podman)
// through its CLI.
//
// The Engine interface covers what image resolution and local launches need:
// availability and buildx probing, Build, Pull, Push, image inspection and run
// argument rendering. DockerEngine and PodmanEngine embed BaseCLIEngine for
// argument construction and command execution; tests inject a fake exec
// function with WithExecCommand.
//
// Pull and Push retry transient registry failures (see IsTransientError) with
// exponential backoff.
package container
