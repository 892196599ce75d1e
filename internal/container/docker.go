// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DockerEngine implements the Engine interface using Docker CLI.
// It embeds BaseCLIEngine for common CLI operations.
type DockerEngine struct {
	*BaseCLIEngine
}

// NewDockerEngine creates a new Docker engine.
func NewDockerEngine(opts ...BaseCLIEngineOption) *DockerEngine {
	path, _ := exec.LookPath("docker")
	opts = append([]BaseCLIEngineOption{WithName(string(EngineTypeDocker))}, opts...)
	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, opts...),
	}
}

// Name returns the engine name.
func (e *DockerEngine) Name() string {
	return string(EngineTypeDocker)
}

// Available checks if Docker is installed and the daemon answers.
func (e *DockerEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Server.Version}}")
	return cmd.Run() == nil
}

// Version returns the Docker server version.
func (e *DockerEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Server.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get docker version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// BuildxAvailable reports whether the buildx plugin is installed.
func (e *DockerEngine) BuildxAvailable(ctx context.Context) bool {
	if e.BinaryPath() == "" {
		return false
	}
	return e.RunCommandStatus(ctx, "buildx", "version") == nil
}

// Build builds an image. Dockerfiles using cache mounts go through
// `buildx build --load` so the result lands in the local image store.
func (e *DockerEngine) Build(ctx context.Context, opts BuildOptions) error {
	args := e.BuildArgs(opts)
	if opts.CacheMounts {
		args = append([]string{"buildx", "build", "--load"}, args[1:]...)
	}
	return e.runBuild(ctx, opts, args)
}
