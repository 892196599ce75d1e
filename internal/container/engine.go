// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

// ErrInvalidImageTag is the sentinel error wrapped by InvalidImageTagError.
var ErrInvalidImageTag = errors.New("invalid image tag")

type (
	// Engine defines the build toolchain operations the launcher needs.
	Engine interface {
		// Name returns the engine name (docker or podman)
		Name() string
		// Available checks if the engine is installed and its daemon answers
		Available() bool
		// Version returns the engine version
		Version(ctx context.Context) (string, error)
		// BuildxAvailable reports whether builds honor RUN --mount cache mounts
		BuildxAvailable(ctx context.Context) bool
		// BinaryPath returns the path of the engine executable
		BinaryPath() string

		// Build builds an image from a Dockerfile
		Build(ctx context.Context, opts BuildOptions) error
		// Pull fetches an image from its registry
		Pull(ctx context.Context, image ImageTag) error
		// Push uploads an image to its registry
		Push(ctx context.Context, image ImageTag) error
		// ImageExists checks if an image exists locally
		ImageExists(ctx context.Context, image ImageTag) (bool, error)
		// InspectImage returns the parsed inspection record of a local image
		InspectImage(ctx context.Context, image ImageTag) (*ImageInfo, error)
		// RunArgs renders the arguments of a run command, without the binary
		RunArgs(opts RunOptions) []string
	}

	// EngineType identifies the container engine type
	EngineType string

	// ImageTag is an image reference such as "name:tag" or "host/project/repo/name:tag".
	ImageTag string

	// InvalidImageTagError is returned when an ImageTag is empty or contains whitespace.
	InvalidImageTagError struct {
		Value ImageTag
	}

	// BuildOptions contains options for building an image
	BuildOptions struct {
		// ContextDir is the build context directory
		ContextDir string
		// Dockerfile is the path to the Dockerfile (relative to ContextDir)
		Dockerfile string
		// Tag is the image tag
		Tag ImageTag
		// BuildArgs are build-time variables
		BuildArgs map[string]string
		// NoCache disables the build cache
		NoCache bool
		// CacheMounts marks a Dockerfile using RUN --mount=type=cache
		CacheMounts bool
		// Stdout is where to write build output
		Stdout io.Writer
		// Stderr is where to write build errors
		Stderr io.Writer
	}

	// RunOptions contains options for rendering a container run command
	RunOptions struct {
		// Image is the image to run
		Image ImageTag
		// Command overrides the image entrypoint arguments
		Command []string
		// Env contains environment variables
		Env map[string]string
		// ExtraArgs are rendered flags inserted before the image
		ExtraArgs []string
		// Remove automatically removes the container after exit
		Remove bool
		// Name is the container name
		Name string
	}

	// ErrEngineNotAvailable is returned when a container engine is not available
	ErrEngineNotAvailable struct {
		Engine string
		Reason string
	}
)

// String returns the string representation of the ImageTag.
func (t ImageTag) String() string { return string(t) }

// Validate returns nil when the tag is non-empty and free of whitespace.
func (t ImageTag) Validate() error {
	if strings.TrimSpace(string(t)) == "" || strings.ContainsAny(string(t), " \t\n") {
		return &InvalidImageTagError{Value: t}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidImageTagError) Error() string {
	return fmt.Sprintf("invalid image tag %q: must be non-empty and contain no whitespace", e.Value)
}

// Unwrap returns ErrInvalidImageTag for errors.Is.
func (e *InvalidImageTagError) Unwrap() error { return ErrInvalidImageTag }

// Validate checks the fields the engine relies on.
func (o BuildOptions) Validate() error {
	if o.ContextDir == "" {
		return errors.New("build context directory is required")
	}
	return o.Tag.Validate()
}

func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// NewEngine creates a new container engine based on preference, falling back
// to the other engine when the preferred one is not available.
func NewEngine(preferredType EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	switch preferredType {
	case EngineTypePodman:
		engine := NewPodmanEngine(opts...)
		if engine.Available() {
			return engine, nil
		}
		dockerEngine := NewDockerEngine(opts...)
		if dockerEngine.Available() {
			return dockerEngine, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	case EngineTypeDocker, "":
		engine := NewDockerEngine(opts...)
		if engine.Available() {
			return engine, nil
		}
		podmanEngine := NewPodmanEngine(opts...)
		if podmanEngine.Available() {
			return podmanEngine, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferredType)
	}
}

// AutoDetectEngine tries to find an available container engine
func AutoDetectEngine() (Engine, error) {
	docker := NewDockerEngine()
	if docker.Available() {
		return docker, nil
	}

	podman := NewPodmanEngine()
	if podman.Available() {
		return podman, nil
	}

	return nil, &ErrEngineNotAvailable{
		Engine: "any",
		Reason: "no container engine (docker or podman) is available on this system",
	}
}
