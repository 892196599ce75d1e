// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/invowk/launchkit/internal/issue"
)

const (
	// DefaultTransferAttempts bounds pull/push retries on transient failures.
	DefaultTransferAttempts = 3
	// DefaultTransferBackoff is the first retry delay for pull/push.
	DefaultTransferBackoff = 2 * time.Second
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides common implementation for CLI-based container engines.
	// Docker and Podman engines embed this struct; engine-specific methods
	// (Available, Version, BuildxAvailable) remain on the concrete types.
	BaseCLIEngine struct {
		name            string
		binaryPath      string
		execCommand     ExecCommandFunc
		cmdEnvOverrides map[string]string
		retryAttempts   int
		retryBackoff    time.Duration
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

// WithBinaryPath overrides the engine executable found on PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
	}
}

// WithCmdEnvOverride adds an environment variable applied to every command
// the engine creates.
func WithCmdEnvOverride(key, value string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		if e.cmdEnvOverrides == nil {
			e.cmdEnvOverrides = make(map[string]string)
		}
		e.cmdEnvOverrides[key] = value
	}
}

// WithTransferRetry sets the retry policy used by Pull and Push.
func WithTransferRetry(attempts int, backoff time.Duration) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.retryAttempts = attempts
		e.retryBackoff = backoff
	}
}

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:    binaryPath,
		execCommand:   exec.CommandContext,
		retryAttempts: DefaultTransferAttempts,
		retryBackoff:  DefaultTransferBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for a container build command.
//
// Generated command: <binary> build [options] <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	if opts.Tag != "" {
		args = append(args, "-t", string(opts.Tag))
	}

	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	for _, k := range sortedKeys(opts.BuildArgs) {
		args = append(args, "--build-arg", k+"="+opts.BuildArgs[k])
	}

	args = append(args, opts.ContextDir)
	return args
}

// RunArgs constructs arguments for a container run command.
//
// Generated command: <binary> run [--rm] [--name n] [-e K=V]... [extra]... <image> [command]...
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}

	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}

	args = append(args, opts.ExtraArgs...)
	args = append(args, string(opts.Image))
	args = append(args, opts.Command...)
	return args
}

// --- Command Execution ---

// RunCommandCombined executes a command and returns combined stdout/stderr.
// The output is appended to the error so transient failures can be classified.
func (e *BaseCLIEngine) RunCommandCombined(ctx context.Context, args ...string) ([]byte, error) {
	cmd := e.CreateCommand(ctx, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("command %s %v failed: %w: %s", e.binaryPath, args, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments with engine-level
// overrides applied.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	cmd := e.execCommand(ctx, e.binaryPath, args...)
	if len(e.cmdEnvOverrides) > 0 {
		// A non-nil Env replaces the inherited environment entirely.
		cmd.Env = os.Environ()
		for _, k := range sortedKeys(e.cmdEnvOverrides) {
			cmd.Env = append(cmd.Env, k+"="+e.cmdEnvOverrides[k])
		}
	}
	return cmd
}

// --- Promoted Engine Methods (shared by Docker and Podman) ---

// Build builds an image from a Dockerfile.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	return e.runBuild(ctx, opts, e.BuildArgs(opts))
}

func (e *BaseCLIEngine) runBuild(ctx context.Context, opts BuildOptions, args []string) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, err)
	}
	return nil
}

// Pull fetches an image, retrying transient registry failures.
func (e *BaseCLIEngine) Pull(ctx context.Context, image ImageTag) error {
	if err := image.Validate(); err != nil {
		return err
	}
	err := e.transfer(ctx, "pull", image)
	if err != nil {
		return transferContainerError(e.name, "pull image", image, err)
	}
	return nil
}

// Push uploads an image, retrying transient registry failures.
func (e *BaseCLIEngine) Push(ctx context.Context, image ImageTag) error {
	if err := image.Validate(); err != nil {
		return err
	}
	err := e.transfer(ctx, "push", image)
	if err != nil {
		return transferContainerError(e.name, "push image", image, err)
	}
	return nil
}

func (e *BaseCLIEngine) transfer(ctx context.Context, verb string, image ImageTag) error {
	attempts := max(e.retryAttempts, 1)
	return RetryWithBackoff(ctx, attempts, e.retryBackoff, func(int) (bool, error) {
		_, err := e.RunCommandCombined(ctx, verb, string(image))
		return IsTransientError(err), err
	})
}

// ImageExists checks if an image exists locally.
func (e *BaseCLIEngine) ImageExists(ctx context.Context, image ImageTag) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "inspect", string(image))
	return err == nil, nil
}

// InspectImage returns the parsed inspection record of a local image.
func (e *BaseCLIEngine) InspectImage(ctx context.Context, image ImageTag) (*ImageInfo, error) {
	out, err := e.RunCommandWithOutput(ctx, "image", "inspect", string(image))
	if err != nil {
		return nil, err
	}
	return ParseImageInspect([]byte(out))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// --- Actionable Error Helpers ---

// buildContainerError creates an actionable error for container build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image").
		WithIssue(issue.ImageBuildFailedId)

	switch {
	case opts.Tag != "":
		ctx.WithResource(string(opts.Tag))
	case opts.Dockerfile != "":
		ctx.WithResource(opts.Dockerfile)
	}

	ctx.WithSuggestion("Check that every dependency in requirements.txt can be installed")
	ctx.WithSuggestion("Ensure base images are available (try: " + engine + " pull <base-image>)")
	ctx.WithSuggestion("Run with --verbose to see full build output")

	return ctx.Wrap(cause).BuildError()
}

// transferContainerError creates an actionable error for pull/push failures.
func transferContainerError(engine, operation string, image ImageTag, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation(operation).
		WithResource(string(image))

	if operation == "push image" {
		ctx.WithIssue(issue.ImagePushFailedId)
		ctx.WithSuggestion("Authenticate " + engine + " against the registry before pushing")
	} else {
		ctx.WithSuggestion("Verify the image reference and your registry credentials")
	}

	return ctx.Wrap(cause).BuildError()
}
