// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"fmt"
	"os"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/imagebuild"
	"github.com/invowk/launchkit/internal/project"
)

// LocalRunner runs the launch image as a child process.
type LocalRunner struct {
	deps Deps
}

// Compile-time interface check
var _ Runner = (*LocalRunner)(nil)

// NewLocalRunner creates a LocalRunner.
func NewLocalRunner(deps Deps) *LocalRunner {
	return &LocalRunner{deps: deps.withDefaults("local")}
}

// Kind returns BackendLocal.
func (r *LocalRunner) Kind() BackendKind { return BackendLocal }

// Run resolves the image, renders the run command and spawns it in the
// project directory.
func (r *LocalRunner) Run(ctx context.Context, desc *project.Descriptor, opts RunOptions) (*Result, error) {
	if err := checkToolchain(r.deps.Engine); err != nil {
		return nil, err
	}
	command, err := launchCommand(desc)
	if err != nil {
		return nil, err
	}

	userImage := desc.Image()
	if userImage != "" && !desc.ForceRebuild() {
		r.pull(ctx, userImage)
	}
	image, err := r.deps.Builder.ResolveImage(ctx, desc, imagebuild.BuildRequest{Command: command})
	if err != nil {
		return nil, err
	}

	// Generated images carry the entry point; a reused image is given it
	// on the command line.
	var runCommand []string
	if image == userImage {
		runCommand = command
	}
	cmdline, err := r.commandLine(desc, image, runCommand)
	if err != nil {
		return nil, err
	}
	redactor := r.deps.redactor()
	r.deps.Logger.Info("Launching run", "command", redactor.Sanitize(cmdline))

	ok, err := r.deps.ackQueueItem(ctx, desc, opts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Result{Kind: ResultSkipped, Image: image}, nil
	}

	run, err := r.spawn(desc, cmdline)
	if err != nil {
		return nil, err
	}
	if opts.Synchronous {
		if _, err := run.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return &Result{Kind: ResultSubmitted, Run: run, Image: image}, nil
}

// pull refreshes a user-supplied image. A failed pull of an image that is
// present locally is not fatal; image resolution decides what happens next.
func (r *LocalRunner) pull(ctx context.Context, img container.ImageTag) {
	if err := r.deps.Engine.Pull(ctx, img); err != nil {
		r.deps.Logger.Warn("Unable to pull image, using the local copy if present", "image", img, "error", err)
	}
}

// commandLine renders "<engine> run --rm [docker args] <image> [command]"
// as one string quoted for the host shell.
func (r *LocalRunner) commandLine(desc *project.Descriptor, image container.ImageTag, command []string) (string, error) {
	args := r.deps.Engine.RunArgs(container.RunOptions{
		Image:     image,
		Remove:    true,
		ExtraArgs: RenderDockerArgs(desc.DockerArgs()),
		Command:   command,
	})
	binary := r.deps.Engine.BinaryPath()
	if binary == "" {
		binary = r.deps.Engine.Name()
	}
	return joinCommandLine(append([]string{binary}, args...))
}

func (r *LocalRunner) spawn(desc *project.Descriptor, cmdline string) (*LocalRun, error) {
	cmd := shellCommand(cmdline)
	cmd.Dir = desc.Dir()
	cmd.Env = os.Environ()
	cmd.Stdout = r.deps.Output
	cmd.Stderr = r.deps.Output
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start local run: %w", err)
	}
	return newLocalRun(cmd, desc), nil
}
