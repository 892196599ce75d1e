// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/invowk/launchkit/internal/project"
)

// LocalRun is the handle of a local child process. It owns the process and
// one goroutine that waits for it.
type LocalRun struct {
	cmd  *exec.Cmd
	name string
	dir  string
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
}

// Compile-time interface check
var _ Run = (*LocalRun)(nil)

func newLocalRun(cmd *exec.Cmd, desc *project.Descriptor) *LocalRun {
	name := desc.Name()
	if name == "" {
		name = desc.RunID()
	}
	r := &LocalRun{
		cmd:  cmd,
		name: name,
		dir:  desc.Dir(),
		done: make(chan struct{}),
	}
	go r.wait()
	return r
}

func (r *LocalRun) wait() {
	err := r.cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			err = nil
		}
	}
	r.mu.Lock()
	r.exitCode = code
	r.waitErr = err
	r.mu.Unlock()
	close(r.done)
}

// ID returns the process id.
func (r *LocalRun) ID() string { return strconv.Itoa(r.cmd.Process.Pid) }

// Name returns the run display name, or the run id when unnamed.
func (r *LocalRun) Name() string { return r.name }

// Location returns the pid and working directory.
func (r *LocalRun) Location() map[string]string {
	return map[string]string{"pid": r.ID(), "workdir": r.dir}
}

func (r *LocalRun) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, or -1 while running or when the process
// was killed by a signal.
func (r *LocalRun) ExitCode() int {
	if !r.exited() {
		return -1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

// Status maps the exit state of the process.
func (r *LocalRun) Status(_ context.Context) Status {
	if !r.exited() {
		return StatusRunning
	}
	return MapExitCode(true, r.ExitCode())
}

// Wait blocks until the process exits and reports whether it succeeded.
func (r *LocalRun) Wait(ctx context.Context) (bool, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waitErr != nil {
		return false, r.waitErr
	}
	return r.exitCode == 0, nil
}

// Cancel sends SIGTERM to the process group when the process leads one,
// otherwise to the process. A process that already exited is not an error.
func (r *LocalRun) Cancel(_ context.Context) error {
	if r.exited() {
		return nil
	}
	err := terminate(r.cmd.Process)
	if err == nil || errors.Is(err, os.ErrProcessDone) || isNoSuchProcess(err) {
		return nil
	}
	return err
}
