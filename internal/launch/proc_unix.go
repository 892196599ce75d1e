// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package launch

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/invowk/launchkit/internal/platform"
)

// shellCommand runs cmdline through the POSIX shell. Inside Flatpak or Snap
// the engine is only reachable from the host.
func shellCommand(cmdline string) *exec.Cmd {
	name, args := platform.HostCommand("sh", "-c", cmdline)
	return exec.Command(name, args...)
}

func joinCommandLine(argv []string) (string, error) {
	return ShellJoin(argv)
}

// setProcessGroup makes the child lead its own process group so Cancel can
// signal every process it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(p *os.Process) error {
	pgid, err := syscall.Getpgid(p.Pid)
	if err == nil && pgid == p.Pid {
		return syscall.Kill(-pgid, syscall.SIGTERM)
	}
	return p.Signal(syscall.SIGTERM)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}
