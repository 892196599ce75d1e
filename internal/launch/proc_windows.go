// SPDX-License-Identifier: MPL-2.0

//go:build windows

package launch

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// shellCommand runs cmdline through cmd.exe. The line is handed over
// verbatim since cmd.exe does not parse argv escaping.
func shellCommand(cmdline string) *exec.Cmd {
	cmd := exec.Command("cmd.exe")
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: `cmd.exe /d /s /c "` + cmdline + `"`}
	return cmd
}

func joinCommandLine(argv []string) (string, error) {
	words := make([]string, len(argv))
	for i, a := range argv {
		words[i] = syscall.EscapeArg(a)
	}
	return strings.Join(words, " "), nil
}

func setProcessGroup(*exec.Cmd) {}

func terminate(p *os.Process) error {
	return p.Kill()
}

func isNoSuchProcess(error) bool { return false }
