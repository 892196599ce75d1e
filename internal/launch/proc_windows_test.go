// SPDX-License-Identifier: MPL-2.0

//go:build windows

package launch

import (
	"strings"
	"testing"
)

func TestShellCommand_UsesCmd(t *testing.T) {
	t.Parallel()

	line, err := joinCommandLine([]string{"docker", "run", "-e", "A=b c", "img:1"})
	if err != nil {
		t.Fatalf("joinCommandLine() error = %v", err)
	}
	if want := `docker run -e "A=b c" img:1`; line != want {
		t.Fatalf("joinCommandLine() = %q, want %q", line, want)
	}

	cmd := shellCommand(line)
	if !strings.HasSuffix(cmd.SysProcAttr.CmdLine, `/c "`+line+`"`) {
		t.Errorf("CmdLine = %q", cmd.SysProcAttr.CmdLine)
	}

	out, err := shellCommand("echo launch").Output()
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if strings.TrimSpace(string(out)) != "launch" {
		t.Errorf("output = %q", out)
	}
}
