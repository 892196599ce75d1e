// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"slices"
	"testing"
)

func TestRenderDockerArgs(t *testing.T) {
	t.Parallel()

	got := RenderDockerArgs(map[string]string{
		"gpus":    "all",
		"e":       "FOO=bar",
		"rm":      "true",
		"network": "host",
		"t":       "True",
	})
	want := []string{"-e", "FOO=bar", "--gpus", "all", "--network", "host", "--rm", "-t"}
	if !slices.Equal(got, want) {
		t.Errorf("RenderDockerArgs() = %v, want %v", got, want)
	}

	if got := RenderDockerArgs(nil); len(got) != 0 {
		t.Errorf("RenderDockerArgs(nil) = %v", got)
	}
}

func TestShellJoin(t *testing.T) {
	t.Parallel()

	got, err := ShellJoin([]string{"docker", "run", "--rm", "-e", "A=b c", "img:1"})
	if err != nil {
		t.Fatalf("ShellJoin() error = %v", err)
	}
	want := "docker run --rm -e 'A=b c' img:1"
	if got != want {
		t.Errorf("ShellJoin() = %q, want %q", got, want)
	}
}
