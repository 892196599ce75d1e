// SPDX-License-Identifier: MPL-2.0

package project

import (
	"context"
	"os/exec"
	"strings"
)

// CommandFunc creates the git command; tests substitute it.
type CommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

// LastCommit returns the HEAD commit hash of the repository containing dir,
// or "" when dir has no history or git is not installed.
func LastCommit(ctx context.Context, dir string) string {
	return lastCommit(ctx, dir, exec.CommandContext)
}

func lastCommit(ctx context.Context, dir string, command CommandFunc) string {
	cmd := command(ctx, "git", "-C", dir, "rev-parse", "--verify", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
