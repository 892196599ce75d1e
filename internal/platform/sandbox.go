// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"sync"
)

const (
	// SandboxNone indicates no sandbox environment detected.
	SandboxNone SandboxType = ""
	// SandboxFlatpak indicates a Flatpak sandbox environment.
	SandboxFlatpak SandboxType = "flatpak"
	// SandboxSnap indicates a Snap sandbox environment.
	SandboxSnap SandboxType = "snap"
)

// detectOnce caches detection for the process lifetime. detectSandboxFrom
// must not panic: sync.OnceValue re-panics on every call.
var detectOnce = sync.OnceValue(func() SandboxType {
	return detectSandboxFrom(os.Getenv, statFile)
})

// SandboxType identifies the application sandbox, if any.
type SandboxType string

// DetectSandbox returns the sandbox the current process runs in.
func DetectSandbox() SandboxType {
	return detectOnce()
}

// HostCommand returns the program and arguments that run name with args on
// the host. Outside a sandbox it returns them unchanged.
func HostCommand(name string, args ...string) (string, []string) {
	return HostCommandFor(DetectSandbox(), name, args...)
}

// HostCommandFor is HostCommand for an explicit sandbox type.
func HostCommandFor(st SandboxType, name string, args ...string) (string, []string) {
	spawn := SpawnCommandFor(st)
	if spawn == "" {
		return name, args
	}
	full := append(SpawnArgsFor(st), name)
	return spawn, append(full, args...)
}

// SpawnCommandFor returns the host spawn helper of a sandbox type.
func SpawnCommandFor(st SandboxType) string {
	switch st {
	case SandboxFlatpak:
		return "flatpak-spawn"
	case SandboxSnap:
		return "snap"
	default:
		return ""
	}
}

// SpawnArgsFor returns the arguments the spawn helper needs before the
// host command.
func SpawnArgsFor(st SandboxType) []string {
	switch st {
	case SandboxFlatpak:
		return []string{"--host"}
	case SandboxSnap:
		return []string{"run", "--shell"}
	default:
		return nil
	}
}

// detectSandboxFrom checks /.flatpak-info first, then SNAP_NAME.
func detectSandboxFrom(lookupEnv func(string) string, statFile func(string) error) SandboxType {
	if err := statFile("/.flatpak-info"); err == nil {
		return SandboxFlatpak
	}
	if lookupEnv("SNAP_NAME") != "" {
		return SandboxSnap
	}
	return SandboxNone
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
