// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// transientMarkers are engine or registry messages that usually clear on retry.
var transientMarkers = []string{
	// Rootless Podman race conditions and OCI runtime errors.
	"ping_group_range",
	"OCI runtime error",
	// Name resolution and connection failures.
	"Temporary failure resolving",
	"Could not resolve host",
	"connection timed out",
	"connection refused",
	"connection reset by peer",
	"TLS handshake timeout",
	// Registry side hiccups during pull and push.
	"i/o timeout",
	"unexpected EOF",
	"503 Service Unavailable",
	"502 Bad Gateway",
	"toomanyrequests",
	// Storage driver errors (overlay mount races on rootless Podman).
	"error creating overlay mount",
	"error mounting layer",
}

// IsTransientError reports whether err is a container engine or registry
// error that may succeed on retry. Exit code 125 (generic engine failure)
// counts as transient; context cancellation never does.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 125 {
		return true
	}

	errStr := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
