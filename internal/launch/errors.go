// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("launch configuration error")

	// ErrToolchainMissing is matched by every *ToolchainMissingError.
	ErrToolchainMissing = errors.New("container toolchain missing")

	// ErrSubmissionTimeout is matched by every *SubmissionTimeoutError.
	ErrSubmissionTimeout = errors.New("submission timed out")

	// ErrUnknownBackend is matched by every *UnknownBackendError.
	ErrUnknownBackend = errors.New("unknown backend")
)

type (
	// ConfigurationError is a user-fixable launch setting problem, detected
	// before any side effect.
	ConfigurationError struct {
		// Setting is the resource argument or option at fault, if any.
		Setting string
		Message string
		Err     error
	}

	// ToolchainMissingError reports that the container toolchain cannot be
	// invoked.
	ToolchainMissingError struct {
		Engine string
		Err    error
	}

	// SubmissionTimeoutError reports a remote job that was not accepted
	// within the submission timeout.
	SubmissionTimeoutError struct {
		Job     string
		Timeout time.Duration
	}

	// UnknownBackendError reports a backend name that is not registered.
	UnknownBackendError struct {
		Name      string
		Available []BackendKind
	}
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Error implements the error interface.
func (e *ToolchainMissingError) Error() string {
	msg := fmt.Sprintf("%s is not available; install it or select another engine", e.Engine)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ToolchainMissingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrToolchainMissing.
func (e *ToolchainMissingError) Is(target error) bool { return target == ErrToolchainMissing }

// Error implements the error interface.
func (e *SubmissionTimeoutError) Error() string {
	return fmt.Sprintf("training job %q was not accepted within %s", e.Job, e.Timeout)
}

// Unwrap returns ErrSubmissionTimeout so callers can use errors.Is.
func (e *SubmissionTimeoutError) Unwrap() error { return ErrSubmissionTimeout }

// Error implements the error interface.
func (e *UnknownBackendError) Error() string {
	names := make([]string, len(e.Available))
	for i, k := range e.Available {
		names[i] = string(k)
	}
	return "Resource name not among available resources. Available resources: " + strings.Join(names, ",")
}

// Unwrap returns ErrUnknownBackend so callers can use errors.Is.
func (e *UnknownBackendError) Unwrap() error { return ErrUnknownBackend }
