// SPDX-License-Identifier: MPL-2.0

package launch

import "github.com/invowk/launchkit/internal/training"

// Canonical run states.
const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusUnknown  Status = "unknown"
)

// Status is the backend-independent state of a run.
type Status string

// String returns the status name.
func (s Status) String() string { return string(s) }

// Terminal reports whether the run has ended.
func (s Status) Terminal() bool { return s == StatusFinished || s == StatusFailed }

// MapPipelineState maps a remote pipeline state, with or without the
// "PipelineState." prefix, onto a Status. States other than succeeded,
// failed and running map to StatusUnknown.
func MapPipelineState(state string) Status {
	switch training.PipelineState(state).Normalize() {
	case training.StateSucceeded:
		return StatusFinished
	case training.StateFailed:
		return StatusFailed
	case training.StateRunning:
		return StatusRunning
	default:
		return StatusUnknown
	}
}

// MapExitCode maps the exit state of a local process onto a Status.
func MapExitCode(exited bool, code int) Status {
	switch {
	case !exited:
		return StatusRunning
	case code == 0:
		return StatusFinished
	default:
		return StatusFailed
	}
}
