// SPDX-License-Identifier: MPL-2.0

package training

import (
	"context"
	"errors"
	"strings"
)

// Pipeline states reported by the training service.
const (
	StateUnspecified PipelineState = "PIPELINE_STATE_UNSPECIFIED"
	StateQueued      PipelineState = "PIPELINE_STATE_QUEUED"
	StatePending     PipelineState = "PIPELINE_STATE_PENDING"
	StateRunning     PipelineState = "PIPELINE_STATE_RUNNING"
	StateSucceeded   PipelineState = "PIPELINE_STATE_SUCCEEDED"
	StateFailed      PipelineState = "PIPELINE_STATE_FAILED"
	StateCancelling  PipelineState = "PIPELINE_STATE_CANCELLING"
	StateCancelled   PipelineState = "PIPELINE_STATE_CANCELLED"

	// statePrefix is carried by states rendered from the enum type name.
	statePrefix = "PipelineState."
)

var (
	// ErrNotInitialized is returned by Submit before a successful Init.
	ErrNotInitialized = errors.New("training service not initialized")

	// ErrNotReady is returned by operations that need the remote resource
	// before the service has accepted the job.
	ErrNotReady = errors.New("training job resource not ready")
)

type (
	// PipelineState is the lifecycle state of a remote job.
	PipelineState string

	// JobSpec describes one remote training job.
	JobSpec struct {
		// DisplayName is the human-readable job name.
		DisplayName string
		// Image is the pushed image the job runs.
		Image string
		// Command overrides the image entrypoint when set.
		Command []string
		// MachineType selects the worker machine.
		MachineType string
		// Env is added to the job environment.
		Env map[string]string
	}

	// Service submits jobs to a remote training backend.
	Service interface {
		// Init binds the service to a project, region and staging bucket.
		Init(project, region, stagingBucket string) error
		// Submit starts a job without waiting for it to become ready.
		Submit(ctx context.Context, spec JobSpec) (Job, error)
	}

	// Job is an opaque reference to a submitted remote job.
	Job interface {
		// Name is the resource id, empty until ResourceReady.
		Name() string
		DisplayName() string
		Location() string
		Project() string
		// State returns the last observed pipeline state.
		State(ctx context.Context) (PipelineState, error)
		// Wait blocks until the job reaches a terminal state.
		Wait(ctx context.Context) error
		// Cancel requests cancellation and returns without waiting.
		Cancel(ctx context.Context) error
		// ResourceReady reports whether the service has accepted the job.
		ResourceReady() bool
	}
)

// Normalize strips the enum type prefix, e.g. "PipelineState.PIPELINE_STATE_RUNNING".
func (s PipelineState) Normalize() PipelineState {
	return PipelineState(strings.TrimPrefix(string(s), statePrefix))
}

// Terminal reports whether s is a final state.
func (s PipelineState) Terminal() bool {
	switch s.Normalize() {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// String returns the state name.
func (s PipelineState) String() string { return string(s) }
