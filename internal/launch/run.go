// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/project"
)

// Result kinds.
const (
	// ResultSubmitted carries a tracked Run.
	ResultSubmitted ResultKind = "submitted"
	// ResultSkipped means the run queue item was claimed elsewhere; nothing ran.
	ResultSkipped ResultKind = "skipped"
	// ResultDetached means the remote job was submitted and the launcher
	// stopped tracking it.
	ResultDetached ResultKind = "detached"
)

type (
	// ResultKind tells how a launch ended from the launcher's point of view.
	ResultKind string

	// Run is a handle on a started job.
	Run interface {
		// ID is the backend identity: a pid or a remote resource id.
		ID() string
		// Name is the display name.
		Name() string
		// Location is backend metadata such as region and project.
		Location() map[string]string
		// Status derives the current state on each call.
		Status(ctx context.Context) Status
		// Wait blocks until the run ends and reports success.
		Wait(ctx context.Context) (bool, error)
		// Cancel stops the run. Cancelling an ended run is a no-op.
		Cancel(ctx context.Context) error
	}

	// Result is the outcome of Runner.Run.
	Result struct {
		Kind ResultKind
		// Run is set for submitted and detached results.
		Run Run
		// Image is the image the job runs in.
		Image container.ImageTag
	}

	// RunOptions are per-invocation launch options.
	RunOptions struct {
		// Synchronous waits for the run to end before returning.
		Synchronous bool
		// QueueItem is the run queue item to acknowledge, if any.
		QueueItem string
	}

	// Runner launches a descriptor on one backend.
	Runner interface {
		Kind() BackendKind
		Run(ctx context.Context, desc *project.Descriptor, opts RunOptions) (*Result, error)
	}
)

// String returns the kind name.
func (k ResultKind) String() string { return string(k) }
