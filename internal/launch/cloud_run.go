// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/invowk/launchkit/internal/training"
)

const pageLinkFormat = "https://console.cloud.google.com/vertex-ai/locations/%s/training/%s?project=%s"

// CloudRun is the handle of a remote training job.
type CloudRun struct {
	job training.Job
}

// Compile-time interface check
var _ Run = (*CloudRun)(nil)

func newCloudRun(job training.Job) *CloudRun {
	return &CloudRun{job: job}
}

// ID returns the remote resource id.
func (r *CloudRun) ID() string { return r.job.Name() }

// Name returns the job display name.
func (r *CloudRun) Name() string { return r.job.DisplayName() }

// Location returns the region and project of the job.
func (r *CloudRun) Location() map[string]string {
	return map[string]string{"region": r.job.Location(), "project": r.job.Project()}
}

// PageLink returns the console URL of the job.
func (r *CloudRun) PageLink() string {
	return fmt.Sprintf(pageLinkFormat,
		url.PathEscape(r.job.Location()), url.PathEscape(r.job.Name()), url.QueryEscape(r.job.Project()))
}

// Status maps the last observed pipeline state. A state that cannot be read
// is StatusUnknown.
func (r *CloudRun) Status(ctx context.Context) Status {
	state, err := r.job.State(ctx)
	if err != nil && state == "" {
		return StatusUnknown
	}
	return MapPipelineState(string(state))
}

// Wait blocks until the job ends and reports whether it succeeded. The
// state is read once more after the job's wait returns.
func (r *CloudRun) Wait(ctx context.Context) (bool, error) {
	if err := r.job.Wait(ctx); err != nil {
		return false, err
	}
	return r.Status(ctx) == StatusFinished, nil
}

// Cancel forwards to the job without waiting for it to stop.
func (r *CloudRun) Cancel(ctx context.Context) error {
	return r.job.Cancel(ctx)
}
