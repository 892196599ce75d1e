// SPDX-License-Identifier: MPL-2.0

// Package launch runs a project descriptor on an execution backend.
//
// A Runner resolves the launch image through imagebuild, acknowledges the
// run queue item when one is configured and starts the job, returning a
// Result. Submitted results carry a Run handle whose status is derived on
// each query; detached results mark the point where the launcher stops
// tracking a remote job that keeps running; skipped results mean another
// launcher already claimed the queue item.
//
// Backends:
//
//   - local: the image runs as a child process of the launcher.
//   - gcp-vertex: the image is pushed to a registry and submitted to the
//     remote training service.
package launch
