// SPDX-License-Identifier: MPL-2.0

// Package training is the client of the remote training service that runs
// launched images. Submission is non-blocking: the returned Job becomes
// resource-ready once the service has accepted it, and its state is tracked
// in the background until it reaches a terminal pipeline state.
//
// KubeService implements the service on Kubernetes batch Jobs.
package training
