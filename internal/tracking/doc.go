// SPDX-License-Identifier: MPL-2.0

// Package tracking is the launcher's view of the experiment-tracking service:
// the settings and credential injected into launch images, and the run queue
// whose items are acknowledged before a run starts.
//
// Run queue items are leased to one launcher at a time. The Redis-backed
// queue claims an item atomically, so two launchers racing for the same item
// see exactly one success and one ErrConflict.
package tracking
