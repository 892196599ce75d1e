// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by launchkit tests: process
// environment and working directory changes that restore themselves
// (MustSetenv, MustUnsetenv, MustChdir, SetHomeDir), a manually driven
// FakeClock for poll loops and timeouts, and a semaphore that bounds
// concurrent container engine work in integration tests.
package testutil
