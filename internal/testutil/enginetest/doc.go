// SPDX-License-Identifier: MPL-2.0

// Package enginetest provides an in-memory container.Engine for tests.
//
// This package is separate from testutil to avoid import cycles, since
// testutil is used by internal/container tests.
//
// # Usage
//
//	engine := enginetest.New(enginetest.WithBuildx(true))
//	builder := imagebuild.NewBuilder(engine, settings)
//	// ... resolve an image ...
//	if len(engine.Builds()) != 1 { ... }
//
// Run arguments rendered by the fake execute the entrypoint of a built image
// with /bin/sh on the host, so a local launch of a fake image runs its
// command for real.
package enginetest
