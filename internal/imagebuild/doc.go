// SPDX-License-Identifier: MPL-2.0

// Package imagebuild resolves the container image a launch runs in.
//
// A Builder reuses a supplied image when it can be inspected and otherwise
// generates build instructions (a standalone multi-stage recipe, or a layer
// over an existing base image), materializes a build context holding a copy
// of the project, and drives the container engine to build it. Every line
// that carries the tracking credential is produced through the builder's
// redact.Redactor so that persisted and logged copies can be sanitized.
package imagebuild
