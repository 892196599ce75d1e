// SPDX-License-Identifier: MPL-2.0

// Package project describes what a launch runs: the project directory, its
// entry points, the image to run it in and the backend-interpreted resource
// arguments.
//
// A Descriptor is built once per launch with New and is read-only afterwards,
// except for the image reference which the image builder records through
// RecordImage.
package project
