// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against embedded schemas.
//
// Parsing follows three steps: compile the schema, compile the user data and
// unify it with a schema definition, then validate and decode into a Go
// value. Errors carry the file name and a JSON-style path to the offending
// field, e.g. "launch.cue: entry_points[0].command: incomplete value".
//
//	//go:embed launchfile_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[File](schema, data, "#LaunchFile",
//	    cueutil.WithFilename("launch.cue"))
package cueutil
