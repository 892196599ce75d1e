// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrNoEntryPoint is returned when a project declares no entry point.
	ErrNoEntryPoint = errors.New("no entry point")
	// ErrAmbiguousEntryPoint is returned when several entry points exist and none is selected.
	ErrAmbiguousEntryPoint = errors.New("ambiguous entry point")
	// ErrUnknownEntryPoint is returned when the selected entry point is not declared.
	ErrUnknownEntryPoint = errors.New("unknown entry point")
)

type (
	// EntryPoint is a named command that constitutes the job payload.
	EntryPoint struct {
		Name    string
		Command []string
	}

	// EntryPointError reports why no single entry point could be resolved.
	EntryPointError struct {
		Selected  string
		Available []string
		Err       error
	}
)

// Compute returns the argv of the entry point followed by one "--key value"
// pair per override, in sorted key order.
func (e EntryPoint) Compute(overrides map[string]string) []string {
	argv := slices.Clone(e.Command)
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		argv = append(argv, "--"+k, overrides[k])
	}
	return argv
}

// String renders the command words separated by spaces.
func (e EntryPoint) String() string {
	return strings.Join(e.Command, " ")
}

// Error implements the error interface.
func (e *EntryPointError) Error() string {
	switch {
	case errors.Is(e.Err, ErrUnknownEntryPoint):
		return fmt.Sprintf("entry point %q is not declared (available: %s)", e.Selected, strings.Join(e.Available, ", "))
	case errors.Is(e.Err, ErrAmbiguousEntryPoint):
		return fmt.Sprintf("project declares %d entry points (%s); select one with --entry-point", len(e.Available), strings.Join(e.Available, ", "))
	default:
		return "project declares no entry point; pass the command after the project path"
	}
}

// Unwrap returns the sentinel for errors.Is.
func (e *EntryPointError) Unwrap() error { return e.Err }

// resolveEntryPoint picks exactly one entry point from eps.
func resolveEntryPoint(eps []EntryPoint, selected string) (EntryPoint, error) {
	names := make([]string, 0, len(eps))
	for _, ep := range eps {
		names = append(names, ep.Name)
	}
	slices.Sort(names)

	if selected != "" {
		idx := slices.IndexFunc(eps, func(ep EntryPoint) bool { return ep.Name == selected })
		if idx < 0 {
			return EntryPoint{}, &EntryPointError{Selected: selected, Available: names, Err: ErrUnknownEntryPoint}
		}
		return eps[idx], nil
	}

	switch len(eps) {
	case 0:
		return EntryPoint{}, &EntryPointError{Err: ErrNoEntryPoint}
	case 1:
		return eps[0], nil
	default:
		return EntryPoint{}, &EntryPointError{Available: names, Err: ErrAmbiguousEntryPoint}
	}
}
