// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"fmt"
	"slices"
	"strings"
)

// Backend kinds.
const (
	BackendLocal  BackendKind = "local"
	BackendVertex BackendKind = "gcp-vertex"
)

type (
	// BackendKind names an execution backend.
	BackendKind string

	// Factory creates the runner of one backend.
	Factory func(deps Deps) (Runner, error)

	// Registry maps backend kinds to runner factories.
	Registry struct {
		factories map[BackendKind]Factory
	}
)

// String returns the backend name.
func (k BackendKind) String() string { return string(k) }

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[BackendKind]Factory)}
}

// Register adds or replaces the factory of kind.
func (r *Registry) Register(kind BackendKind, f Factory) {
	r.factories[kind] = f
}

// Kinds returns the registered kinds in registration-independent order:
// local first, then alphabetical.
func (r *Registry) Kinds() []BackendKind {
	kinds := make([]BackendKind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b BackendKind) int {
		switch {
		case a == b:
			return 0
		case a == BackendLocal:
			return -1
		case b == BackendLocal:
			return 1
		default:
			return strings.Compare(string(a), string(b))
		}
	})
	return kinds
}

// Runner creates the runner for the backend named name.
func (r *Registry) Runner(name string, deps Deps) (Runner, error) {
	f, ok := r.factories[BackendKind(strings.TrimSpace(name))]
	if !ok {
		return nil, &UnknownBackendError{Name: name, Available: r.Kinds()}
	}
	runner, err := f(deps)
	if err != nil {
		return nil, fmt.Errorf("initialize %s backend: %w", name, err)
	}
	return runner, nil
}
