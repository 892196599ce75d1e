// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestEntryPointCompute(t *testing.T) {
	t.Parallel()

	ep := EntryPoint{Name: "main", Command: []string{"echo", "hello"}}
	if got := ep.Compute(nil); !slices.Equal(got, []string{"echo", "hello"}) {
		t.Errorf("Compute(nil) = %v", got)
	}

	got := ep.Compute(map[string]string{"b": "2", "a": "1"})
	want := []string{"echo", "hello", "--a", "1", "--b", "2"}
	if !slices.Equal(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
	if ep.Command[len(ep.Command)-1] != "hello" {
		t.Error("Compute mutated the entry point command")
	}
}

func TestResolveEntryPoint(t *testing.T) {
	t.Parallel()

	train := EntryPoint{Name: "train", Command: []string{"python", "train.py"}}
	eval := EntryPoint{Name: "eval", Command: []string{"python", "eval.py"}}

	tests := []struct {
		name     string
		eps      []EntryPoint
		selected string
		want     string
		wantErr  error
	}{
		{name: "single", eps: []EntryPoint{train}, want: "train"},
		{name: "selected among many", eps: []EntryPoint{train, eval}, selected: "eval", want: "eval"},
		{name: "none", eps: nil, wantErr: ErrNoEntryPoint},
		{name: "ambiguous", eps: []EntryPoint{train, eval}, wantErr: ErrAmbiguousEntryPoint},
		{name: "unknown", eps: []EntryPoint{train}, selected: "serve", wantErr: ErrUnknownEntryPoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := resolveEntryPoint(tt.eps, tt.selected)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				var epErr *EntryPointError
				if !errors.As(err, &epErr) {
					t.Fatalf("expected *EntryPointError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("resolved %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestEntryPointErrorMessage(t *testing.T) {
	t.Parallel()

	_, err := resolveEntryPoint([]EntryPoint{{Name: "b"}, {Name: "a"}}, "")
	if !strings.Contains(err.Error(), "a, b") {
		t.Errorf("expected sorted candidates in %q", err.Error())
	}
}
