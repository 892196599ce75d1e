// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	if err := FormatError(nil, "x.cue"); err != nil {
		t.Errorf("FormatError(nil) = %v, want nil", err)
	}

	cause := errors.New("boom")
	err := FormatError(cause, "x.cue")
	if !errors.Is(err, cause) || !strings.HasPrefix(err.Error(), "x.cue: ") {
		t.Errorf("FormatError() = %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"cloud", "region"}, "cloud.region"},
		{[]string{"entry_points", "0", "command"}, "entry_points[0].command"},
		{[]string{"entry_points", "1", "command", "2"}, "entry_points[1].command[2]"},
		{[]string{"0"}, "0"},
	}

	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 10), 10, "a.cue"); err != nil {
		t.Errorf("CheckFileSize() at limit = %v", err)
	}
	if err := CheckFileSize(make([]byte, 11), 10, "a.cue"); err == nil {
		t.Error("CheckFileSize() over limit = nil")
	}
}
