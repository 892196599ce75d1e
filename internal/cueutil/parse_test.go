// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Launch: {
	name:            string
	gpu:             bool
	python_version?: string
	entry_points?: [...{
		name: string
		command: [...string] & [_, ...]
	}]
}
`

type testEntryPoint struct {
	Name    string   `json:"name"`
	Command []string `json:"command"`
}

type testLaunch struct {
	Name          string           `json:"name"`
	GPU           bool             `json:"gpu"`
	PythonVersion string           `json:"python_version,omitempty"`
	EntryPoints   []testEntryPoint `json:"entry_points,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		opts    []Option
		wantErr string
		check   func(t *testing.T, v *testLaunch)
	}{
		{
			name: "full document",
			data: `
name: "train"
gpu: true
python_version: "3.10"
entry_points: [{name: "main", command: ["python", "train.py"]}]
`,
			check: func(t *testing.T, v *testLaunch) {
				t.Helper()
				if v.Name != "train" || !v.GPU || v.PythonVersion != "3.10" {
					t.Errorf("decoded = %+v", v)
				}
				if len(v.EntryPoints) != 1 || v.EntryPoints[0].Command[1] != "train.py" {
					t.Errorf("entry points = %+v", v.EntryPoints)
				}
			},
		},
		{
			name: "optional fields omitted",
			data: `name: "min", gpu: false`,
			check: func(t *testing.T, v *testLaunch) {
				t.Helper()
				if v.PythonVersion != "" || len(v.EntryPoints) != 0 {
					t.Errorf("decoded = %+v", v)
				}
			},
		},
		{
			name:    "wrong type",
			data:    `name: 3, gpu: false`,
			wantErr: "name",
		},
		{
			name:    "missing required field",
			data:    `name: "x"`,
			wantErr: "gpu",
		},
		{
			name:    "empty command",
			data:    `name: "x", gpu: false, entry_points: [{name: "a", command: []}]`,
			wantErr: "entry_points",
		},
		{
			name:    "filename in errors",
			data:    `name: 1, gpu: true`,
			opts:    []Option{WithFilename("launch.cue")},
			wantErr: "launch.cue",
		},
		{
			name:    "size limit",
			data:    strings.Repeat("a", 200),
			opts:    []Option{WithMaxFileSize(100)},
			wantErr: "exceeds maximum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := ParseAndDecode[testLaunch]([]byte(testSchema), []byte(tt.data), "#Launch", tt.opts...)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseAndDecode() error = nil, want %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ParseAndDecode() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAndDecode() error = %v", err)
			}
			if res.Unified.Err() != nil {
				t.Errorf("Unified.Err() = %v", res.Unified.Err())
			}
			if tt.check != nil {
				tt.check(t, res.Value)
			}
		})
	}
}

func TestUnify_UnknownDefinition(t *testing.T) {
	t.Parallel()

	_, err := Unify([]byte(testSchema), []byte(`name: "x"`), "#Missing", "x.cue")
	if err == nil || !strings.Contains(err.Error(), "#Missing") {
		t.Errorf("Unify() error = %v, want missing definition", err)
	}
}
