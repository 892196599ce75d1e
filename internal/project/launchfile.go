// SPDX-License-Identifier: MPL-2.0

package project

import (
	_ "embed"
	"fmt"
	"maps"
	"os"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/cueutil"
)

// LaunchFileName is the launch file looked up in a project directory.
const LaunchFileName = "launch.cue"

//go:embed launchfile_schema.cue
var launchFileSchema []byte

type (
	// LaunchFile is a decoded launch.cue. Values given on the command line
	// take precedence over it (see Apply).
	LaunchFile struct {
		Name          string            `json:"name,omitempty"`
		ImageName     string            `json:"image_name,omitempty"`
		EntryPoints   []fileEntryPoint  `json:"entry_points,omitempty"`
		EntryPoint    string            `json:"entry_point,omitempty"`
		Overrides     map[string]string `json:"overrides,omitempty"`
		Image         string            `json:"image,omitempty"`
		BaseImage     string            `json:"base_image,omitempty"`
		PythonVersion string            `json:"python_version,omitempty"`
		GPU           bool              `json:"gpu,omitempty"`
		Resource      string            `json:"resource,omitempty"`
		ResourceArgs  map[string]string `json:"resource_args,omitempty"`
		DockerArgs    map[string]string `json:"docker_args,omitempty"`
		Entity        string            `json:"entity,omitempty"`
		Project       string            `json:"project,omitempty"`
	}

	fileEntryPoint struct {
		Name    string   `json:"name"`
		Command []string `json:"command"`
	}
)

// LoadLaunchFile reads and validates a launch file.
func LoadLaunchFile(path string) (*LaunchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read launch file: %w", err)
	}
	return ParseLaunchFile(data, path)
}

// ParseLaunchFile validates data against the launch file schema.
func ParseLaunchFile(data []byte, filename string) (*LaunchFile, error) {
	res, err := cueutil.ParseAndDecode[LaunchFile](launchFileSchema, data, "#LaunchFile",
		cueutil.WithFilename(filename),
		cueutil.WithConcrete(true),
	)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Apply fills the fields of spec that are still unset from the file. Maps
// are merged with spec entries winning.
func (f *LaunchFile) Apply(spec *Spec) {
	setString(&spec.Name, f.Name)
	setString(&spec.ImageName, f.ImageName)
	setString(&spec.EntryPoint, f.EntryPoint)
	setString(&spec.PythonVersion, f.PythonVersion)
	setString(&spec.Entity, f.Entity)
	setString(&spec.Project, f.Project)
	if spec.Image == "" {
		spec.Image = container.ImageTag(f.Image)
	}
	if spec.BaseImage == "" {
		spec.BaseImage = container.ImageTag(f.BaseImage)
	}
	if len(spec.EntryPoints) == 0 {
		for _, ep := range f.EntryPoints {
			spec.EntryPoints = append(spec.EntryPoints, EntryPoint{Name: ep.Name, Command: ep.Command})
		}
	}
	spec.GPU = spec.GPU || f.GPU
	spec.Overrides = mergeUnder(spec.Overrides, f.Overrides)
	spec.ResourceArgs = mergeUnder(spec.ResourceArgs, f.ResourceArgs)
	spec.DockerArgs = mergeUnder(spec.DockerArgs, f.DockerArgs)
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// mergeUnder returns base with the entries of under it does not define.
func mergeUnder(base, under map[string]string) map[string]string {
	if len(under) == 0 {
		return base
	}
	out := maps.Clone(under)
	maps.Copy(out, base)
	return out
}
