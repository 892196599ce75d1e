// SPDX-License-Identifier: MPL-2.0

// Package cloudconfig reads the locally configured cloud defaults from the
// gcloud CLI, used when a cloud launch does not name its project or region.
package cloudconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfiguration is the gcloud configuration used when none is named.
const DefaultConfiguration = "default"

// ErrCLINotFound is returned when the gcloud CLI is not installed.
var ErrCLINotFound = errors.New("gcloud CLI not found")

type (
	// CommandFunc creates the CLI command; tests substitute it.
	CommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Configuration is the subset of a named gcloud configuration the
	// launcher reads.
	Configuration struct {
		Name       string     `yaml:"name"`
		IsActive   bool       `yaml:"is_active"`
		Properties Properties `yaml:"properties"`
	}

	// Properties are the configuration sections.
	Properties struct {
		Core    CoreProperties    `yaml:"core"`
		Compute ComputeProperties `yaml:"compute"`
	}

	// CoreProperties hold the account and default project.
	CoreProperties struct {
		Account string `yaml:"account"`
		Project string `yaml:"project"`
	}

	// ComputeProperties hold the default region and zone.
	ComputeProperties struct {
		Region string `yaml:"region"`
		Zone   string `yaml:"zone"`
	}

	// Reader runs `gcloud config configurations describe`.
	Reader struct {
		binary  string
		command CommandFunc
	}

	// ReaderOption configures a Reader.
	ReaderOption func(*Reader)
)

// WithBinary sets the gcloud binary name or path.
func WithBinary(binary string) ReaderOption {
	return func(r *Reader) { r.binary = binary }
}

// WithCommand sets the command constructor.
func WithCommand(fn CommandFunc) ReaderOption {
	return func(r *Reader) { r.command = fn }
}

// NewReader creates a Reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{binary: "gcloud", command: exec.CommandContext}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Describe returns the named configuration, DefaultConfiguration when name
// is empty.
func (r *Reader) Describe(ctx context.Context, name string) (*Configuration, error) {
	if name == "" {
		name = DefaultConfiguration
	}

	var stderr bytes.Buffer
	cmd := r.command(ctx, r.binary, "config", "configurations", "describe", name)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrCLINotFound, err)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("describe gcloud configuration %q: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("describe gcloud configuration %q: %w", name, err)
	}
	return Parse(out)
}

// Parse decodes the YAML output of `gcloud config configurations describe`.
func Parse(data []byte) (*Configuration, error) {
	var c Configuration
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse gcloud configuration: %w", err)
	}
	return &c, nil
}

// Project returns the default project.
func (c *Configuration) Project() string { return c.Properties.Core.Project }

// Zone returns the default zone.
func (c *Configuration) Zone() string { return c.Properties.Compute.Zone }

// Region returns the default region, derived from the zone when only a zone
// is configured.
func (c *Configuration) Region() string {
	if c.Properties.Compute.Region != "" {
		return c.Properties.Compute.Region
	}
	return RegionFromZone(c.Properties.Compute.Zone)
}

// RegionFromZone keeps the first two dash-separated parts of a zone, e.g.
// us-central1-a -> us-central1.
func RegionFromZone(zone string) string {
	if zone == "" {
		return ""
	}
	parts := strings.SplitN(zone, "-", 3)
	return strings.Join(parts[:min(2, len(parts))], "-")
}
