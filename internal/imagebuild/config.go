// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"io"
	"os"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/invowk/launchkit/internal/redact"
)

type (
	// Config holds the builder settings.
	Config struct {
		// ContextParent is where build contexts are created. When empty a
		// visible directory under HOME is used (see prepareBuildContext).
		ContextParent string

		// Output receives build progress.
		Output io.Writer

		// HostOS controls localhost URL rewriting for containers.
		// Default: runtime.GOOS
		HostOS string

		// NoCache disables the engine layer cache.
		NoCache bool

		// Logger receives builder diagnostics.
		Logger *log.Logger

		// Redactor formats and sanitizes credential-bearing text.
		Redactor *redact.Redactor
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		HostOS: runtime.GOOS,
	}
}

// WithContextParent returns an Option that sets ContextParent on the config.
func WithContextParent(dir string) Option {
	return func(c *Config) {
		c.ContextParent = dir
	}
}

// WithOutput returns an Option that sets Output on the config.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		c.Output = w
	}
}

// WithHostOS returns an Option that sets HostOS on the config.
func WithHostOS(goos string) Option {
	return func(c *Config) {
		c.HostOS = goos
	}
}

// WithNoCache returns an Option that sets NoCache on the config.
func WithNoCache(noCache bool) Option {
	return func(c *Config) {
		c.NoCache = noCache
	}
}

// WithLogger returns an Option that sets Logger on the config.
func WithLogger(logger *log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRedactor returns an Option that sets Redactor on the config.
func WithRedactor(r *redact.Redactor) Option {
	return func(c *Config) {
		c.Redactor = r
	}
}

// Apply applies the given options to the config and fills unset fields.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Output == nil {
		c.Output = io.Discard
	}
	if c.Logger == nil {
		c.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "imagebuild"})
	}
	if c.Redactor == nil {
		c.Redactor = redact.New()
	}
}
