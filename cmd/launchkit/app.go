// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/invowk/launchkit/internal/config"
	"github.com/invowk/launchkit/internal/launch"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root of the CLI layer: command handlers receive an App and delegate
	// through its service interfaces.
	App struct {
		Config   ConfigProvider
		Launcher LaunchService
		stdout   io.Writer
		stderr   io.Writer
		flags    globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Launcher LaunchService
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// globalFlags are the persistent root flags.
	globalFlags struct {
		verbose    bool
		configPath string
	}

	// LaunchRequest captures the inputs of one launch as an immutable value.
	LaunchRequest struct {
		// Dir is the project directory.
		Dir string
		// Command is the entry point given after "--" on the command line.
		Command []string
		// EntryPoint selects a declared entry point, or names Command.
		EntryPoint string
		// Resource is the backend name; empty uses the launch file or the
		// configured default.
		Resource string
		// LaunchFile is an explicit launch.cue path.
		LaunchFile    string
		Image         string
		ForceRebuild  bool
		Overrides     map[string]string
		ResourceArgs  map[string]string
		DockerArgs    map[string]string
		Name          string
		Entity        string
		Project       string
		PythonVersion string
		GPU           bool
		RunID         string
		QueueItem     string
		// Async returns once the job is started instead of waiting for it.
		Async bool
		// Watch restricts the launch to the local resource; the caller
		// relaunches it when the project changes.
		Watch bool
		// ConfigPath is the explicit --config value.
		ConfigPath string
		Verbose    bool
	}

	// LaunchService runs one launch request end to end.
	LaunchService interface {
		Launch(ctx context.Context, req LaunchRequest) (*launch.Result, error)
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Launcher == nil {
		deps.Launcher = newLaunchService(deps.Config, deps.Stdout, deps.Stderr)
	}

	return &App{
		Config:   deps.Config,
		Launcher: deps.Launcher,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}, nil
}

// loadOptions returns the config load options selected by the root flags.
func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}
