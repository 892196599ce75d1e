// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/invowk/launchkit/internal/config"
	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/imagebuild"
	"github.com/invowk/launchkit/internal/issue"
	"github.com/invowk/launchkit/internal/launch"
	"github.com/invowk/launchkit/internal/project"
	"github.com/invowk/launchkit/internal/tracking"
)

// cliEntryPointName names the entry point given after "--".
const cliEntryPointName = "main"

type (
	// launchService is the production LaunchService. Its constructor hooks
	// are replaced in tests.
	launchService struct {
		config      ConfigProvider
		stdout      io.Writer
		stderr      io.Writer
		newEngine   func(engine config.ContainerEngine) container.Engine
		newRegistry func(cfg *config.Config, logger *log.Logger) *launch.Registry
		lastCommit  func(ctx context.Context, dir string) string
	}
)

// Compile-time interface check
var _ LaunchService = (*launchService)(nil)

func newLaunchService(cfg ConfigProvider, stdout, stderr io.Writer) *launchService {
	return &launchService{
		config:      cfg,
		stdout:      stdout,
		stderr:      stderr,
		newEngine:   newContainerEngine,
		newRegistry: newBackendRegistry,
		lastCommit:  project.LastCommit,
	}
}

// newContainerEngine returns the configured engine, or the other one when
// it is unavailable. With neither installed it returns the configured
// engine so the runner's toolchain check reports it.
func newContainerEngine(engine config.ContainerEngine) container.Engine {
	e, err := container.NewEngine(container.EngineType(engine))
	if err == nil {
		return e
	}
	if engine == config.ContainerEnginePodman {
		return container.NewPodmanEngine()
	}
	return container.NewDockerEngine()
}

// Launch loads configuration, resolves the project and runs it on the
// selected backend.
func (s *launchService) Launch(ctx context.Context, req LaunchRequest) (*launch.Result, error) {
	cfg, err := s.config.Load(ctx, config.LoadOptions{ConfigFilePath: req.ConfigPath})
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(s.stderr, log.Options{Prefix: "launchkit"})
	if req.Verbose || cfg.UI.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	spec, resource, err := s.buildSpec(ctx, cfg, req)
	if err != nil {
		return nil, err
	}
	if req.Watch && resource != string(launch.BackendLocal) {
		return nil, &launch.ConfigurationError{
			Setting: "watch",
			Message: fmt.Sprintf("--watch only supports the %s resource, not %q", launch.BackendLocal, resource),
		}
	}
	desc, err := project.New(spec)
	if err != nil {
		return nil, err
	}

	tr, err := newTrackingService(cfg, logger)
	if err != nil {
		return nil, err
	}

	engine := s.newEngine(cfg.ContainerEngine)
	buildOpts := []imagebuild.Option{
		imagebuild.WithNoCache(cfg.Build.NoCache),
		imagebuild.WithLogger(logger.WithPrefix("imagebuild")),
		imagebuild.WithOutput(s.stderr),
	}
	if cfg.Build.ContextDir != "" {
		buildOpts = append(buildOpts, imagebuild.WithContextParent(cfg.Build.ContextDir))
	}

	deps := launch.Deps{
		Engine:   engine,
		Builder:  imagebuild.NewBuilder(engine, tr, buildOpts...),
		Tracking: tr,
		Logger:   logger,
		Output:   s.stdout,
	}
	runner, err := s.newRegistry(cfg, logger).Runner(resource, deps)
	if err != nil {
		return nil, err
	}

	logger.Debug("Launching", "resource", runner.Kind(), "run", desc.RunID(), "dir", desc.Dir())
	return runner.Run(ctx, desc, launch.RunOptions{
		Synchronous: !req.Async,
		QueueItem:   req.QueueItem,
	})
}

// buildSpec turns the request into a project spec and picks the resource.
// Request values win over the launch file, which wins over the config.
func (s *launchService) buildSpec(ctx context.Context, cfg *config.Config, req LaunchRequest) (project.Spec, string, error) {
	dir, err := filepath.Abs(req.Dir)
	if err != nil {
		return project.Spec{}, "", fmt.Errorf("failed to resolve project directory: %w", err)
	}

	spec := project.Spec{
		Dir:           dir,
		Name:          req.Name,
		EntryPoint:    req.EntryPoint,
		Overrides:     req.Overrides,
		Image:         container.ImageTag(req.Image),
		PythonVersion: req.PythonVersion,
		ResourceArgs:  req.ResourceArgs,
		DockerArgs:    req.DockerArgs,
		RunID:         req.RunID,
		Entity:        req.Entity,
		Project:       req.Project,
		ForceRebuild:  req.ForceRebuild,
		GPU:           req.GPU,
	}
	if len(req.Command) > 0 {
		if spec.EntryPoint == "" {
			spec.EntryPoint = cliEntryPointName
		}
		spec.EntryPoints = []project.EntryPoint{{Name: spec.EntryPoint, Command: req.Command}}
	}

	resource := req.Resource
	lf, err := loadLaunchFile(dir, req.LaunchFile)
	if err != nil {
		return project.Spec{}, "", err
	}
	if lf != nil {
		lf.Apply(&spec)
		if resource == "" {
			resource = lf.Resource
		}
	}
	if resource == "" {
		resource = cfg.DefaultResource.String()
	}

	if spec.Entity == "" {
		spec.Entity = cfg.Tracking.Entity
	}
	if spec.Project == "" {
		spec.Project = cfg.Tracking.Project
	}
	spec.Commit = s.lastCommit(ctx, dir)

	return spec, resource, nil
}

// loadLaunchFile reads the explicit launch file, or the project's
// launch.cue when present.
func loadLaunchFile(dir, explicit string) (*project.LaunchFile, error) {
	path := explicit
	if path == "" {
		path = filepath.Join(dir, project.LaunchFileName)
	}
	lf, err := project.LoadLaunchFile(path)
	switch {
	case err == nil:
		return lf, nil
	case explicit == "" && errors.Is(err, fs.ErrNotExist):
		return nil, nil
	default:
		return nil, issue.NewErrorContext().
			WithOperation("load launch file").
			WithResource(path).
			WithIssue(issue.LaunchConfigurationId).
			WithSuggestion("Check the launch file against the launch.cue schema").
			Wrap(err).
			BuildError()
	}
}

// newTrackingService creates the tracking client, connected to the run
// queue when one is configured.
func newTrackingService(cfg *config.Config, logger *log.Logger) (*tracking.Service, error) {
	settings := tracking.Settings{
		BaseURL: cfg.Tracking.BaseURL,
		APIKey:  cfg.Tracking.APIKey,
		Entity:  cfg.Tracking.Entity,
		Project: cfg.Tracking.Project,
	}
	opts := []tracking.ServiceOption{tracking.WithLogger(logger.WithPrefix("tracking"))}
	if cfg.Tracking.QueueRedisURL != "" {
		queue, err := tracking.DialRedisQueue(cfg.Tracking.QueueRedisURL)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("connect to run queue").
				WithResource(cfg.Tracking.QueueRedisURL).
				WithSuggestion("Check tracking.queue_redis_url in the configuration").
				Wrap(err).
				BuildError()
		}
		opts = append(opts, tracking.WithQueue(queue))
	}
	return tracking.NewService(settings, opts...), nil
}
