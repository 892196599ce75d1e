// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/project"
	"github.com/invowk/launchkit/internal/redact"
)

// BaseURLSetting is the tracking setting holding the service URL.
const BaseURLSetting = "base_url"

// Injected environment variable names.
const (
	EnvBaseURL          = "LAUNCHKIT_BASE_URL"
	EnvAPIKey           = redact.APIKeyVar
	EnvProject          = "LAUNCHKIT_PROJECT"
	EnvEntity           = "LAUNCHKIT_ENTITY"
	EnvLaunch           = "LAUNCHKIT_LAUNCH"
	EnvLaunchConfigPath = "LAUNCHKIT_LAUNCH_CONFIG_PATH"
	EnvRunID            = "LAUNCHKIT_RUN_ID"
	EnvDocker           = "LAUNCHKIT_DOCKER"
	EnvName             = "LAUNCHKIT_NAME"
)

// ErrBuildFailed is matched by every *BuildError.
var ErrBuildFailed = errors.New("image build failed")

type (
	// Settings supplies the tracking-service values injected into images.
	Settings interface {
		Setting(key string) string
		APIKey() string
	}

	// BuildRequest tells ResolveImage what to build when no image is reused.
	BuildRequest struct {
		// Target overrides the computed local tag, e.g. a registry path.
		Target container.ImageTag
		// Base, when set, layers the project on an existing image instead of
		// generating a standalone image.
		Base *Base
		// CopyCode copies the project source into a layer.
		CopyCode bool
		// Command is the entrypoint argv of the image.
		Command []string
	}

	// Base describes an existing image a layer is built on.
	Base struct {
		Image container.ImageTag
		Info  *container.ImageInfo
	}

	// BuildError reports a failed or impossible image build.
	BuildError struct {
		Image container.ImageTag
		Err   error
	}

	// Builder resolves launch images. It owns its inspection cache.
	Builder struct {
		engine   container.Engine
		settings Settings
		cache    *InspectCache
		config   *Config
		logger   *log.Logger
		redactor *redact.Redactor
	}
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build image %s: %v", e.Image, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BuildError) Unwrap() error { return e.Err }

// Is reports whether target is ErrBuildFailed.
func (e *BuildError) Is(target error) bool { return target == ErrBuildFailed }

// NewBuilder creates a Builder driving engine.
func NewBuilder(engine container.Engine, settings Settings, opts ...Option) *Builder {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Builder{
		engine:   engine,
		settings: settings,
		cache:    NewInspectCache(engine),
		config:   cfg,
		logger:   cfg.Logger,
		redactor: cfg.Redactor,
	}
}

// Cache returns the builder's inspection cache.
func (b *Builder) Cache() *InspectCache { return b.cache }

// Redactor returns the formatter used for credential-bearing text.
func (b *Builder) Redactor() *redact.Redactor { return b.redactor }

// ResolveImage returns the image the launch runs in. A supplied image that
// can be inspected is reused without building unless a rebuild is forced;
// otherwise exactly one image is built and recorded on desc.
func (b *Builder) ResolveImage(ctx context.Context, desc *project.Descriptor, req BuildRequest) (container.ImageTag, error) {
	if img := desc.Image(); img != "" && !desc.ForceRebuild() {
		_, err := b.cache.Inspect(ctx, img)
		if err == nil {
			b.logger.Info("Using existing image", "image", img)
			return img, nil
		}
		b.logger.Debug("Image not inspectable, building", "image", img, "error", err)
	}

	tag := req.Target
	if tag == "" {
		tag = ImageURI(desc)
	}

	recipe := b.recipe(ctx, desc, tag, req)
	var dockerfile string
	if req.Base != nil {
		dockerfile = recipe.Layer()
	} else {
		dockerfile = recipe.Standalone()
	}

	if err := b.build(ctx, desc, tag, dockerfile, req.Command, recipe.CacheMounts); err != nil {
		return "", err
	}
	desc.RecordImage(tag)
	return tag, nil
}

// EnsureBase returns the inspection record of the descriptor's base image,
// building it from the standalone recipe when it does not exist yet.
func (b *Builder) EnsureBase(ctx context.Context, desc *project.Descriptor, command []string) (*Base, error) {
	base := desc.BaseImage()
	if info, err := b.cache.Inspect(ctx, base); err == nil {
		b.logger.Info("Using existing base image", "image", base)
		return &Base{Image: base, Info: info}, nil
	}

	recipe := b.recipe(ctx, desc, base, BuildRequest{Command: command})
	if err := b.build(ctx, desc, base, recipe.Standalone(), command, recipe.CacheMounts); err != nil {
		return nil, err
	}

	info, err := b.cache.Inspect(ctx, base)
	if err != nil {
		return nil, &BuildError{Image: base, Err: fmt.Errorf("inspect built base image: %w", err)}
	}
	return &Base{Image: base, Info: info}, nil
}

func (b *Builder) recipe(ctx context.Context, desc *project.Descriptor, tag container.ImageTag, req BuildRequest) Recipe {
	workdir := path.Join("/home", desc.User())
	home := ""
	if req.Base != nil && req.Base.Info != nil {
		workdir = req.Base.Info.WorkDir()
		home = req.Base.Info.Home()
	}

	cacheMounts := b.engine.BuildxAvailable(ctx)
	if !cacheMounts {
		b.logger.Warn("Build cache mounts are not supported by this toolchain; dependencies install uncached. Install docker buildx for faster builds")
	}

	r := Recipe{
		PythonVersion: desc.PythonVersion(),
		GPU:           desc.GPU(),
		User:          desc.User(),
		UserID:        desc.UserID(),
		WorkDir:       workdir,
		Home:          home,
		CopyCode:      req.CopyCode,
		CacheMounts:   cacheMounts,
		Env:           b.envAssignments(desc, tag, workdir),
		Command:       req.Command,
	}
	if req.Base != nil {
		r.Base = req.Base.Image
	}
	return r
}

// envAssignments renders the launch environment. All assignments go through
// the redactor so the credential value is known to Sanitize.
func (b *Builder) envAssignments(desc *project.Descriptor, tag container.ImageTag, workdir string) []string {
	baseURL := ""
	apiKey := ""
	if b.settings != nil {
		baseURL = ContainerBaseURL(b.settings.Setting(BaseURLSetting), b.config.HostOS)
		apiKey = b.settings.APIKey()
	}
	env := []string{
		b.assign(EnvBaseURL, baseURL),
		b.assign(EnvAPIKey, apiKey),
		b.assign(EnvProject, desc.Project()),
		b.assign(EnvEntity, desc.Entity()),
		b.assign(EnvLaunch, "True"),
		b.assign(EnvLaunchConfigPath, path.Join(workdir, MetadataFile)),
		b.assign(EnvRunID, desc.RunID()),
		b.assign(EnvDocker, string(tag)),
	}
	if name := desc.Name(); name != "" {
		env = append(env, b.assign(EnvName, name))
	}
	return env
}

// assign quotes values that an ENV instruction would otherwise split.
func (b *Builder) assign(key, value string) string {
	if strings.ContainsAny(value, " \t\"'\\") {
		value = strconv.Quote(value)
	}
	return b.redactor.Assign(key, value)
}

func (b *Builder) build(ctx context.Context, desc *project.Descriptor, tag container.ImageTag, dockerfile string, command []string, cacheMounts bool) error {
	if !b.engine.Available() {
		return &BuildError{Image: tag, Err: &container.ErrEngineNotAvailable{
			Engine: b.engine.Name(),
			Reason: "the build toolchain cannot be invoked",
		}}
	}

	bc, err := b.prepareBuildContext(desc, tag, dockerfile, command)
	if err != nil {
		return &BuildError{Image: tag, Err: err}
	}
	defer bc.cleanup()

	b.logger.Info("Building image", "image", tag, "engine", b.engine.Name())
	b.logger.Debug("Generated build instructions", "dockerfile", b.redactor.Sanitize(dockerfile))

	opts := container.BuildOptions{
		ContextDir:  bc.dir,
		Dockerfile:  DockerfileName,
		Tag:         tag,
		NoCache:     b.config.NoCache,
		CacheMounts: cacheMounts,
		Stdout:      b.config.Output,
		Stderr:      b.config.Output,
	}
	if err := b.engine.Build(ctx, opts); err != nil {
		return &BuildError{Image: tag, Err: err}
	}
	return nil
}
