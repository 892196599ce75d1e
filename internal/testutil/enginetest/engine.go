// SPDX-License-Identifier: MPL-2.0

package enginetest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/syntax"

	"github.com/invowk/launchkit/internal/container"
)

// ErrImageNotFound is returned by InspectImage for unknown images.
var ErrImageNotFound = errors.New("no such image")

// Compile-time interface check
var _ container.Engine = (*Engine)(nil)

type (
	// Build records one Build call.
	Build struct {
		Options container.BuildOptions
		// Dockerfile is the generated instructions file content.
		Dockerfile string
		// Files lists the build context entries, slash-separated and sorted.
		Files []string
		// Metadata is the content of src/launch_metadata.json, if any.
		Metadata string
	}

	// Option configures an Engine.
	Option func(*Engine)

	// Engine is a fake container engine. Built images become inspectable.
	Engine struct {
		mu          sync.Mutex
		name        string
		unavailable bool
		buildx      bool
		buildErr    error
		pullErr     error
		pushErr     error
		images      map[container.ImageTag]*container.ImageInfo
		entrypoints map[container.ImageTag][]string
		builds      []Build
		pulls       []container.ImageTag
		pushes      []container.ImageTag
		inspects    int
	}
)

// WithName sets the engine name.
func WithName(name string) Option { return func(e *Engine) { e.name = name } }

// WithUnavailable makes Available report false.
func WithUnavailable() Option { return func(e *Engine) { e.unavailable = true } }

// WithBuildx sets the BuildxAvailable answer.
func WithBuildx(buildx bool) Option { return func(e *Engine) { e.buildx = buildx } }

// WithBuildError makes every Build fail with err.
func WithBuildError(err error) Option { return func(e *Engine) { e.buildErr = err } }

// WithPullError makes every Pull fail with err.
func WithPullError(err error) Option { return func(e *Engine) { e.pullErr = err } }

// WithPushError makes every Push fail with err.
func WithPushError(err error) Option { return func(e *Engine) { e.pushErr = err } }

// WithImage registers an inspectable image.
func WithImage(tag container.ImageTag, info *container.ImageInfo) Option {
	return func(e *Engine) {
		if info == nil {
			info = &container.ImageInfo{ID: "sha256:" + string(tag)}
		}
		e.images[tag] = info
	}
}

// WithEntrypoint registers an image whose run executes argv.
func WithEntrypoint(tag container.ImageTag, argv ...string) Option {
	return func(e *Engine) {
		if _, ok := e.images[tag]; !ok {
			e.images[tag] = &container.ImageInfo{ID: "sha256:" + string(tag)}
		}
		e.entrypoints[tag] = argv
	}
}

// New creates a fake engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		name:        "fake",
		images:      make(map[container.ImageTag]*container.ImageInfo),
		entrypoints: make(map[container.ImageTag][]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Available reports whether the engine was configured as available.
func (e *Engine) Available() bool { return !e.unavailable }

// Version returns a fixed version.
func (e *Engine) Version(context.Context) (string, error) { return "0.0.0-fake", nil }

// BuildxAvailable returns the configured answer.
func (e *Engine) BuildxAvailable(context.Context) bool { return e.buildx }

// BinaryPath returns the shell used to execute fake runs.
func (e *Engine) BinaryPath() string { return "/bin/sh" }

// Build records the call and snapshots the build context.
func (e *Engine) Build(_ context.Context, opts container.BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	rec := Build{Options: opts}
	if data, err := os.ReadFile(filepath.Join(opts.ContextDir, opts.Dockerfile)); err == nil {
		rec.Dockerfile = string(data)
	}
	if data, err := os.ReadFile(filepath.Join(opts.ContextDir, "src", "launch_metadata.json")); err == nil {
		rec.Metadata = string(data)
	}
	_ = filepath.WalkDir(opts.ContextDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == opts.ContextDir {
			return nil //nolint:nilerr // snapshot is best-effort
		}
		rel, _ := filepath.Rel(opts.ContextDir, path)
		rec.Files = append(rec.Files, filepath.ToSlash(rel))
		return nil
	})
	slices.Sort(rec.Files)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.builds = append(e.builds, rec)
	if e.buildErr != nil {
		return e.buildErr
	}
	e.images[opts.Tag] = &container.ImageInfo{ID: "sha256:" + string(opts.Tag), RepoTags: []string{string(opts.Tag)}}
	if argv := parseEntrypoint(rec.Dockerfile); argv != nil {
		e.entrypoints[opts.Tag] = argv
	}
	return nil
}

// Pull records the call; a pulled image becomes inspectable.
func (e *Engine) Pull(_ context.Context, image container.ImageTag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pulls = append(e.pulls, image)
	if e.pullErr != nil {
		return e.pullErr
	}
	if _, ok := e.images[image]; !ok {
		e.images[image] = &container.ImageInfo{ID: "sha256:" + string(image)}
	}
	return nil
}

// Push records the call.
func (e *Engine) Push(_ context.Context, image container.ImageTag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pushes = append(e.pushes, image)
	return e.pushErr
}

// ImageExists reports whether the image is known.
func (e *Engine) ImageExists(_ context.Context, image container.ImageTag) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.images[image]
	return ok, nil
}

// InspectImage returns the registered record or ErrImageNotFound.
func (e *Engine) InspectImage(_ context.Context, image container.ImageTag) (*container.ImageInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inspects++
	info, ok := e.images[image]
	if !ok {
		return nil, fmt.Errorf("inspect %s: %w", image, ErrImageNotFound)
	}
	return info, nil
}

// RunArgs renders "-c <entrypoint>" so that BinaryPath executes the
// entrypoint of the image on the host. Images without a known entrypoint
// render "-c true".
func (e *Engine) RunArgs(opts container.RunOptions) []string {
	e.mu.Lock()
	argv := slices.Clone(e.entrypoints[opts.Image])
	e.mu.Unlock()
	argv = append(argv, opts.Command...)
	if len(argv) == 0 {
		return []string{"-c", "true"}
	}
	words := make([]string, len(argv))
	for i, a := range argv {
		q, err := syntax.Quote(a, syntax.LangPOSIX)
		if err != nil {
			q = a
		}
		words[i] = q
	}
	return []string{"-c", strings.Join(words, " ")}
}

// Builds returns the recorded builds.
func (e *Engine) Builds() []Build {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.builds)
}

// Pulls returns the pulled images.
func (e *Engine) Pulls() []container.ImageTag {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pulls)
}

// Pushes returns the pushed images.
func (e *Engine) Pushes() []container.ImageTag {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pushes)
}

// Inspects returns the number of InspectImage calls.
func (e *Engine) Inspects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inspects
}

func parseEntrypoint(dockerfile string) []string {
	var argv []string
	scanner := bufio.NewScanner(strings.NewReader(dockerfile))
	for scanner.Scan() {
		if rest, ok := strings.CutPrefix(scanner.Text(), "ENTRYPOINT "); ok {
			var parsed []string
			if json.Unmarshal([]byte(rest), &parsed) == nil {
				argv = parsed
			}
		}
	}
	return argv
}
