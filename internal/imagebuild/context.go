// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/project"
)

const (
	// DockerfileName is the generated instructions file in the build context.
	DockerfileName = "Dockerfile.launchkit-autogenerated"
	// MetadataFile is the launch metadata written next to the project source.
	MetadataFile = "launch_metadata.json"

	srcDir         = "src"
	runtimeFile    = "runtime.txt"
	buildDirName   = "launchkit-build"
	cwdBuildDir    = ".launchkit-build"
	contextPattern = "ctx-*"
)

// launchMetadata is persisted into the image; every field is sanitized.
type launchMetadata struct {
	RunID      string `json:"run_id"`
	Image      string `json:"image"`
	Command    string `json:"command"`
	Dockerfile string `json:"dockerfile"`
}

// buildContext describes a materialized build context.
type buildContext struct {
	dir     string
	cleanup func()
}

// prepareBuildContext creates a fresh directory holding the generated
// instructions and a copy of the project under src/.
//
// Docker installed via Snap cannot read /tmp or hidden directories under
// HOME, so contexts live in a visible directory such as ~/launchkit-build.
func (b *Builder) prepareBuildContext(desc *project.Descriptor, tag container.ImageTag, dockerfile string, command []string) (*buildContext, error) {
	parent := b.contextParent()
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create build context parent directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parent, contextPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	bc := &buildContext{
		dir: tmpDir,
		cleanup: func() {
			if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
				b.logger.Warn("Temporary build context was not deleted", "path", tmpDir, "error", rmErr)
			}
		},
	}

	if err := b.populateBuildContext(tmpDir, parent, desc, tag, dockerfile, command); err != nil {
		bc.cleanup()
		return nil, err
	}
	return bc, nil
}

func (b *Builder) populateBuildContext(dir, parent string, desc *project.Descriptor, tag container.ImageTag, dockerfile string, command []string) error {
	dst := filepath.Join(dir, srcDir)
	if err := CopyDir(desc.Dir(), dst, parent); err != nil {
		return fmt.Errorf("failed to copy project source: %w", err)
	}

	reqs, err := project.LoadRequirements(desc.Dir())
	if err != nil {
		return err
	}
	for _, skipped := range reqs.Skipped {
		b.logger.Warn("Unable to parse requirement, skipping", "source", reqs.Source, "detail", skipped)
	}
	if err := os.WriteFile(filepath.Join(dst, project.RequirementsFile), []byte(reqs.Render()), 0o644); err != nil {
		return fmt.Errorf("failed to write requirements: %w", err)
	}

	if v := desc.PythonVersion(); v != "" {
		if err := os.WriteFile(filepath.Join(dst, runtimeFile), []byte("python-"+v), 0o644); err != nil {
			return fmt.Errorf("failed to write runtime marker: %w", err)
		}
	}

	meta := launchMetadata{
		RunID:      desc.RunID(),
		Image:      string(tag),
		Command:    b.redactor.Sanitize(strings.Join(command, " ")),
		Dockerfile: b.redactor.Sanitize(dockerfile),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode launch metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dst, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write launch metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, DockerfileName), []byte(dockerfile), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", DockerfileName, err)
	}
	return nil
}

// contextParent picks the directory build contexts are created in.
func (b *Builder) contextParent() string {
	if b.config.ContextParent != "" {
		return b.config.ContextParent
	}
	// HOME may be set to a path that does not exist in sandboxed environments.
	if home, err := os.UserHomeDir(); err == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			return filepath.Join(home, buildDirName)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, cwdBuildDir)
	}
	return filepath.Join(os.TempDir(), buildDirName)
}

// CopyDir recursively copies src to dst following symlinks. Directories that
// resolve to skip (the build context parent) and .git are not copied, and a
// directory already being copied is not entered again.
func CopyDir(src, dst, skip string) error {
	skipReal := ""
	if skip != "" {
		if real, err := filepath.EvalSymlinks(skip); err == nil {
			skipReal = real
		}
	}
	return copyDir(src, dst, skipReal, make(map[string]bool))
}

func copyDir(src, dst, skip string, active map[string]bool) error {
	real, err := filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", src, err)
	}
	if real == skip || active[real] {
		return nil
	}
	active[real] = true
	defer delete(active, real)

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}
	if err = os.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}

	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		// Stat follows symlinks.
		info, err := os.Stat(srcPath)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", srcPath, err)
		}
		switch {
		case info.IsDir():
			if err := copyDir(srcPath, dstPath, skip, active); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := CopyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyFile copies a file from src to dst.
func CopyFile(src, dst string) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() { _ = srcFile.Close() }() // Read-only file; close error non-critical

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dstFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	return nil
}
