// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/invowk/launchkit/internal/container"
)

const (
	// DefaultImageName is used when the project does not name its image.
	DefaultImageName = "launchkit-launch"
	// DefaultUser is the in-image user when the host user cannot be reused.
	DefaultUser = "launchkit"
	// DefaultUserID is the in-image uid when the host uid cannot be reused.
	DefaultUserID = 1000

	runIDLength = 8
)

// ErrInvalidProjectDir is returned when the project directory does not exist.
var ErrInvalidProjectDir = errors.New("invalid project directory")

var userNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)

type (
	// Spec holds the user-supplied inputs of a launch.
	Spec struct {
		// Dir is the project source directory.
		Dir string
		// Name is the display name of the run (LAUNCHKIT_NAME in the image).
		Name string
		// ImageName is the repository part of generated image tags.
		ImageName string
		// EntryPoints are the declared entry points.
		EntryPoints []EntryPoint
		// EntryPoint selects one of EntryPoints by name.
		EntryPoint string
		// Overrides are appended to the entry point command as --key value.
		Overrides map[string]string
		// Image is a user-supplied image reference to run as-is.
		Image container.ImageTag
		// BaseImage is the image generated images are layered on.
		BaseImage container.ImageTag
		// PythonVersion selects the runtime of generated images, e.g. "3.11".
		PythonVersion string
		// ResourceArgs are backend-interpreted settings.
		ResourceArgs map[string]string
		// DockerArgs are extra flags for the local run command.
		DockerArgs map[string]string
		// RunID identifies the run; generated when empty.
		RunID string
		// Entity and Project are the tracking-service coordinates.
		Entity  string
		Project string
		// Commit is the latest source commit, empty without history.
		Commit string
		// ForceRebuild bypasses image reuse.
		ForceRebuild bool
		// GPU selects a CUDA base for generated images.
		GPU bool
		// User and UserID are the account generated images run as.
		User   string
		UserID int
	}

	// Descriptor is the immutable description of one launch.
	Descriptor struct {
		dir           string
		name          string
		imageName     string
		entryPoints   []EntryPoint
		entryPoint    string
		overrides     map[string]string
		image         container.ImageTag
		baseImage     container.ImageTag
		pythonVersion string
		resourceArgs  map[string]string
		dockerArgs    map[string]string
		runID         string
		entity        string
		project       string
		commit        string
		forceRebuild  bool
		gpu           bool
		user          string
		userID        int
	}
)

// New validates spec and returns a Descriptor, filling defaults for the run
// id, the image name and the in-image user.
func New(spec Spec) (*Descriptor, error) {
	dir, err := filepath.Abs(spec.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProjectDir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProjectDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidProjectDir, dir)
	}

	if spec.Image != "" {
		if err := spec.Image.Validate(); err != nil {
			return nil, err
		}
	}

	d := &Descriptor{
		dir:           dir,
		name:          spec.Name,
		imageName:     NormalizeImageName(spec.ImageName),
		entryPoints:   slices.Clone(spec.EntryPoints),
		entryPoint:    spec.EntryPoint,
		overrides:     maps.Clone(spec.Overrides),
		image:         spec.Image,
		baseImage:     spec.BaseImage,
		pythonVersion: spec.PythonVersion,
		resourceArgs:  maps.Clone(spec.ResourceArgs),
		dockerArgs:    maps.Clone(spec.DockerArgs),
		runID:         spec.RunID,
		entity:        spec.Entity,
		project:       spec.Project,
		commit:        spec.Commit,
		forceRebuild:  spec.ForceRebuild,
		gpu:           spec.GPU,
		user:          spec.User,
		userID:        spec.UserID,
	}
	if d.runID == "" {
		d.runID = NewRunID()
	}
	if d.baseImage == "" {
		d.baseImage = container.ImageTag(d.imageName + "-base:" + d.baseTag())
	}
	if d.user == "" || d.userID <= 0 {
		d.user, d.userID = hostUser()
	}
	return d, nil
}

// NewRunID returns a short random run identifier.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:runIDLength]
}

// NormalizeImageName lower-cases name and replaces spaces with dashes,
// returning DefaultImageName for an empty name.
func NormalizeImageName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultImageName
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

func (d *Descriptor) baseTag() string {
	tag := "py" + d.pythonVersion
	if d.pythonVersion == "" {
		tag = "latest"
	}
	if d.gpu {
		tag += "-gpu"
	}
	return tag
}

// hostUser reuses the host account inside generated images when it is a
// valid, non-root account name.
func hostUser() (string, int) {
	uid := os.Geteuid()
	if uid <= 0 {
		uid = DefaultUserID
	}
	u, err := user.Current()
	if err != nil || u.Username == "root" || !userNamePattern.MatchString(u.Username) {
		return DefaultUser, uid
	}
	return u.Username, uid
}

// Dir returns the absolute project directory.
func (d *Descriptor) Dir() string { return d.dir }

// Name returns the run display name.
func (d *Descriptor) Name() string { return d.name }

// ImageName returns the repository part of generated image tags.
func (d *Descriptor) ImageName() string { return d.imageName }

// Image returns the image reference, empty until one is supplied or built.
func (d *Descriptor) Image() container.ImageTag { return d.image }

// BaseImage returns the image generated images are layered on.
func (d *Descriptor) BaseImage() container.ImageTag { return d.baseImage }

// PythonVersion returns the requested runtime version.
func (d *Descriptor) PythonVersion() string { return d.pythonVersion }

// RunID returns the run identifier.
func (d *Descriptor) RunID() string { return d.runID }

// Entity returns the tracking-service entity.
func (d *Descriptor) Entity() string { return d.entity }

// Project returns the tracking-service project.
func (d *Descriptor) Project() string { return d.project }

// Commit returns the latest source commit, empty without history.
func (d *Descriptor) Commit() string { return d.commit }

// ForceRebuild reports whether image reuse is disabled.
func (d *Descriptor) ForceRebuild() bool { return d.forceRebuild }

// GPU reports whether generated images use a CUDA base.
func (d *Descriptor) GPU() bool { return d.gpu }

// User returns the account name generated images run as.
func (d *Descriptor) User() string { return d.user }

// UserID returns the numeric uid generated images run as.
func (d *Descriptor) UserID() int { return d.userID }

// Overrides returns a copy of the entry point overrides.
func (d *Descriptor) Overrides() map[string]string { return maps.Clone(d.overrides) }

// ResourceArgs returns a copy of the resource arguments.
func (d *Descriptor) ResourceArgs() map[string]string { return maps.Clone(d.resourceArgs) }

// ResourceArg returns one resource argument.
func (d *Descriptor) ResourceArg(key string) string { return d.resourceArgs[key] }

// DockerArgs returns a copy of the extra run flags.
func (d *Descriptor) DockerArgs() map[string]string { return maps.Clone(d.dockerArgs) }

// SingleEntryPoint resolves exactly one entry point for the launch.
func (d *Descriptor) SingleEntryPoint() (EntryPoint, error) {
	return resolveEntryPoint(d.entryPoints, d.entryPoint)
}

// Command returns the argv of the resolved entry point with overrides applied.
func (d *Descriptor) Command() ([]string, error) {
	ep, err := d.SingleEntryPoint()
	if err != nil {
		return nil, err
	}
	return ep.Compute(d.overrides), nil
}

// RecordImage stores the resolved or built image reference.
func (d *Descriptor) RecordImage(tag container.ImageTag) {
	d.image = tag
}
