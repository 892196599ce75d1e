// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"strings"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/project"
)

const commitPrefixLength = 7

// ImageURI returns the local tag of a generated image:
// "<image-name>:<commit[:7]><run-id>", or "<image-name>:<run-id>" when the
// project has no commit history.
func ImageURI(desc *project.Descriptor) container.ImageTag {
	version := desc.RunID()
	if commit := desc.Commit(); commit != "" {
		version = commit[:min(commitPrefixLength, len(commit))] + version
	}
	return container.ImageTag(desc.ImageName() + ":" + version)
}

// RemoteImageURI returns the registry path "<host>/<project>/<repo>/<local-uri>".
func RemoteImageURI(host, gcpProject, repo string, desc *project.Descriptor) container.ImageTag {
	return container.ImageTag(strings.Join([]string{host, gcpProject, repo, string(ImageURI(desc))}, "/"))
}
