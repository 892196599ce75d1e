// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/invowk/launchkit/internal/container"
)

const (
	// DefaultPythonVersion is used when the project does not pin a runtime.
	DefaultPythonVersion = "3.11"
	// CUDABaseImage is the base of GPU images; python comes from deadsnakes.
	CUDABaseImage = "nvidia/cuda:11.8.0-base-ubuntu22.04"

	devTrackingURL = "http://host.docker.internal:9002"
	dockerHostName = "host.docker.internal"
)

// Recipe holds the inputs of generated build instructions.
type Recipe struct {
	// PythonVersion is the runtime version, e.g. "3.11".
	PythonVersion string
	// GPU selects the CUDA base.
	GPU bool
	// User and UserID are the account the image runs as.
	User   string
	UserID int
	// WorkDir is where the project source lands in the image.
	WorkDir string
	// Home holds the cache directory; defaults to WorkDir.
	Home string
	// Base is the image a layer recipe starts from.
	Base container.ImageTag
	// CopyCode copies the project source into a layer.
	CopyCode bool
	// CacheMounts uses RUN --mount=type=cache for the dependency install.
	CacheMounts bool
	// Env holds "KEY=value" assignments rendered as ENV lines.
	Env []string
	// Command is the entrypoint argv; no ENTRYPOINT is emitted when empty.
	Command []string
}

// Standalone renders a multi-stage recipe: dependencies are installed into a
// virtualenv in a build stage and copied onto a slim CPU base or a CUDA base.
func (r Recipe) Standalone() string {
	pyVersion := r.pythonVersion()
	pyMajor, _, _ := strings.Cut(pyVersion, ".")

	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM python:%s-slim-buster as build\n\n", pyVersion)
	sb.WriteString("# install in venv to copy\n")
	sb.WriteString("RUN python -m venv /opt/venv\n")
	sb.WriteString("ENV PATH=\"/opt/venv/bin:$PATH\"\n\n")
	sb.WriteString("RUN apt-get update -qq && apt-get install --no-install-recommends -y \\\n")
	fmt.Fprintf(&sb, "    %s \\\n", strings.Join(buildPackages(pyMajor), " "))
	sb.WriteString("    && apt-get -qq purge && apt-get -qq clean \\\n")
	sb.WriteString("    && rm -rf /var/lib/apt/lists/*\n\n")
	sb.WriteString("COPY src/requirements.txt .\n")
	sb.WriteString(r.installLine(r.WorkDir, "mode=0777,"))
	sb.WriteString("\n")

	if r.GPU {
		fmt.Fprintf(&sb, "FROM %s as base\n", CUDABaseImage)
		sb.WriteString("RUN apt-get update -qq && apt-get install -y software-properties-common && add-apt-repository -y ppa:deadsnakes/ppa\n\n")
		sb.WriteString("RUN apt-get update -qq && apt-get install --no-install-recommends -y \\\n")
		fmt.Fprintf(&sb, "    %s \\\n", strings.Join(gpuPythonPackages(pyVersion, pyMajor), " \\\n    "))
		sb.WriteString("    && apt-get -qq purge && apt-get -qq clean \\\n")
		sb.WriteString("    && rm -rf /var/lib/apt/lists/*\n\n")
		sb.WriteString("# make sure `python` points at the right version\n")
		fmt.Fprintf(&sb, "RUN update-alternatives --install /usr/bin/python python /usr/bin/python%s 1 \\\n", pyVersion)
		fmt.Fprintf(&sb, "    && update-alternatives --install /usr/local/bin/python python /usr/bin/python%s 1\n\n", pyVersion)
	} else {
		fmt.Fprintf(&sb, "FROM python:%s-slim-buster as base\n\n", pyVersion)
	}

	sb.WriteString("COPY --from=build /opt/venv /opt/venv\n")
	sb.WriteString("ENV PATH=\"/opt/venv/bin:$PATH\"\n\n")
	sb.WriteString("ENV SHELL /bin/bash\n\n")
	sb.WriteString("RUN useradd \\\n")
	sb.WriteString("    --create-home \\\n")
	sb.WriteString("    --no-log-init \\\n")
	sb.WriteString("    --shell /bin/bash \\\n")
	sb.WriteString("    --gid 0 \\\n")
	fmt.Fprintf(&sb, "    --uid %d \\\n", r.UserID)
	fmt.Fprintf(&sb, "    %s\n\n", r.User)
	fmt.Fprintf(&sb, "WORKDIR %s\n", r.WorkDir)
	fmt.Fprintf(&sb, "RUN chown %s %s\n\n", r.User, r.WorkDir)
	sb.WriteString(r.envSection())
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "RUN mkdir -p %[1]s/.cache && chown -R %[2]d %[1]s/.cache\n\n", r.WorkDir, r.UserID)
	fmt.Fprintf(&sb, "COPY --chown=%s src/ %s\n\n", r.User, r.WorkDir)
	fmt.Fprintf(&sb, "USER %s\n\n", r.User)
	sb.WriteString("ENV PYTHONUNBUFFERED=1\n")
	sb.WriteString(r.entrypoint())
	return sb.String()
}

// Layer renders a recipe that adds the project (optionally), its
// dependencies and the launch environment on top of Base.
func (r Recipe) Layer() string {
	home := r.Home
	if home == "" {
		home = r.WorkDir
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n", r.Base)
	fmt.Fprintf(&sb, "RUN mkdir -p %[1]s/.cache && chown -R %[2]d %[1]s/.cache\n", home, r.UserID)
	if r.CopyCode {
		fmt.Fprintf(&sb, "COPY --chown=%d ./src/ %s\n", r.UserID, r.WorkDir)
		sb.WriteString(r.installLine(home, ""))
	}
	sb.WriteString(r.envSection())
	sb.WriteString(r.entrypoint())
	return sb.String()
}

func (r Recipe) pythonVersion() string {
	if r.PythonVersion == "" {
		return DefaultPythonVersion
	}
	return r.PythonVersion
}

// installLine renders the dependency install step. Without cache mount
// support the install runs with the launcher cache disabled.
func (r Recipe) installLine(cacheRoot, mountMode string) string {
	if r.CacheMounts {
		return fmt.Sprintf("RUN --mount=type=cache,%starget=%s/.cache,uid=%d,gid=0 pip install -r requirements.txt\n",
			mountMode, cacheRoot, r.UserID)
	}
	return "RUN LAUNCHKIT_DISABLE_CACHE=true pip install -r requirements.txt\n"
}

func (r Recipe) envSection() string {
	var sb strings.Builder
	for _, kv := range r.Env {
		fmt.Fprintf(&sb, "ENV %s\n", kv)
	}
	return sb.String()
}

func (r Recipe) entrypoint() string {
	if len(r.Command) == 0 {
		return ""
	}
	// Marshal of a []string cannot fail.
	arr, _ := json.Marshal(r.Command)
	return fmt.Sprintf("\nENTRYPOINT %s\n", arr)
}

func buildPackages(pyMajor string) []string {
	if pyMajor == "2" {
		return []string{"python-dev", "gcc"}
	}
	return []string{"python3-dev", "gcc"}
}

func gpuPythonPackages(pyVersion, pyMajor string) []string {
	if pyMajor == "2" {
		return []string{"python" + pyVersion, "python-pip", "python-setuptools"}
	}
	return []string{"python" + pyVersion, "python3-pip", "python3-setuptools"}
}

// ContainerBaseURL rewrites a tracking URL so it resolves from inside a
// container: a localhost URL on macOS and the development URL both point at
// the docker host.
func ContainerBaseURL(raw, hostOS string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := u.Hostname()
	switch {
	case isLocalHost(host) && hostOS == "darwin":
		if port := u.Port(); port != "" {
			return "http://" + dockerHostName + ":" + port
		}
		return "http://" + dockerHostName
	case strings.HasSuffix(host, ".test"):
		return devTrackingURL
	}
	return raw
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}
