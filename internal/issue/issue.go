// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ToolchainMissingId Id = iota + 1
	LaunchConfigurationId
	EntryPointAmbiguousId
	ImageBuildFailedId
	ImagePushFailedId
	QueueConflictId
	SubmissionTimeoutId
	UnknownResourceId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	name     string      // short name accepted by `launchkit issue <name>`
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Name() string {
	return i.name
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	toolchainMissingIssue = &Issue{
		id:   ToolchainMissingId,
		name: "toolchain-missing",
		mdMsg: `
# Container toolchain not found!

Every launch packages the project into a container image, so a container
engine must be installed and its daemon reachable.

## Supported engines:
- **Docker** (default)
- **Podman**

## Things you can try:
- Check that the engine answers:
~~~
$ docker version
~~~

- Pick the engine explicitly in ~/.config/launchkit/config.cue:
~~~cue
container_engine: "podman"
~~~`,
		extLinks: []HttpLink{"https://docs.docker.com/get-docker/", "https://podman.io/docs/installation"},
	}

	launchConfigurationIssue = &Issue{
		id:   LaunchConfigurationId,
		name: "configuration",
		mdMsg: `
# Launch configuration incomplete!

A required setting for the selected resource is missing. Settings are
resolved in this order:

1. ` + "`--resource-arg key=value`" + ` on the command line
2. the ` + "`cloud`" + ` block of the launchkit configuration file
3. the active gcloud configuration

## Settings read by the gcp-vertex resource:
- ` + "`gcp_project`" + `, ` + "`gcp_region`" + `
- ` + "`gcp_staging_bucket`" + ` (required)
- ` + "`gcp_artifact_repo`" + ` (required)
- ` + "`gcp_docker_host`" + `, ` + "`gcp_machine_type`" + `, ` + "`gcp_job_name`" + `, ` + "`gcp_config`" + `

## Example:
~~~
$ launchkit launch . -r gcp-vertex \
    -R gcp_staging_bucket=my-bucket \
    -R gcp_artifact_repo=my-repo
~~~`,
	}

	entryPointAmbiguousIssue = &Issue{
		id:   EntryPointAmbiguousId,
		name: "entry-point",
		mdMsg: `
# Entry point could not be resolved!

Exactly one entry point must be selected for a launch.

## Things you can try:
- Name the entry point to run:
~~~
$ launchkit launch . --entry-point main
~~~

- Or pass the command directly:
~~~
$ launchkit launch . --entry-point "python train.py"
~~~`,
	}

	imageBuildFailedIssue = &Issue{
		id:   ImageBuildFailedId,
		name: "build-failed",
		mdMsg: `
# Image build failed!

The container engine rejected the generated build instructions.

## Common causes:
- A dependency in requirements.txt cannot be installed
- The base image is unavailable or needs authentication
- Network access is blocked during the build

## Things you can try:
- Re-run with verbose output to see the engine log:
~~~
$ launchkit --verbose launch .
~~~

- Skip the build by launching a prebuilt image:
~~~
$ launchkit launch . --docker-image my-image:latest
~~~`,
	}

	imagePushFailedIssue = &Issue{
		id:   ImagePushFailedId,
		name: "push-failed",
		mdMsg: `
# Image push failed!

The built image could not be pushed to the artifact registry.

## Things you can try:
- Authenticate the engine against the registry:
~~~
$ gcloud auth configure-docker <region>-docker.pkg.dev
~~~

- Check that the repository named by ` + "`gcp_artifact_repo`" + ` exists in the project`,
	}

	queueConflictIssue = &Issue{
		id:   QueueConflictId,
		name: "queue-conflict",
		mdMsg: `
# Run queue item already acknowledged!

The lease on the queue item expired or another agent acknowledged it first.
The launch was skipped and nothing was started.

## Things you can try:
- Nothing, if another agent picked up the item
- Re-enqueue the run if it never started`,
	}

	submissionTimeoutIssue = &Issue{
		id:   SubmissionTimeoutId,
		name: "submission-timeout",
		mdMsg: `
# Job submission timed out!

The remote training service accepted the submission but never exposed a job
resource within the configured timeout.

## Things you can try:
- Raise the timeout in ~/.config/launchkit/config.cue:
~~~cue
cloud: {
	submission_timeout: "5m"
}
~~~

- Check the training service console for a stuck or rejected job`,
	}

	unknownResourceIssue = &Issue{
		id:   UnknownResourceId,
		name: "unknown-resource",
		mdMsg: `
# Unknown resource!

The requested resource is not one of the registered backends.

## Available resources:
- **local**: run the container on this machine
- **gcp-vertex**: submit the container to the managed training service`,
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		name: "config",
		mdMsg: `
# Failed to load configuration!

Could not load the launchkit configuration file.

## Configuration file locations:
- Linux: ~/.config/launchkit/config.cue
- macOS: ~/Library/Application Support/launchkit/config.cue
- Windows: %APPDATA%\launchkit\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ launchkit config init
~~~

- Remove the config file to use defaults`,
	}

	issues = map[Id]*Issue{
		toolchainMissingIssue.Id():    toolchainMissingIssue,
		launchConfigurationIssue.Id(): launchConfigurationIssue,
		entryPointAmbiguousIssue.Id(): entryPointAmbiguousIssue,
		imageBuildFailedIssue.Id():    imageBuildFailedIssue,
		imagePushFailedIssue.Id():     imagePushFailedIssue,
		queueConflictIssue.Id():       queueConflictIssue,
		submissionTimeoutIssue.Id():   submissionTimeoutIssue,
		unknownResourceIssue.Id():     unknownResourceIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, is := range issues {
		out = append(out, is)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// Lookup returns the catalog entry with the given short name.
func Lookup(name string) (*Issue, bool) {
	for _, is := range issues {
		if is.name == name {
			return is, true
		}
	}
	return nil, false
}
