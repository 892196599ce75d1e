// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/imagebuild"
	"github.com/invowk/launchkit/internal/issue"
	"github.com/invowk/launchkit/internal/launch"
	"github.com/invowk/launchkit/internal/project"
	"github.com/invowk/launchkit/internal/tracking"
)

// classifyLaunchError maps launch failures to issue catalog IDs and returns
// a styled message for CLI rendering. Issues attached to actionable errors
// take precedence over the sentinel mapping.
func classifyLaunchError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	issueID = issue.IssueOf(err)

	if issueID == 0 {
		var notAvailable *container.ErrEngineNotAvailable
		switch {
		case errors.Is(err, launch.ErrToolchainMissing), errors.As(err, &notAvailable):
			issueID = issue.ToolchainMissingId
		case errors.Is(err, project.ErrAmbiguousEntryPoint),
			errors.Is(err, project.ErrNoEntryPoint),
			errors.Is(err, project.ErrUnknownEntryPoint):
			issueID = issue.EntryPointAmbiguousId
		case errors.Is(err, launch.ErrConfiguration), errors.Is(err, project.ErrInvalidProjectDir):
			issueID = issue.LaunchConfigurationId
		case errors.Is(err, imagebuild.ErrBuildFailed):
			issueID = issue.ImageBuildFailedId
		case errors.Is(err, launch.ErrSubmissionTimeout):
			issueID = issue.SubmissionTimeoutId
		case errors.Is(err, launch.ErrUnknownBackend):
			issueID = issue.UnknownResourceId
		case errors.Is(err, tracking.ErrConflict):
			issueID = issue.QueueConflictId
		}
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}
