// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/invowk/launchkit/internal/launch"
)

// pageLinker is implemented by runs with a web console page.
type pageLinker interface {
	PageLink() string
}

// exitCoder is implemented by runs that report a process exit code.
type exitCoder interface {
	ExitCode() int
}

// newLaunchCommand creates the `launchkit launch` command.
func newLaunchCommand(app *App) *cobra.Command {
	req := LaunchRequest{}
	var watchPatterns []string

	launchCmd := &cobra.Command{
		Use:   "launch [path] [-- command...]",
		Short: "Build or reuse an image for a project and run it",
		Long: `Build or reuse a container image for the project at path (default ".")
and run its entry point on the selected resource.

The entry point is either the command given after "--" or one of the
entry points declared in the project's launch.cue. Command line flags take
precedence over launch.cue, which takes precedence over the configuration
file.`,
		Example: `  launchkit launch . -- python train.py --epochs 3
  launchkit launch -e train -a lr=0.01 ./project
  launchkit launch -r gcp-vertex -R gcp_staging_bucket=gs://bkt -R gcp_artifact_repo=repo .
  launchkit launch --watch --watch-pattern '**/*.py' . -- python train.py`,
		Args: func(cmd *cobra.Command, args []string) error {
			positional, _ := splitAtDash(args, cmd.ArgsLenAtDash())
			return cobra.MaximumNArgs(1)(cmd, positional)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			r := req
			r.Dir, r.Command = splitLaunchArgs(args, cmd.ArgsLenAtDash())
			r.Verbose = app.flags.verbose
			r.ConfigPath = app.flags.configPath
			if r.Watch {
				return watchLaunch(cmd, app, r, watchPatterns)
			}
			return runLaunch(cmd, app, r)
		},
	}

	flags := launchCmd.Flags()
	flags.StringVarP(&req.Resource, "resource", "r", "", "resource to run on (local, gcp-vertex)")
	flags.StringVarP(&req.EntryPoint, "entry-point", "e", "", "entry point to run when several are declared")
	flags.StringVarP(&req.LaunchFile, "launch-config", "c", "", "launch file (default is <path>/launch.cue when present)")
	flags.StringVar(&req.Image, "docker-image", "", "run this image instead of building one")
	flags.BoolVar(&req.ForceRebuild, "build", false, "build a new image even when one can be reused")
	flags.StringToStringVarP(&req.Overrides, "arg", "a", nil, "entry point argument override key=value (repeatable)")
	flags.StringToStringVarP(&req.ResourceArgs, "resource-arg", "R", nil, "resource argument key=value (repeatable)")
	flags.StringToStringVar(&req.DockerArgs, "docker-arg", nil, "extra local container run flag key=value (repeatable)")
	flags.StringVar(&req.Name, "name", "", "display name of the run")
	flags.StringVar(&req.Entity, "entity", "", "tracking entity")
	flags.StringVar(&req.Project, "project", "", "tracking project")
	flags.StringVar(&req.PythonVersion, "python-version", "", "python version of generated images")
	flags.BoolVar(&req.GPU, "gpu", false, "layer generated images on a CUDA base")
	flags.StringVar(&req.RunID, "run-id", "", "run id (generated when empty)")
	flags.StringVar(&req.QueueItem, "queue-item", "", "run queue item to acknowledge before starting")
	flags.BoolVar(&req.Async, "async", false, "return once the job is started")
	flags.BoolVarP(&req.Watch, "watch", "w", false, "relaunch the local run when project files change")
	flags.StringSliceVar(&watchPatterns, "watch-pattern", nil, "glob of files that trigger a relaunch (default all files)")
	launchCmd.MarkFlagsMutuallyExclusive("watch", "async")
	launchCmd.MarkFlagsMutuallyExclusive("watch", "queue-item")

	return launchCmd
}

// splitLaunchArgs separates the project path from the command given after "--".
func splitLaunchArgs(args []string, dash int) (dir string, command []string) {
	positional, command := splitAtDash(args, dash)
	dir = "."
	if len(positional) > 0 {
		dir = positional[0]
	}
	return dir, command
}

func splitAtDash(args []string, dash int) (before, after []string) {
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// runLaunch executes the launch and reports its outcome.
func runLaunch(cmd *cobra.Command, app *App, req LaunchRequest) error {
	res, err := app.Launcher.Launch(cmd.Context(), req)
	if err != nil {
		renderLaunchError(app, req, err)
		cmd.SilenceErrors = true
		return &ExitError{Code: 1, Err: err}
	}

	if code := reportResult(cmd.Context(), app.stdout, res); code != 0 {
		cmd.SilenceErrors = true
		return &ExitError{Code: code}
	}
	return nil
}

// renderLaunchError prints err with its issue guide.
func renderLaunchError(app *App, req LaunchRequest, err error) {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		issueID, styled := classifyLaunchError(err, req.Verbose)
		svcErr = newServiceError(err, issueID, styled)
	}
	renderServiceError(app.stderr, svcErr)
}

// reportResult prints the outcome of a launch and returns the exit code
// the CLI should end with.
func reportResult(ctx context.Context, w io.Writer, res *launch.Result) int {
	switch res.Kind {
	case launch.ResultSkipped:
		fmt.Fprintf(w, "%s run queue item was claimed by another launcher, nothing was started\n", WarningStyle.Render("Skipped:"))
		return 0

	case launch.ResultDetached:
		fmt.Fprintf(w, "%s %s (%s)\n", SuccessStyle.Render("Submitted"), CmdStyle.Render(res.Run.Name()), res.Run.ID())
		printRunDetails(w, res)
		return 0
	}

	status := res.Run.Status(ctx)
	switch {
	case status == launch.StatusFailed:
		code := 1
		if ec, ok := res.Run.(exitCoder); ok && ec.ExitCode() > 0 {
			code = ec.ExitCode()
		}
		fmt.Fprintf(w, "%s %s (%s) exited with code %d\n", ErrorStyle.Render("Failed"), CmdStyle.Render(res.Run.Name()), res.Run.ID(), code)
		printRunDetails(w, res)
		return code
	case status.Terminal():
		fmt.Fprintf(w, "%s %s (%s)\n", SuccessStyle.Render("Finished"), CmdStyle.Render(res.Run.Name()), res.Run.ID())
	default:
		fmt.Fprintf(w, "%s %s (%s) is %s\n", SuccessStyle.Render("Started"), CmdStyle.Render(res.Run.Name()), res.Run.ID(), status)
	}
	printRunDetails(w, res)
	return 0
}

func printRunDetails(w io.Writer, res *launch.Result) {
	if res.Image != "" {
		fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("image:"), res.Image)
	}
	if pl, ok := res.Run.(pageLinker); ok && pl.PageLink() != "" {
		fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("page: "), CmdStyle.Render(pl.PageLink()))
	}
}
