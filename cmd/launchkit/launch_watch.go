// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/invowk/launchkit/internal/launch"
	"github.com/invowk/launchkit/internal/watch"
)

// watchStopTimeout bounds how long a superseded run may take to stop.
const watchStopTimeout = 30 * time.Second

// watchSession owns the run started by the latest relaunch.
type watchSession struct {
	app *App
	req LaunchRequest

	mu      sync.Mutex
	current launch.Run
}

// watchLaunch starts a local run and relaunches it whenever files under the
// project directory change. The previous run is cancelled first. It returns
// when the command context is cancelled.
func watchLaunch(cmd *cobra.Command, app *App, req LaunchRequest, patterns []string) error {
	ctx := cmd.Context()
	req.Async = true
	s := &watchSession{app: app, req: req}

	if err := s.launch(ctx); err != nil {
		cmd.SilenceErrors = true
		return &ExitError{Code: 1, Err: err}
	}
	// Later launches must not reuse the image built from the old sources.
	s.req.ForceRebuild = true

	logger := log.NewWithOptions(app.stderr, log.Options{Prefix: "watch"})
	if req.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	w, err := watch.New(watch.Config{
		BaseDir:  req.Dir,
		Patterns: patterns,
		OnChange: s.onChange,
		Logger:   logger,
	})
	if err != nil {
		s.stop(ctx)
		return err
	}

	fmt.Fprintf(app.stdout, "%s %s for changes, press Ctrl+C to stop\n", SubtitleStyle.Render("Watching"), w.BaseDir())
	runErr := w.Run(ctx)
	s.stop(ctx)
	return runErr
}

func (s *watchSession) onChange(ctx context.Context, changed []string) error {
	fmt.Fprintf(s.app.stdout, "\n%s %s\n", WarningStyle.Render("Changed:"), summarizeChanges(changed))
	s.stop(ctx)
	if ctx.Err() != nil {
		return nil
	}
	// The error is already rendered; keep watching for a fix.
	_ = s.launch(ctx)
	return nil
}

// launch starts a run and records it. Errors are rendered before returning.
func (s *watchSession) launch(ctx context.Context) error {
	res, err := s.app.Launcher.Launch(ctx, s.req)
	if err != nil {
		renderLaunchError(s.app, s.req, err)
		return err
	}
	reportResult(ctx, s.app.stdout, res)

	s.mu.Lock()
	defer s.mu.Unlock()
	if res.Kind == launch.ResultSubmitted {
		s.current = res.Run
	}
	return nil
}

// stop cancels the current run and waits for it to end.
func (s *watchSession) stop(ctx context.Context) {
	s.mu.Lock()
	run := s.current
	s.current = nil
	s.mu.Unlock()
	if run == nil {
		return
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), watchStopTimeout)
	defer cancel()
	if err := run.Cancel(stopCtx); err != nil {
		fmt.Fprintf(s.app.stderr, "%s failed to stop %s (%s): %v\n", WarningStyle.Render("Warning:"), run.Name(), run.ID(), err)
		return
	}
	if _, err := run.Wait(stopCtx); err != nil {
		fmt.Fprintf(s.app.stderr, "%s %s (%s) did not stop: %v\n", WarningStyle.Render("Warning:"), run.Name(), run.ID(), err)
	}
}

// summarizeChanges lists up to three paths and counts the rest.
func summarizeChanges(changed []string) string {
	const shown = 3
	if len(changed) <= shown {
		return strings.Join(changed, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(changed[:shown], ", "), len(changed)-shown)
}
