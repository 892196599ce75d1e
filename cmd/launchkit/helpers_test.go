// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/invowk/launchkit/internal/config"
	"github.com/invowk/launchkit/internal/launch"
)

type (
	fakeConfigProvider struct {
		cfg *config.Config
		err error
		// opts records the options of the last Load call.
		opts config.LoadOptions
	}

	fakeLauncher struct {
		result *launch.Result
		err    error
		reqs   []LaunchRequest
		// onLaunch runs after each call is recorded.
		onLaunch func()
	}

	fakeRun struct {
		status   launch.Status
		exitCode int
		pageLink string
		cancels  int
	}
)

func (p *fakeConfigProvider) Load(_ context.Context, opts config.LoadOptions) (*config.Config, error) {
	p.opts = opts
	if p.err != nil {
		return nil, p.err
	}
	if p.cfg == nil {
		return config.DefaultConfig(), nil
	}
	return p.cfg, nil
}

func (l *fakeLauncher) Launch(_ context.Context, req LaunchRequest) (*launch.Result, error) {
	l.reqs = append(l.reqs, req)
	if l.onLaunch != nil {
		l.onLaunch()
	}
	if l.err != nil {
		return nil, l.err
	}
	if l.result == nil {
		return &launch.Result{Kind: launch.ResultSkipped}, nil
	}
	return l.result, nil
}

func (r *fakeRun) ID() string                           { return "4242" }
func (r *fakeRun) Name() string                         { return "demo" }
func (r *fakeRun) Location() map[string]string          { return nil }
func (r *fakeRun) Status(context.Context) launch.Status { return r.status }
func (r *fakeRun) Wait(context.Context) (bool, error)   { return r.status == launch.StatusFinished, nil }
func (r *fakeRun) Cancel(context.Context) error         { r.cancels++; return nil }
func (r *fakeRun) ExitCode() int                        { return r.exitCode }
func (r *fakeRun) PageLink() string                     { return r.pageLink }

// newTestApp builds an App on fakes and returns its output buffers.
func newTestApp(t *testing.T, cfg ConfigProvider, launcher LaunchService) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		Config:   cfg,
		Launcher: launcher,
		Stdout:   &stdout,
		Stderr:   &stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return app, &stdout, &stderr
}

// execute runs the root command of app with args.
func execute(t *testing.T, app *App, args ...string) error {
	t.Helper()
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)
	return root.ExecuteContext(context.Background())
}
