// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/invowk/launchkit/internal/config"
)

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Cloud.Region = "us-central1"
	cfg.Cloud.SubmissionTimeout = 30 * time.Second
	cfg.Tracking.APIKey = "sk-secret"
	provider := &fakeConfigProvider{cfg: cfg}
	app, stdout, _ := newTestApp(t, provider, &fakeLauncher{})

	if err := execute(t, app, "--config", "/etc/launchkit.cue", "config", "show"); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"Current Configuration", "container_engine", "docker", "us-central1", "30s", "(set)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "sk-secret") {
		t.Errorf("output leaked the API key:\n%s", out)
	}
	if provider.opts.ConfigFilePath != "/etc/launchkit.cue" {
		t.Errorf("ConfigFilePath = %q, want the --config value", provider.opts.ConfigFilePath)
	}
}

func TestConfigShow_LoadError(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("bad config")
	app, _, _ := newTestApp(t, &fakeConfigProvider{err: loadErr}, &fakeLauncher{})

	if err := execute(t, app, "config", "show"); !errors.Is(err, loadErr) {
		t.Errorf("execute() error = %v, want the load error", err)
	}
}

func TestConfigDump(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.ContainerEngine = config.ContainerEnginePodman
	app, stdout, _ := newTestApp(t, &fakeConfigProvider{cfg: cfg}, &fakeLauncher{})

	if err := execute(t, app, "config", "dump"); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if !strings.Contains(stdout.String(), `container_engine: "podman"`) {
		t.Errorf("dump = %q", stdout.String())
	}
}

func TestConfigInit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "launchkit", "config.cue")
	app, stdout, _ := newTestApp(t, &fakeConfigProvider{}, &fakeLauncher{})

	if err := execute(t, app, "--config", path, "config", "init"); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(stdout.String(), path) {
		t.Errorf("output = %q, want the written path", stdout.String())
	}

	app, _, _ = newTestApp(t, &fakeConfigProvider{}, &fakeLauncher{})
	if err := execute(t, app, "--config", path, "config", "init"); !errors.Is(err, config.ErrConfigExists) {
		t.Errorf("second init error = %v, want ErrConfigExists", err)
	}

	app, _, _ = newTestApp(t, &fakeConfigProvider{}, &fakeLauncher{})
	if err := execute(t, app, "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("forced init error = %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.cue")
	if err := os.WriteFile(path, []byte(`default_resource: "local"`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	app, stdout, _ := newTestApp(t, &fakeConfigProvider{}, &fakeLauncher{})

	if err := execute(t, app, "--config", path, "config", "path"); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "Loaded config file: "+path) {
		t.Errorf("output = %q", stdout.String())
	}
}
