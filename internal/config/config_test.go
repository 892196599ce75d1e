// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/invowk/launchkit/internal/issue"
	"github.com/invowk/launchkit/internal/redact"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.ContainerEngine != ContainerEngineDocker {
		t.Errorf("ContainerEngine = %q, want docker", cfg.ContainerEngine)
	}
	if cfg.DefaultResource != ResourceLocal {
		t.Errorf("DefaultResource = %q, want local", cfg.DefaultResource)
	}
	if cfg.Cloud.MachineType != "n1-standard-4" {
		t.Errorf("MachineType = %q", cfg.Cloud.MachineType)
	}
	if cfg.Cloud.SubmissionTimeout != 2*time.Minute || cfg.Cloud.ResourcePollInterval != time.Second {
		t.Errorf("timings = %s / %s", cfg.Cloud.SubmissionTimeout, cfg.Cloud.ResourcePollInterval)
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("DefaultConfig().IsValid() = %v", errs)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	loaded, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty", loaded.Path)
	}
	if loaded.Config.Cloud.MachineType != DefaultMachineType {
		t.Errorf("MachineType = %q", loaded.Config.Cloud.MachineType)
	}
}

func TestLoad_CUEFile(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `
container_engine: "podman"
default_resource: "gcp-vertex"
tracking: {
	entity:  "team"
	project: "vision"
}
cloud: {
	region:             "us-central1"
	staging_bucket:     "gs://team-staging"
	submission_timeout: "30s"
}
ui: verbose: true
`)

	loaded, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	cfg := loaded.Config
	if !strings.HasSuffix(loaded.Path, "config.cue") {
		t.Errorf("Path = %q", loaded.Path)
	}
	if cfg.ContainerEngine != ContainerEnginePodman || cfg.DefaultResource != ResourceVertex {
		t.Errorf("engine/resource = %q/%q", cfg.ContainerEngine, cfg.DefaultResource)
	}
	if cfg.Tracking.Entity != "team" || cfg.Tracking.Project != "vision" {
		t.Errorf("Tracking = %+v", cfg.Tracking)
	}
	if cfg.Cloud.Region != "us-central1" || cfg.Cloud.StagingBucket != "gs://team-staging" {
		t.Errorf("Cloud = %+v", cfg.Cloud)
	}
	if cfg.Cloud.SubmissionTimeout != 30*time.Second {
		t.Errorf("SubmissionTimeout = %s, want 30s", cfg.Cloud.SubmissionTimeout)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Cloud.MachineType != DefaultMachineType || cfg.Cloud.ResourcePollInterval != DefaultResourcePollInterval {
		t.Errorf("defaults lost: %+v", cfg.Cloud)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose = false, want true")
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown engine", `container_engine: "lxc"`, "container_engine"},
		{"unknown resource", `default_resource: "sagemaker"`, "default_resource"},
		{"unknown key", `registry: "x"`, "registry"},
		{"malformed duration", `cloud: submission_timeout: "soon"`, "submission_timeout"},
		{"syntax error", `cloud: {`, "config.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := writeConfig(t, tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.want)
			}
			if id := issue.IssueOf(err); id != issue.ConfigLoadFailedId {
				t.Errorf("IssueOf() = %d, want ConfigLoadFailedId", id)
			}
		})
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope.cue")
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := writeConfig(t, `cloud: region: "us-central1"`)
	t.Setenv("LAUNCHKIT_CLOUD_REGION", "europe-west4")
	t.Setenv("LAUNCHKIT_TRACKING_API_KEY", "")
	t.Setenv(redact.APIKeyVar, "sk-from-env")
	t.Setenv("LAUNCHKIT_CLOUD_RESOURCE_POLL_INTERVAL", "250ms")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cloud.Region != "europe-west4" {
		t.Errorf("Region = %q, want the environment value", cfg.Cloud.Region)
	}
	if cfg.Tracking.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want the environment value", cfg.Tracking.APIKey)
	}
	if cfg.Cloud.ResourcePollInterval != 250*time.Millisecond {
		t.Errorf("ResourcePollInterval = %s", cfg.Cloud.ResourcePollInterval)
	}
}

func TestLoad_NonPositiveDuration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAUNCHKIT_CLOUD_SUBMISSION_TIMEOUT", "0s")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig and ErrInvalidDuration", err)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestWriteDefault_LoadsBackAsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.cue")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if written != path {
		t.Errorf("WriteDefault() path = %q, want %q", written, path)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() of generated file error = %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("loaded = %+v, want defaults", cfg)
	}

	if _, err := WriteDefault(path, false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("second WriteDefault() error = %v, want ErrConfigExists", err)
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Errorf("forced WriteDefault() error = %v", err)
	}
}

func TestGenerateCUE_OmitsSecrets(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Tracking.APIKey = "sk-secret"
	cfg.Cloud.StagingSecretKey = "minio-secret"
	cfg.Cloud.Region = "us-east1"

	out := GenerateCUE(cfg)
	if strings.Contains(out, "sk-secret") || strings.Contains(out, "minio-secret") {
		t.Errorf("GenerateCUE() leaked a secret:\n%s", out)
	}
	if !strings.Contains(out, `region: "us-east1"`) {
		t.Errorf("GenerateCUE() missing region:\n%s", out)
	}
}

func TestConfigDir_Override(t *testing.T) {
	SetConfigDirOverride("/tmp/launchkit-test")
	t.Cleanup(Reset)

	dir, err := ConfigDir()
	if err != nil || dir != "/tmp/launchkit-test" {
		t.Errorf("ConfigDir() = %q, %v", dir, err)
	}
	path, err := DefaultPath("")
	if err != nil || path != filepath.Join("/tmp/launchkit-test", "config.cue") {
		t.Errorf("DefaultPath() = %q, %v", path, err)
	}
}
