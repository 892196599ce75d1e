// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"github.com/spf13/viper"

	"github.com/invowk/launchkit/internal/cueutil"
	"github.com/invowk/launchkit/internal/issue"
	"github.com/invowk/launchkit/internal/platform"
	"github.com/invowk/launchkit/internal/redact"
)

const (
	// AppName is the application name.
	AppName = "launchkit"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. LAUNCHKIT_CLOUD_REGION.
	EnvPrefix = "LAUNCHKIT"
)

// ErrConfigExists is returned by WriteDefault when the file is present.
var ErrConfigExists = errors.New("config file already exists")

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the launchkit configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS
// and $XDG_CONFIG_HOME (defaulting to ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DefaultPath returns the path of config.cue in dir, or in ConfigDir when
// dir is empty.
func DefaultPath(dir string) (string, error) {
	cfgDir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// newViper returns a Viper instance holding the defaults and the
// environment bindings.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("container_engine", defaults.ContainerEngine)
	v.SetDefault("default_resource", defaults.DefaultResource)
	v.SetDefault("tracking.base_url", defaults.Tracking.BaseURL)
	v.SetDefault("tracking.api_key", defaults.Tracking.APIKey)
	v.SetDefault("tracking.entity", defaults.Tracking.Entity)
	v.SetDefault("tracking.project", defaults.Tracking.Project)
	v.SetDefault("tracking.queue_redis_url", defaults.Tracking.QueueRedisURL)
	v.SetDefault("build.context_dir", defaults.Build.ContextDir)
	v.SetDefault("build.no_cache", defaults.Build.NoCache)
	v.SetDefault("cloud.config_name", defaults.Cloud.ConfigName)
	v.SetDefault("cloud.project", defaults.Cloud.Project)
	v.SetDefault("cloud.region", defaults.Cloud.Region)
	v.SetDefault("cloud.staging_bucket", defaults.Cloud.StagingBucket)
	v.SetDefault("cloud.artifact_repo", defaults.Cloud.ArtifactRepo)
	v.SetDefault("cloud.docker_host", defaults.Cloud.DockerHost)
	v.SetDefault("cloud.machine_type", defaults.Cloud.MachineType)
	v.SetDefault("cloud.submission_timeout", defaults.Cloud.SubmissionTimeout)
	v.SetDefault("cloud.resource_poll_interval", defaults.Cloud.ResourcePollInterval)
	v.SetDefault("cloud.staging_endpoint", defaults.Cloud.StagingEndpoint)
	v.SetDefault("cloud.staging_access_key", defaults.Cloud.StagingAccessKey)
	v.SetDefault("cloud.staging_secret_key", defaults.Cloud.StagingSecretKey)
	v.SetDefault("cloud.staging_use_ssl", defaults.Cloud.StagingUseSSL)
	v.SetDefault("cloud.kubeconfig", defaults.Cloud.Kubeconfig)
	v.SetDefault("cloud.kube_context", defaults.Cloud.KubeContext)
	v.SetDefault("cloud.namespace", defaults.Cloud.Namespace)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The credential keeps the name the launched code reads.
	_ = v.BindEnv("tracking.api_key", EnvPrefix+"_TRACKING_API_KEY", redact.APIKeyVar)

	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := newViper()
	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'launchkit config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := mergeFile(v, opts.ConfigFilePath); err != nil {
			return nil, "", err
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cuePath, err := DefaultPath(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		// The current directory is only consulted without a user config.
		for _, candidate := range []string{cuePath, ConfigFileName + "." + ConfigFileExt} {
			if !fileExists(candidate) {
				continue
			}
			if err := mergeFile(v, candidate); err != nil {
				return nil, "", err
			}
			resolvedPath = candidate
			break
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check the LAUNCHKIT_* environment variables and the config file values").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func mergeFile(v *viper.Viper, path string) error {
	if err := loadCUEIntoViper(v, path); err != nil {
		return issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check that the file contains valid CUE syntax").
			WithSuggestion("Verify the configuration values match the expected schema").
			WithSuggestion("Run 'launchkit config show' to see the effective configuration").
			Wrap(err).
			BuildError()
	}
	return nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper. Decoding goes through a map so unset optional fields keep their
// defaults and environment overrides still apply.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	unified, err := cueutil.Unify(configSchema, data, "#Config", path)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to path, or to the default
// location when path is empty. An existing file is kept unless force is set.
func WriteDefault(path string, force bool) (string, error) {
	if path == "" {
		p, err := DefaultPath("")
		if err != nil {
			return "", err
		}
		path = p
	}

	if !force && fileExists(path) {
		return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE generates a CUE representation of the configuration. Secrets
// are never written; they are read from the environment.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// launchkit configuration file\n")
	sb.WriteString("// Every key can be overridden with a LAUNCHKIT_* environment variable,\n")
	sb.WriteString("// e.g. LAUNCHKIT_CLOUD_REGION. The API key is read from " + redact.APIKeyVar + ".\n\n")

	fmt.Fprintf(&sb, "container_engine: %q\n", cfg.ContainerEngine)
	fmt.Fprintf(&sb, "default_resource: %q\n", cfg.DefaultResource)

	sb.WriteString("\ntracking: {\n")
	writeString(&sb, "base_url", cfg.Tracking.BaseURL)
	writeString(&sb, "entity", cfg.Tracking.Entity)
	writeString(&sb, "project", cfg.Tracking.Project)
	writeString(&sb, "queue_redis_url", cfg.Tracking.QueueRedisURL)
	sb.WriteString("}\n")

	sb.WriteString("\nbuild: {\n")
	writeString(&sb, "context_dir", cfg.Build.ContextDir)
	fmt.Fprintf(&sb, "\tno_cache: %v\n", cfg.Build.NoCache)
	sb.WriteString("}\n")

	sb.WriteString("\ncloud: {\n")
	writeString(&sb, "config_name", cfg.Cloud.ConfigName)
	writeString(&sb, "project", cfg.Cloud.Project)
	writeString(&sb, "region", cfg.Cloud.Region)
	writeString(&sb, "staging_bucket", cfg.Cloud.StagingBucket)
	writeString(&sb, "artifact_repo", cfg.Cloud.ArtifactRepo)
	writeString(&sb, "docker_host", cfg.Cloud.DockerHost)
	writeString(&sb, "machine_type", cfg.Cloud.MachineType)
	fmt.Fprintf(&sb, "\tsubmission_timeout: %q\n", cfg.Cloud.SubmissionTimeout.String())
	fmt.Fprintf(&sb, "\tresource_poll_interval: %q\n", cfg.Cloud.ResourcePollInterval.String())
	writeString(&sb, "staging_endpoint", cfg.Cloud.StagingEndpoint)
	fmt.Fprintf(&sb, "\tstaging_use_ssl: %v\n", cfg.Cloud.StagingUseSSL)
	writeString(&sb, "kubeconfig", cfg.Cloud.Kubeconfig)
	writeString(&sb, "kube_context", cfg.Cloud.KubeContext)
	writeString(&sb, "namespace", cfg.Cloud.Namespace)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeString(sb *strings.Builder, key, value string) {
	if value != "" {
		fmt.Fprintf(sb, "\t%s: %q\n", key, value)
	}
}
