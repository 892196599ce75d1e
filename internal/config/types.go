// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// ContainerEnginePodman uses Podman as the build toolchain.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker as the build toolchain.
	ContainerEngineDocker ContainerEngine = "docker"

	// ResourceLocal runs launches on this machine.
	// Defined locally to avoid coupling config to internal/launch.
	ResourceLocal ResourceName = "local"
	// ResourceVertex submits launches as managed training jobs.
	ResourceVertex ResourceName = "gcp-vertex"

	// DefaultMachineType is the machine type of managed training jobs.
	DefaultMachineType = "n1-standard-4"
	// DefaultSubmissionTimeout bounds the wait for a submitted job to exist.
	DefaultSubmissionTimeout = 2 * time.Minute
	// DefaultResourcePollInterval is how often the submitted job is checked.
	DefaultResourcePollInterval = time.Second
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidResourceName is returned when a ResourceName value is not recognized.
	ErrInvalidResourceName = errors.New("invalid resource name")
	// ErrInvalidDuration is returned when a timing setting is not positive.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which build toolchain to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// ResourceName names the backend launches run on by default.
	ResourceName string

	// InvalidResourceNameError is returned when a ResourceName value is not recognized.
	InvalidResourceNameError struct {
		Value ResourceName
	}

	// InvalidDurationError is returned when a timing setting is not positive.
	InvalidDurationError struct {
		Key   string
		Value time.Duration
	}

	// InvalidConfigError collects the field-level validation errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the launcher configuration.
	Config struct {
		// ContainerEngine specifies whether to use "podman" or "docker"
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// DefaultResource is used when a launch names no resource
		DefaultResource ResourceName `json:"default_resource" mapstructure:"default_resource"`
		// Tracking configures the tracking service
		Tracking TrackingConfig `json:"tracking" mapstructure:"tracking"`
		// Build configures image builds
		Build BuildConfig `json:"build" mapstructure:"build"`
		// Cloud configures the managed training backend
		Cloud CloudConfig `json:"cloud" mapstructure:"cloud"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// TrackingConfig configures the tracking service and its run queue.
	TrackingConfig struct {
		BaseURL string `json:"base_url" mapstructure:"base_url"`
		APIKey  string `json:"api_key" mapstructure:"api_key"`
		Entity  string `json:"entity" mapstructure:"entity"`
		Project string `json:"project" mapstructure:"project"`
		// QueueRedisURL enables run queue acknowledgements, e.g. redis://localhost:6379/0
		QueueRedisURL string `json:"queue_redis_url" mapstructure:"queue_redis_url"`
	}

	// BuildConfig configures image builds.
	BuildConfig struct {
		// ContextDir is where build contexts are created; empty picks ~/launchkit-build
		ContextDir string `json:"context_dir" mapstructure:"context_dir"`
		// NoCache disables the toolchain layer cache
		NoCache bool `json:"no_cache" mapstructure:"no_cache"`
	}

	// CloudConfig configures the managed training backend. Empty values fall
	// back to the local cloud CLI configuration.
	CloudConfig struct {
		ConfigName           string        `json:"config_name" mapstructure:"config_name"`
		Project              string        `json:"project" mapstructure:"project"`
		Region               string        `json:"region" mapstructure:"region"`
		StagingBucket        string        `json:"staging_bucket" mapstructure:"staging_bucket"`
		ArtifactRepo         string        `json:"artifact_repo" mapstructure:"artifact_repo"`
		DockerHost           string        `json:"docker_host" mapstructure:"docker_host"`
		MachineType          string        `json:"machine_type" mapstructure:"machine_type"`
		SubmissionTimeout    time.Duration `json:"submission_timeout" mapstructure:"submission_timeout"`
		ResourcePollInterval time.Duration `json:"resource_poll_interval" mapstructure:"resource_poll_interval"`
		// StagingEndpoint enables metadata uploads to an S3-compatible store
		StagingEndpoint  string `json:"staging_endpoint" mapstructure:"staging_endpoint"`
		StagingAccessKey string `json:"staging_access_key" mapstructure:"staging_access_key"`
		StagingSecretKey string `json:"staging_secret_key" mapstructure:"staging_secret_key"`
		StagingUseSSL    bool   `json:"staging_use_ssl" mapstructure:"staging_use_ssl"`
		// Kubeconfig and KubeContext select the cluster jobs are submitted to
		Kubeconfig  string `json:"kubeconfig" mapstructure:"kubeconfig"`
		KubeContext string `json:"kube_context" mapstructure:"kube_context"`
		Namespace   string `json:"namespace" mapstructure:"namespace"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface for InvalidContainerEngineError.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: podman, docker)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// IsValid returns whether the ContainerEngine is one of the defined engine types,
// and a list of validation errors if it is not.
func (ce ContainerEngine) IsValid() (bool, []error) {
	switch ce {
	case ContainerEnginePodman, ContainerEngineDocker:
		return true, nil
	default:
		return false, []error{&InvalidContainerEngineError{Value: ce}}
	}
}

// Error implements the error interface for InvalidResourceNameError.
func (e *InvalidResourceNameError) Error() string {
	return fmt.Sprintf("invalid resource %q (valid: local, gcp-vertex)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidResourceNameError) Unwrap() error { return ErrInvalidResourceName }

// String returns the string representation of the ResourceName.
func (r ResourceName) String() string { return string(r) }

// IsValid returns whether the ResourceName names a known backend.
func (r ResourceName) IsValid() (bool, []error) {
	switch r {
	case ResourceLocal, ResourceVertex:
		return true, nil
	default:
		return false, []error{&InvalidResourceNameError{Value: r}}
	}
}

// Error implements the error interface for InvalidDurationError.
func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid %s %s: must be positive", e.Key, e.Value)
}

// Unwrap returns ErrInvalidDuration.
func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// IsValid returns whether the timing settings are positive.
func (c CloudConfig) IsValid() (bool, []error) {
	var errs []error
	if c.SubmissionTimeout <= 0 {
		errs = append(errs, &InvalidDurationError{Key: "cloud.submission_timeout", Value: c.SubmissionTimeout})
	}
	if c.ResourcePollInterval <= 0 {
		errs = append(errs, &InvalidDurationError{Key: "cloud.resource_poll_interval", Value: c.ResourcePollInterval})
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.ContainerEngine.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.DefaultResource.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Cloud.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	return fmt.Sprintf("invalid config: %d field errors", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineDocker,
		DefaultResource: ResourceLocal,
		Cloud: CloudConfig{
			MachineType:          DefaultMachineType,
			SubmissionTimeout:    DefaultSubmissionTimeout,
			ResourcePollInterval: DefaultResourcePollInterval,
			StagingUseSSL:        true,
		},
	}
}
