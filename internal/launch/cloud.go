// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invowk/launchkit/internal/cloudconfig"
	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/imagebuild"
	"github.com/invowk/launchkit/internal/project"
	"github.com/invowk/launchkit/internal/staging"
	"github.com/invowk/launchkit/internal/training"
)

// Resource arguments understood by the cloud runner.
const (
	ArgProject       = "gcp_project"
	ArgRegion        = "gcp_region"
	ArgStagingBucket = "gcp_staging_bucket"
	ArgArtifactRepo  = "gcp_artifact_repo"
	ArgDockerHost    = "gcp_docker_host"
	ArgMachineType   = "gcp_machine_type"
	ArgJobName       = "gcp_job_name"
	ArgConfig        = "gcp_config"
)

const (
	// DefaultMachineType is the worker machine of training jobs.
	DefaultMachineType = "n1-standard-4"
	// DefaultSubmissionTimeout bounds the wait for the remote resource.
	DefaultSubmissionTimeout = 2 * time.Minute
	// DefaultResourcePollInterval is how often resource readiness is checked.
	DefaultResourcePollInterval = time.Second

	dockerHostSuffix = "-docker.pkg.dev"
	jobNameLayout    = "20060102150405"
)

// Actionable messages for missing cloud settings.
const (
	msgRegionNotSet = "GCP region not set. You can specify a region with --resource-arg " + ArgRegion +
		"=<region> or a config with --resource-arg " + ArgConfig + "=<config name>, otherwise uses region from GCP default config."
	msgStagingBucketNotSet = "Vertex requires a staging bucket for training and dependency packages in the same region as compute. " +
		"You can specify a bucket with --resource-arg " + ArgStagingBucket + "=<bucket>."
	msgArtifactRepoNotSet = "Vertex requires an Artifact Registry repository for the Docker image. " +
		"You can specify a repo with --resource-arg " + ArgArtifactRepo + "=<repo>."
	msgProjectNotSet = "GCP project not set. You can specify a project with --resource-arg " + ArgProject +
		"=<project> or a config with --resource-arg " + ArgConfig + "=<config name>."
)

type (
	// CloudDefaults are application-level cloud settings. Resource
	// arguments override them; the gcloud configuration fills the rest.
	CloudDefaults struct {
		ConfigName           string
		Project              string
		Region               string
		StagingBucket        string
		ArtifactRepo         string
		DockerHost           string
		MachineType          string
		SubmissionTimeout    time.Duration
		ResourcePollInterval time.Duration
	}

	// ConfigReader reads a named local cloud configuration.
	ConfigReader interface {
		Describe(ctx context.Context, name string) (*cloudconfig.Configuration, error)
	}

	// Stager uploads launch artifacts to the staging bucket.
	Stager interface {
		StageJSON(ctx context.Context, loc staging.Location, name string, v any) (string, error)
	}

	// Clock is the time source of job names and the submission wait.
	Clock interface {
		Now() time.Time
		After(d time.Duration) <-chan time.Time
	}

	systemClock struct{}

	// CloudOption configures a CloudRunner.
	CloudOption func(*CloudRunner)

	// CloudRunner pushes the launch image and submits it to the remote
	// training service.
	CloudRunner struct {
		deps     Deps
		service  training.Service
		reader   ConfigReader
		stager   Stager
		defaults CloudDefaults
		clock    Clock
	}

	cloudSettings struct {
		project       string
		region        string
		stagingBucket string
		artifactRepo  string
		dockerHost    string
		machineType   string
		jobName       string
	}

	stagedMetadata struct {
		RunID       string `json:"run_id"`
		Image       string `json:"image"`
		Command     string `json:"command"`
		JobName     string `json:"job_name"`
		MachineType string `json:"machine_type"`
		Project     string `json:"project"`
		Region      string `json:"region"`
	}
)

// Compile-time interface check
var _ Runner = (*CloudRunner)(nil)

// WithConfigReader sets the local cloud configuration reader.
func WithConfigReader(r ConfigReader) CloudOption {
	return func(c *CloudRunner) { c.reader = r }
}

// WithStager uploads launch metadata to the staging bucket.
func WithStager(s Stager) CloudOption {
	return func(c *CloudRunner) { c.stager = s }
}

// WithCloudDefaults sets the application-level cloud settings.
func WithCloudDefaults(d CloudDefaults) CloudOption {
	return func(c *CloudRunner) { c.defaults = d }
}

// WithClock sets the clock used for default job names and the
// submission wait.
func WithClock(clock Clock) CloudOption {
	return func(c *CloudRunner) { c.clock = clock }
}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewCloudRunner creates a CloudRunner submitting to service.
func NewCloudRunner(deps Deps, service training.Service, opts ...CloudOption) *CloudRunner {
	c := &CloudRunner{
		deps:    deps.withDefaults("gcp-vertex"),
		service: service,
		reader:  cloudconfig.NewReader(),
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaults.SubmissionTimeout <= 0 {
		c.defaults.SubmissionTimeout = DefaultSubmissionTimeout
	}
	if c.defaults.ResourcePollInterval <= 0 {
		c.defaults.ResourcePollInterval = DefaultResourcePollInterval
	}
	return c
}

// Kind returns BackendVertex.
func (c *CloudRunner) Kind() BackendKind { return BackendVertex }

// Run resolves settings, builds and pushes the image when needed, and
// submits the training job.
func (c *CloudRunner) Run(ctx context.Context, desc *project.Descriptor, opts RunOptions) (*Result, error) {
	s, err := c.resolveSettings(ctx, desc)
	if err != nil {
		return nil, err
	}
	if err := c.service.Init(s.project, s.region, s.stagingBucket); err != nil {
		return nil, fmt.Errorf("initialize training service: %w", err)
	}
	if len(desc.DockerArgs()) > 0 {
		c.deps.Logger.Warn("Docker args are not supported for GCP. Not using docker args")
	}

	if err := checkToolchain(c.deps.Engine); err != nil {
		return nil, err
	}
	command, err := launchCommand(desc)
	if err != nil {
		return nil, err
	}

	image, err := c.resolveImage(ctx, desc, s, command)
	if err != nil {
		return nil, err
	}
	c.stageMetadata(ctx, desc, s, image, command)

	ok, err := c.deps.ackQueueItem(ctx, desc, opts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Result{Kind: ResultSkipped, Image: image}, nil
	}

	c.deps.Logger.Info("Running training job", "name", s.jobName, "machine", s.machineType)
	job, err := c.service.Submit(ctx, training.JobSpec{
		DisplayName: s.jobName,
		Image:       string(image),
		MachineType: s.machineType,
	})
	if err != nil {
		return nil, fmt.Errorf("submit training job: %w", err)
	}
	if err := c.waitResourceReady(ctx, job); err != nil {
		return nil, err
	}

	run := newCloudRun(job)
	c.deps.Logger.Info("View your job status and logs", "url", run.PageLink())

	if !opts.Synchronous {
		return &Result{Kind: ResultDetached, Run: run, Image: image}, nil
	}
	if _, err := run.Wait(ctx); err != nil {
		return nil, err
	}
	return &Result{Kind: ResultSubmitted, Run: run, Image: image}, nil
}

// resolveSettings layers resource arguments over application defaults over
// the local gcloud configuration. It runs before any client call.
func (c *CloudRunner) resolveSettings(ctx context.Context, desc *project.Descriptor) (*cloudSettings, error) {
	var gcloud *cloudconfig.Configuration
	local := func() *cloudconfig.Configuration {
		if gcloud != nil {
			return gcloud
		}
		gcloud = &cloudconfig.Configuration{}
		if c.reader == nil {
			return gcloud
		}
		name := firstNonEmpty(desc.ResourceArg(ArgConfig), c.defaults.ConfigName)
		cfg, err := c.reader.Describe(ctx, name)
		if err != nil {
			c.deps.Logger.Debug("Unable to read local cloud configuration", "config", name, "error", err)
			return gcloud
		}
		gcloud = cfg
		return gcloud
	}
	setting := func(arg, fallback string, fromLocal func(*cloudconfig.Configuration) string) string {
		if v := firstNonEmpty(desc.ResourceArg(arg), fallback); v != "" {
			return v
		}
		if fromLocal == nil {
			return ""
		}
		return fromLocal(local())
	}

	s := &cloudSettings{}
	// Any source may hold a zone such as us-central1-a.
	s.region = cloudconfig.RegionFromZone(setting(ArgRegion, c.defaults.Region, (*cloudconfig.Configuration).Region))
	if s.region == "" {
		return nil, &ConfigurationError{Setting: ArgRegion, Message: msgRegionNotSet}
	}
	s.stagingBucket = setting(ArgStagingBucket, c.defaults.StagingBucket, nil)
	if s.stagingBucket == "" {
		return nil, &ConfigurationError{Setting: ArgStagingBucket, Message: msgStagingBucketNotSet}
	}
	s.artifactRepo = setting(ArgArtifactRepo, c.defaults.ArtifactRepo, nil)
	if s.artifactRepo == "" {
		return nil, &ConfigurationError{Setting: ArgArtifactRepo, Message: msgArtifactRepoNotSet}
	}
	s.project = setting(ArgProject, c.defaults.Project, (*cloudconfig.Configuration).Project)
	if s.project == "" {
		return nil, &ConfigurationError{Setting: ArgProject, Message: msgProjectNotSet}
	}

	s.dockerHost = setting(ArgDockerHost, c.defaults.DockerHost, nil)
	if s.dockerHost == "" {
		s.dockerHost = s.region + dockerHostSuffix
	}
	s.machineType = firstNonEmpty(setting(ArgMachineType, c.defaults.MachineType, nil), DefaultMachineType)
	s.jobName = desc.ResourceArg(ArgJobName)
	if s.jobName == "" {
		s.jobName = firstNonEmpty(desc.Project(), desc.ImageName()) + "_" + c.clock.Now().Format(jobNameLayout)
	}
	return s, nil
}

// resolveImage reuses an available user image as-is. Otherwise it layers
// the project on the user image (forced rebuild) or on the base image,
// which is built first when missing, and pushes the result.
func (c *CloudRunner) resolveImage(ctx context.Context, desc *project.Descriptor, s *cloudSettings, command []string) (container.ImageTag, error) {
	builder := c.deps.Builder
	img := desc.Image()

	if img != "" && !desc.ForceRebuild() {
		if _, err := builder.Cache().Inspect(ctx, img); err == nil {
			return img, nil
		}
		if err := c.deps.Engine.Pull(ctx, img); err == nil {
			if _, err := builder.Cache().Inspect(ctx, img); err == nil {
				return img, nil
			}
		}
		c.deps.Logger.Warn("Image unavailable, building from project source", "image", img)
	}

	base, err := c.base(ctx, desc, command)
	if err != nil {
		return "", err
	}

	target := imagebuild.RemoteImageURI(s.dockerHost, s.project, s.artifactRepo, desc)
	image, err := builder.ResolveImage(ctx, desc, imagebuild.BuildRequest{
		Target:   target,
		Base:     base,
		CopyCode: true,
		Command:  command,
	})
	if err != nil {
		return "", err
	}

	c.deps.Logger.Info("Pushing image", "image", image)
	if err := c.deps.Engine.Push(ctx, image); err != nil {
		return "", err
	}
	return image, nil
}

func (c *CloudRunner) base(ctx context.Context, desc *project.Descriptor, command []string) (*imagebuild.Base, error) {
	img := desc.Image()
	if img == "" || !desc.ForceRebuild() {
		return c.deps.Builder.EnsureBase(ctx, desc, command)
	}

	info, err := c.deps.Builder.Cache().Inspect(ctx, img)
	if err != nil {
		if pullErr := c.deps.Engine.Pull(ctx, img); pullErr != nil {
			return nil, &imagebuild.BuildError{Image: img, Err: fmt.Errorf("base image unavailable: %w", pullErr)}
		}
		if info, err = c.deps.Builder.Cache().Inspect(ctx, img); err != nil {
			return nil, &imagebuild.BuildError{Image: img, Err: fmt.Errorf("inspect base image: %w", err)}
		}
	}
	return &imagebuild.Base{Image: img, Info: info}, nil
}

// stageMetadata uploads sanitized launch metadata next to the job's
// staging artifacts. Failures are logged.
func (c *CloudRunner) stageMetadata(ctx context.Context, desc *project.Descriptor, s *cloudSettings, image container.ImageTag, command []string) {
	if c.stager == nil {
		return
	}
	loc, err := staging.ParseLocation(s.stagingBucket)
	if err != nil {
		c.deps.Logger.Warn("Invalid staging bucket, metadata not staged", "bucket", s.stagingBucket, "error", err)
		return
	}
	redactor := c.deps.redactor()
	meta := stagedMetadata{
		RunID:       desc.RunID(),
		Image:       string(image),
		Command:     redactor.Sanitize(strings.Join(command, " ")),
		JobName:     s.jobName,
		MachineType: s.machineType,
		Project:     s.project,
		Region:      s.region,
	}
	uri, err := c.stager.StageJSON(ctx, loc, desc.RunID()+"/"+imagebuild.MetadataFile, meta)
	if err != nil {
		c.deps.Logger.Warn("Unable to stage launch metadata", "error", err)
		return
	}
	c.deps.Logger.Debug("Staged launch metadata", "uri", uri)
}

// waitResourceReady polls until the service has accepted job, bounded by
// the submission timeout.
func (c *CloudRunner) waitResourceReady(ctx context.Context, job training.Job) error {
	if job.ResourceReady() {
		return nil
	}
	if err := submissionFailure(ctx, job); err != nil {
		return err
	}
	deadline := c.clock.After(c.defaults.SubmissionTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			if cancelErr := job.Cancel(context.WithoutCancel(ctx)); cancelErr != nil && !errors.Is(cancelErr, training.ErrNotReady) {
				c.deps.Logger.Warn("Unable to cancel unaccepted training job", "job", job.DisplayName(), "error", cancelErr)
			}
			return &SubmissionTimeoutError{Job: job.DisplayName(), Timeout: c.defaults.SubmissionTimeout}
		case <-c.clock.After(c.defaults.ResourcePollInterval):
			if job.ResourceReady() {
				return nil
			}
			if err := submissionFailure(ctx, job); err != nil {
				return err
			}
		}
	}
}

// submissionFailure reports a job the service rejected before accepting it.
func submissionFailure(ctx context.Context, job training.Job) error {
	state, err := job.State(ctx)
	if err != nil {
		return fmt.Errorf("training job %q was rejected: %w", job.DisplayName(), err)
	}
	if state.Normalize().Terminal() {
		return fmt.Errorf("training job %q ended in %s before it was accepted", job.DisplayName(), state.Normalize())
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
