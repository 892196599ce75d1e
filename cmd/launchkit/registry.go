// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/invowk/launchkit/internal/cloudconfig"
	"github.com/invowk/launchkit/internal/config"
	"github.com/invowk/launchkit/internal/launch"
	"github.com/invowk/launchkit/internal/staging"
	"github.com/invowk/launchkit/internal/training"
)

// deferredTrainingService connects to the cluster on Init, so launches
// with incomplete settings fail before any client is created.
type deferredTrainingService struct {
	connect func() (training.Service, error)
	service training.Service
}

// Compile-time interface check
var _ training.Service = (*deferredTrainingService)(nil)

// Init connects and initializes the underlying service.
func (d *deferredTrainingService) Init(project, region, stagingBucket string) error {
	if d.service == nil {
		svc, err := d.connect()
		if err != nil {
			return err
		}
		d.service = svc
	}
	return d.service.Init(project, region, stagingBucket)
}

// Submit forwards to the initialized service.
func (d *deferredTrainingService) Submit(ctx context.Context, spec training.JobSpec) (training.Job, error) {
	if d.service == nil {
		return nil, errors.New("training service used before Init")
	}
	return d.service.Submit(ctx, spec)
}

// newBackendRegistry registers the local and gcp-vertex backends
// configured from cfg.
func newBackendRegistry(cfg *config.Config, logger *log.Logger) *launch.Registry {
	reg := launch.NewRegistry()
	reg.Register(launch.BackendLocal, func(deps launch.Deps) (launch.Runner, error) {
		return launch.NewLocalRunner(deps), nil
	})
	reg.Register(launch.BackendVertex, func(deps launch.Deps) (launch.Runner, error) {
		return newCloudRunner(cfg.Cloud, deps, logger)
	})
	return reg
}

func newCloudRunner(cc config.CloudConfig, deps launch.Deps, logger *log.Logger) (launch.Runner, error) {
	service := &deferredTrainingService{
		connect: func() (training.Service, error) {
			opts := []training.KubeOption{
				training.WithPollInterval(cc.ResourcePollInterval),
				training.WithLogger(logger.WithPrefix("training")),
			}
			if cc.Namespace != "" {
				opts = append(opts, training.WithNamespace(cc.Namespace))
			}
			return training.NewKubeServiceFromConfig(cc.Kubeconfig, cc.KubeContext, opts...)
		},
	}

	opts := []launch.CloudOption{
		launch.WithConfigReader(cloudconfig.NewReader()),
		launch.WithCloudDefaults(launch.CloudDefaults{
			ConfigName:           cc.ConfigName,
			Project:              cc.Project,
			Region:               cc.Region,
			StagingBucket:        cc.StagingBucket,
			ArtifactRepo:         cc.ArtifactRepo,
			DockerHost:           cc.DockerHost,
			MachineType:          cc.MachineType,
			SubmissionTimeout:    cc.SubmissionTimeout,
			ResourcePollInterval: cc.ResourcePollInterval,
		}),
	}
	if cc.StagingEndpoint != "" {
		stager, err := staging.New(staging.Config{
			Endpoint:  cc.StagingEndpoint,
			AccessKey: cc.StagingAccessKey,
			SecretKey: cc.StagingSecretKey,
			Region:    cc.Region,
			UseSSL:    cc.StagingUseSSL,
		}, logger.WithPrefix("staging"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, launch.WithStager(stager))
	}

	return launch.NewCloudRunner(deps, service, opts...), nil
}
