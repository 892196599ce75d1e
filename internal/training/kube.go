// SPDX-License-Identifier: MPL-2.0

package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes"
	batchv1client "k8s.io/client-go/kubernetes/typed/batch/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	// DefaultNamespace receives jobs when none is configured.
	DefaultNamespace = "default"
	// DefaultPollInterval is how often job state is refreshed.
	DefaultPollInterval = 5 * time.Second

	// Labels and annotations set on every job.
	LabelManagedBy      = "app.kubernetes.io/managed-by"
	LabelProject        = "launchkit.dev/project"
	LabelRegion         = "launchkit.dev/region"
	AnnotationDisplay   = "launchkit.dev/display-name"
	AnnotationStaging   = "launchkit.dev/staging-bucket"
	instanceTypeLabel   = "node.kubernetes.io/instance-type"
	managedByValue      = "launchkit"
	containerName       = "launch"
	nameSuffixLength    = 8
	maxNamePrefixLength = validation.DNS1123LabelMaxLength - nameSuffixLength - 1
)

type (
	// KubeService runs training jobs as Kubernetes batch Jobs.
	KubeService struct {
		clientset    kubernetes.Interface
		namespace    string
		pollInterval time.Duration
		logger       *log.Logger

		project       string
		region        string
		stagingBucket string
	}

	// KubeOption configures a KubeService.
	KubeOption func(*KubeService)

	kubeJob struct {
		clientset    kubernetes.Interface
		namespace    string
		pollInterval time.Duration
		logger       *log.Logger

		displayName string
		project     string
		region      string

		mu              sync.Mutex
		name            string
		state           PipelineState
		err             error
		ready           bool
		cancelRequested bool
		done            chan struct{}
	}
)

// WithNamespace sets the namespace jobs are created in.
func WithNamespace(ns string) KubeOption {
	return func(s *KubeService) { s.namespace = ns }
}

// WithPollInterval sets how often job state is refreshed.
func WithPollInterval(d time.Duration) KubeOption {
	return func(s *KubeService) { s.pollInterval = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) KubeOption {
	return func(s *KubeService) { s.logger = l }
}

// NewKubeService creates a service on an existing clientset.
func NewKubeService(clientset kubernetes.Interface, opts ...KubeOption) *KubeService {
	s := &KubeService{
		clientset:    clientset,
		namespace:    DefaultNamespace,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "training"})
	}
	return s
}

// NewKubeServiceFromConfig builds a clientset from the in-cluster
// configuration, falling back to the kubeconfig at kubeconfigPath (or the
// default loading rules when empty) and kubeContext.
func NewKubeServiceFromConfig(kubeconfigPath, kubeContext string, opts ...KubeOption) (*KubeService, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		if kubeconfigPath != "" {
			rules.ExplicitPath = kubeconfigPath
		}
		overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}
	return NewKubeService(clientset, opts...), nil
}

// Init binds the service to project and region. Both are required.
func (s *KubeService) Init(project, region, stagingBucket string) error {
	if project == "" {
		return errors.New("training service requires a project")
	}
	if region == "" {
		return errors.New("training service requires a region")
	}
	s.project = project
	s.region = region
	s.stagingBucket = stagingBucket
	return nil
}

// Submit returns immediately; the Job is created and tracked by a
// background goroutine owned by the returned Job.
func (s *KubeService) Submit(ctx context.Context, spec JobSpec) (Job, error) {
	if s.project == "" || s.region == "" {
		return nil, ErrNotInitialized
	}
	if spec.Image == "" {
		return nil, errors.New("training job requires an image")
	}
	name, err := JobName(spec.DisplayName)
	if err != nil {
		return nil, err
	}

	job := &kubeJob{
		clientset:    s.clientset,
		namespace:    s.namespace,
		pollInterval: s.pollInterval,
		logger:       s.logger,
		displayName:  spec.DisplayName,
		project:      s.project,
		region:       s.region,
		state:        StateQueued,
		done:         make(chan struct{}),
	}
	obj := s.jobObject(name, spec)

	// The submitting context only bounds the call; the job outlives it.
	go job.run(context.WithoutCancel(ctx), obj)
	return job, nil
}

func (s *KubeService) jobObject(name string, spec JobSpec) *batchv1.Job {
	labels := map[string]string{
		LabelManagedBy: managedByValue,
		LabelProject:   labelValue(s.project),
		LabelRegion:    labelValue(s.region),
	}
	annotations := map[string]string{AnnotationDisplay: spec.DisplayName}
	if s.stagingBucket != "" {
		annotations[AnnotationStaging] = s.stagingBucket
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		env = append(env, corev1.EnvVar{Name: k, Value: spec.Env[k]})
	}

	podSpec := corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyNever,
		Containers: []corev1.Container{{
			Name:    containerName,
			Image:   spec.Image,
			Command: spec.Command,
			Env:     env,
		}},
	}
	if spec.MachineType != "" {
		podSpec.NodeSelector = map[string]string{instanceTypeLabel: spec.MachineType}
	}

	// No retries: a failed launch is reported, not re-run.
	backoffLimit := int32(0)
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   s.namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{LabelManagedBy: managedByValue}},
				Spec:       podSpec,
			},
		},
	}
}

// JobName derives a unique DNS-1123 job name from a display name.
func JobName(displayName string) (string, error) {
	var sb strings.Builder
	for _, r := range strings.ToLower(displayName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}
	prefix := strings.Trim(sb.String(), "-")
	if len(prefix) > maxNamePrefixLength {
		prefix = strings.TrimRight(prefix[:maxNamePrefixLength], "-")
	}
	if prefix == "" {
		prefix = managedByValue
	}
	name := prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:nameSuffixLength]
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return "", fmt.Errorf("invalid job name %q: %s", name, strings.Join(errs, "; "))
	}
	return name, nil
}

// labelValue makes v usable as a label value.
func labelValue(v string) string {
	if errs := validation.IsValidLabelValue(v); len(errs) == 0 {
		return v
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, v)
	if len(mapped) > validation.LabelValueMaxLength {
		mapped = mapped[:validation.LabelValueMaxLength]
	}
	return strings.Trim(mapped, "-_.")
}

func (j *kubeJob) jobs() batchv1client.JobInterface {
	return j.clientset.BatchV1().Jobs(j.namespace)
}

// run creates the Job and polls it until a terminal state.
func (j *kubeJob) run(ctx context.Context, obj *batchv1.Job) {
	defer close(j.done)

	created, err := j.jobs().Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		j.finish(StateFailed, fmt.Errorf("failed to create kubernetes job: %w", err))
		return
	}

	j.mu.Lock()
	j.name = created.Name
	j.ready = true
	j.state = StatePending
	cancel := j.cancelRequested
	j.mu.Unlock()
	j.logger.Debug("Created training job", "job", created.Name, "namespace", j.namespace)

	if cancel {
		if err := j.delete(ctx); err != nil {
			j.logger.Warn("Failed to cancel training job", "job", created.Name, "error", err)
		}
	}

	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		current, err := j.jobs().Get(ctx, created.Name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			j.finish(StateCancelled, nil)
			return
		}
		if err != nil {
			j.logger.Debug("Failed to refresh training job", "job", created.Name, "error", err)
			continue
		}

		state := jobState(current)
		j.mu.Lock()
		if j.cancelRequested && !state.Terminal() {
			state = StateCancelling
		}
		j.state = state
		j.mu.Unlock()
		if state.Terminal() {
			return
		}
	}
}

func (j *kubeJob) finish(state PipelineState, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
	j.err = err
}

// jobState maps Kubernetes Job status onto pipeline states.
func jobState(job *batchv1.Job) PipelineState {
	for _, c := range job.Status.Conditions {
		if c.Status != corev1.ConditionTrue {
			continue
		}
		switch c.Type {
		case batchv1.JobComplete:
			return StateSucceeded
		case batchv1.JobFailed:
			return StateFailed
		}
	}
	switch {
	case job.Status.Succeeded > 0:
		return StateSucceeded
	case job.Status.Failed > 0:
		return StateFailed
	case job.Status.Active > 0:
		return StateRunning
	default:
		return StatePending
	}
}

func (j *kubeJob) delete(ctx context.Context) error {
	j.mu.Lock()
	name := j.name
	j.mu.Unlock()

	propagation := metav1.DeletePropagationForeground
	err := j.jobs().Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete job %s: %w", name, err)
	}
	return nil
}

func (j *kubeJob) Name() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.name
}

func (j *kubeJob) DisplayName() string { return j.displayName }

func (j *kubeJob) Location() string { return j.region }

func (j *kubeJob) Project() string { return j.project }

func (j *kubeJob) ResourceReady() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ready
}

func (j *kubeJob) State(_ context.Context) (PipelineState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.err
}

func (j *kubeJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel deletes the Job, or marks it for deletion once it is created.
func (j *kubeJob) Cancel(ctx context.Context) error {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return nil
	}
	j.cancelRequested = true
	ready := j.ready
	if ready {
		j.state = StateCancelling
	}
	j.mu.Unlock()

	if !ready {
		return nil
	}
	return j.delete(ctx)
}
