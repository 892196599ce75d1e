// SPDX-License-Identifier: MPL-2.0

package training

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

const testNamespace = "training"

func newTestService(t *testing.T) (*KubeService, *fake.Clientset) {
	t.Helper()

	clientset := fake.NewClientset()
	svc := NewKubeService(clientset,
		WithNamespace(testNamespace),
		WithPollInterval(5*time.Millisecond),
		WithLogger(log.New(io.Discard)),
	)
	if err := svc.Init("my-project", "us-central1", "gs://bucket/staging"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return svc, clientset
}

func waitReady(t *testing.T, job Job) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !job.ResourceReady() {
		if time.Now().After(deadline) {
			t.Fatal("job never became resource-ready")
		}
		time.Sleep(time.Millisecond)
	}
}

func setStatus(t *testing.T, clientset *fake.Clientset, name string, status batchv1.JobStatus) {
	t.Helper()

	ctx := context.Background()
	obj, err := clientset.BatchV1().Jobs(testNamespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	obj.Status = status
	if _, err := clientset.BatchV1().Jobs(testNamespace).UpdateStatus(ctx, obj, metav1.UpdateOptions{}); err != nil {
		t.Fatalf("update job status: %v", err)
	}
}

func TestKubeService_SubmitCreatesJob(t *testing.T) {
	t.Parallel()

	svc, clientset := newTestService(t)
	job, err := svc.Submit(context.Background(), JobSpec{
		DisplayName: "my-project_20260101120000",
		Image:       "us-central1-docker.pkg.dev/my-project/repo/img:abc",
		MachineType: "n1-standard-4",
		Env:         map[string]string{"B": "2", "A": "1"},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitReady(t, job)

	obj, err := clientset.BatchV1().Jobs(testNamespace).Get(context.Background(), job.Name(), metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get created job: %v", err)
	}

	c := obj.Spec.Template.Spec.Containers[0]
	if c.Image != "us-central1-docker.pkg.dev/my-project/repo/img:abc" {
		t.Errorf("image = %q", c.Image)
	}
	if len(c.Env) != 2 || c.Env[0].Name != "A" || c.Env[1].Name != "B" {
		t.Errorf("env = %v, want sorted A, B", c.Env)
	}
	if got := obj.Spec.Template.Spec.NodeSelector[instanceTypeLabel]; got != "n1-standard-4" {
		t.Errorf("node selector = %q", got)
	}
	if *obj.Spec.BackoffLimit != 0 {
		t.Errorf("backoff limit = %d, want 0", *obj.Spec.BackoffLimit)
	}
	if obj.Labels[LabelProject] != "my-project" || obj.Labels[LabelRegion] != "us-central1" {
		t.Errorf("labels = %v", obj.Labels)
	}
	if obj.Annotations[AnnotationDisplay] != "my-project_20260101120000" {
		t.Errorf("display annotation = %q", obj.Annotations[AnnotationDisplay])
	}
	if obj.Annotations[AnnotationStaging] != "gs://bucket/staging" {
		t.Errorf("staging annotation = %q", obj.Annotations[AnnotationStaging])
	}

	if job.DisplayName() != "my-project_20260101120000" || job.Project() != "my-project" || job.Location() != "us-central1" {
		t.Errorf("job metadata = %q/%q/%q", job.DisplayName(), job.Project(), job.Location())
	}
}

func TestKubeService_JobReachesSucceeded(t *testing.T) {
	t.Parallel()

	svc, clientset := newTestService(t)
	job, err := svc.Submit(context.Background(), JobSpec{DisplayName: "run", Image: "img:1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitReady(t, job)

	setStatus(t, clientset, job.Name(), batchv1.JobStatus{Succeeded: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := job.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	state, err := job.State(ctx)
	if err != nil || state != StateSucceeded {
		t.Errorf("State() = (%q, %v), want %q", state, err, StateSucceeded)
	}
}

func TestKubeService_JobReachesFailed(t *testing.T) {
	t.Parallel()

	svc, clientset := newTestService(t)
	job, err := svc.Submit(context.Background(), JobSpec{DisplayName: "run", Image: "img:1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitReady(t, job)

	setStatus(t, clientset, job.Name(), batchv1.JobStatus{Failed: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := job.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if state, _ := job.State(ctx); state != StateFailed {
		t.Errorf("State() = %q, want %q", state, StateFailed)
	}
}

func TestKubeService_CancelDeletesJob(t *testing.T) {
	t.Parallel()

	svc, clientset := newTestService(t)
	job, err := svc.Submit(context.Background(), JobSpec{DisplayName: "run", Image: "img:1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitReady(t, job)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := job.Cancel(ctx); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if err := job.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if state, _ := job.State(ctx); state != StateCancelled {
		t.Errorf("State() = %q, want %q", state, StateCancelled)
	}

	jobs, err := clientset.BatchV1().Jobs(testNamespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs.Items) != 0 {
		t.Errorf("jobs remaining = %d, want 0", len(jobs.Items))
	}

	// Cancelling a terminal job is a no-op.
	if err := job.Cancel(ctx); err != nil {
		t.Errorf("second Cancel() error = %v", err)
	}
}

func TestKubeService_CreateRejected(t *testing.T) {
	t.Parallel()

	svc, clientset := newTestService(t)
	denied := errors.New(`jobs.batch is forbidden: exceeded quota "gpu"`)
	clientset.PrependReactor("create", "jobs", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, denied
	})

	job, err := svc.Submit(context.Background(), JobSpec{DisplayName: "vision_20240102", Image: "img:1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := job.Wait(ctx); !errors.Is(err, denied) {
		t.Fatalf("Wait() error = %v, want the create error", err)
	}

	state, err := job.State(ctx)
	if state != StateFailed || !errors.Is(err, denied) {
		t.Errorf("State() = %s, %v, want FAILED with the create error", state, err)
	}
	if job.ResourceReady() {
		t.Error("rejected job reports ResourceReady")
	}
}

func TestKubeService_SubmitBeforeInit(t *testing.T) {
	t.Parallel()

	svc := NewKubeService(fake.NewClientset(), WithLogger(log.New(io.Discard)))
	_, err := svc.Submit(context.Background(), JobSpec{DisplayName: "run", Image: "img:1"})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Submit() error = %v, want ErrNotInitialized", err)
	}
}

func TestKubeService_InitRequiresProjectAndRegion(t *testing.T) {
	t.Parallel()

	svc := NewKubeService(fake.NewClientset(), WithLogger(log.New(io.Discard)))
	if err := svc.Init("", "us-central1", ""); err == nil {
		t.Error("Init() without project should fail")
	}
	if err := svc.Init("p", "", ""); err == nil {
		t.Error("Init() without region should fail")
	}
}

func TestJobName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		display    string
		wantPrefix string
	}{
		{"my-project_20260101120000", "my-project-20260101120000-"},
		{"My Run", "my-run-"},
		{"___", "launchkit-"},
		{strings.Repeat("a", 100), strings.Repeat("a", maxNamePrefixLength) + "-"},
	}
	for _, tt := range tests {
		name, err := JobName(tt.display)
		if err != nil {
			t.Fatalf("JobName(%q) error = %v", tt.display, err)
		}
		if !strings.HasPrefix(name, tt.wantPrefix) {
			t.Errorf("JobName(%q) = %q, want prefix %q", tt.display, name, tt.wantPrefix)
		}
		if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
			t.Errorf("JobName(%q) = %q is not a DNS label: %v", tt.display, name, errs)
		}
	}
}

func TestJobState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status batchv1.JobStatus
		want   PipelineState
	}{
		{"new", batchv1.JobStatus{}, StatePending},
		{"active", batchv1.JobStatus{Active: 1}, StateRunning},
		{"succeeded", batchv1.JobStatus{Succeeded: 1}, StateSucceeded},
		{"failed", batchv1.JobStatus{Failed: 1}, StateFailed},
		{"complete condition", batchv1.JobStatus{Active: 1, Conditions: []batchv1.JobCondition{
			{Type: batchv1.JobComplete, Status: "True"},
		}}, StateSucceeded},
		{"failed condition", batchv1.JobStatus{Active: 1, Conditions: []batchv1.JobCondition{
			{Type: batchv1.JobFailed, Status: "True"},
		}}, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := jobState(&batchv1.Job{Status: tt.status}); got != tt.want {
				t.Errorf("jobState() = %q, want %q", got, tt.want)
			}
		})
	}
}
