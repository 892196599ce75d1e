// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/imagebuild"
	"github.com/invowk/launchkit/internal/project"
	"github.com/invowk/launchkit/internal/testutil"
)

const integrationImage = "alpine:3.20"

// checkTestcontainersAvailable safely checks if testcontainers can be used.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestLocalRunner_Integration launches against a real container engine.
func TestLocalRunner_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	skipOnWindows(t)

	engine, err := container.AutoDetectEngine()
	if err != nil {
		t.Skipf("skipping launch integration tests: no container engine available: %v", err)
	}
	if !engine.Available() {
		t.Skip("skipping launch integration tests: container engine not available")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping launch integration tests: testcontainers provider not available")
	}

	t.Run("UserImageEcho", func(t *testing.T) { testIntegrationUserImageEcho(t, engine) })
	t.Run("ExitCode", func(t *testing.T) { testIntegrationExitCode(t, engine) })
}

func newIntegrationDeps(t *testing.T, engine container.Engine) (Deps, *bytes.Buffer) {
	t.Helper()
	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	t.Cleanup(func() { <-sem })

	tr := &fakeTracking{}
	builder := imagebuild.NewBuilder(engine, tr,
		imagebuild.WithContextParent(t.TempDir()),
		imagebuild.WithOutput(io.Discard),
		imagebuild.WithLogger(quietLogger()),
	)
	var out bytes.Buffer
	return Deps{
		Engine:   engine,
		Builder:  builder,
		Tracking: tr,
		Logger:   quietLogger(),
		Output:   &out,
	}, &out
}

func testIntegrationUserImageEcho(t *testing.T, engine container.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	deps, out := newIntegrationDeps(t, engine)
	desc := newTestDescriptor(t, project.Spec{
		Image:       integrationImage,
		EntryPoints: entryPoint("echo", "hello from launch"),
	})

	res, err := NewLocalRunner(deps).Run(ctx, desc, RunOptions{Synchronous: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Image != integrationImage {
		t.Errorf("Image = %q, want %q", res.Image, integrationImage)
	}
	if got := res.Run.Status(ctx); got != StatusFinished {
		t.Errorf("Status() = %q, want %q, output: %s", got, StatusFinished, out.String())
	}
	if !strings.Contains(out.String(), "hello from launch") {
		t.Errorf("output = %q, want it to contain the echoed text", out.String())
	}
}

func testIntegrationExitCode(t *testing.T, engine container.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	deps, _ := newIntegrationDeps(t, engine)
	desc := newTestDescriptor(t, project.Spec{
		Image:       integrationImage,
		EntryPoints: entryPoint("sh", "-c", "exit 4"),
	})

	res, err := NewLocalRunner(deps).Run(ctx, desc, RunOptions{Synchronous: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := res.Run.Status(ctx); got != StatusFailed {
		t.Errorf("Status() = %q, want %q", got, StatusFailed)
	}
	lr, ok := res.Run.(*LocalRun)
	if !ok {
		t.Fatalf("Run = %T, want *LocalRun", res.Run)
	}
	if code := lr.ExitCode(); code != 4 {
		t.Errorf("ExitCode() = %d, want 4", code)
	}
}
