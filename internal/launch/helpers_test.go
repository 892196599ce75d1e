// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/invowk/launchkit/internal/imagebuild"
	"github.com/invowk/launchkit/internal/project"
	"github.com/invowk/launchkit/internal/testutil/enginetest"
	"github.com/invowk/launchkit/internal/tracking"
)

const testAPIKey = "sk-test-0123456789abcdef"

type fakeTracking struct {
	mu     sync.Mutex
	ackErr error
	acks   []string
}

func (f *fakeTracking) Setting(key string) string {
	if key == tracking.SettingBaseURL {
		return "https://tracking.example.com"
	}
	return ""
}

func (f *fakeTracking) APIKey() string { return testAPIKey }

func (f *fakeTracking) AckRunQueueItem(_ context.Context, itemID, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, itemID+"/"+runID)
	return f.ackErr
}

func (f *fakeTracking) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acks)
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func newTestDeps(t *testing.T, engine *enginetest.Engine, tr *fakeTracking) (Deps, *bytes.Buffer) {
	t.Helper()
	if tr == nil {
		tr = &fakeTracking{}
	}
	builder := imagebuild.NewBuilder(engine, tr,
		imagebuild.WithContextParent(t.TempDir()),
		imagebuild.WithOutput(io.Discard),
		imagebuild.WithHostOS("linux"),
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

func newTestDescriptor(t *testing.T, spec project.Spec) *project.Descriptor {
	t.Helper()
	if spec.Dir == "" {
		spec.Dir = t.TempDir()
		if err := os.WriteFile(filepath.Join(spec.Dir, "train.py"), []byte("print('hi')\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if spec.RunID == "" {
		spec.RunID = "run12345"
	}
	spec.User, spec.UserID = "trainer", 1001
	desc, err := project.New(spec)
	if err != nil {
		t.Fatalf("project.New() error: %v", err)
	}
	return desc
}

func entryPoint(argv ...string) []project.EntryPoint {
	return []project.EntryPoint{{Name: "main", Command: argv}}
}
