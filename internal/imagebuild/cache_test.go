// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"context"
	"testing"

	"github.com/invowk/launchkit/internal/testutil/enginetest"
)

func TestInspectCache(t *testing.T) {
	t.Parallel()

	engine := enginetest.New(enginetest.WithImage("a:1", nil))
	cache := NewInspectCache(engine)

	for range 3 {
		if _, err := cache.Inspect(context.Background(), "a:1"); err != nil {
			t.Fatalf("Inspect() error: %v", err)
		}
	}
	if engine.Inspects() != 1 {
		t.Errorf("expected one engine inspection, got %d", engine.Inspects())
	}

	if _, err := cache.Inspect(context.Background(), "b:1"); err == nil {
		t.Fatal("expected error for unknown image")
	}
	if _, err := cache.Inspect(context.Background(), "b:1"); err == nil {
		t.Fatal("expected error for unknown image")
	}
	if engine.Inspects() != 3 {
		t.Errorf("failed inspections must not be cached, got %d engine calls", engine.Inspects())
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestInspectCache_IsolatedPerBuilder(t *testing.T) {
	t.Parallel()

	engine := enginetest.New(enginetest.WithImage("a:1", nil))
	first := NewBuilder(engine, nil)
	second := NewBuilder(engine, nil)

	if _, err := first.Cache().Inspect(context.Background(), "a:1"); err != nil {
		t.Fatal(err)
	}
	if second.Cache().Len() != 0 {
		t.Error("builders must not share inspection state")
	}
}
