// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/invowk/launchkit/internal/issue"
)

func TestNewServiceError_PanicsOnNilErr(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("newServiceError(nil, ...) did not panic")
		}
	}()
	_ = newServiceError(nil, 0, "")
}

func TestServiceError_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("inner")
	svcErr := newServiceError(inner, issue.QueueConflictId, "styled")
	if svcErr.Error() != "inner" {
		t.Errorf("Error() = %q", svcErr.Error())
	}
	if !errors.Is(svcErr, inner) {
		t.Error("errors.Is(svcErr, inner) = false")
	}
}

func TestRenderServiceError(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, nil)
		if buf.Len() != 0 {
			t.Errorf("output = %q, want empty", buf.String())
		}
	})

	t.Run("zero issue skips catalog", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, newServiceError(errors.New("x"), 0, "only this"))
		if buf.String() != "only this" {
			t.Errorf("output = %q, want %q", buf.String(), "only this")
		}
	})

	t.Run("styled message and issue", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, newServiceError(errors.New("x"), issue.SubmissionTimeoutId, "styled: "))
		if buf.Len() <= len("styled: ") {
			t.Errorf("expected styled message + issue content, got only %q", buf.String())
		}
	})
}
