// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func(int) (bool, error) {
		calls++
		return false, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_RecoversFromTransient(t *testing.T) {
	t.Parallel()
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func(attempt int) (bool, error) {
		calls++
		if attempt < 2 {
			return true, errors.New("i/o timeout")
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ExhaustionReturnsLastError(t *testing.T) {
	t.Parallel()
	last := errors.New("third")
	errs := []error{errors.New("first"), errors.New("second"), last}
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func(attempt int) (bool, error) {
		return true, errs[attempt]
	})
	if !errors.Is(err, last) {
		t.Fatalf("expected last error, got: %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelledBetweenRetries(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, 5, time.Hour, func(attempt int) (bool, error) {
		calls++
		if attempt == 0 {
			cancel()
			return true, errors.New("transient")
		}
		t.Fatal("should not reach second attempt")
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_NonTransientExitsImmediately(t *testing.T) {
	t.Parallel()
	calls := 0
	permanentErr := errors.New("permanent")
	err := RetryWithBackoff(context.Background(), 5, time.Millisecond, func(int) (bool, error) {
		calls++
		return false, permanentErr
	})
	if !errors.Is(err, permanentErr) {
		t.Fatalf("expected permanent error, got: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_BackoffDoubles(t *testing.T) {
	t.Parallel()
	start := time.Now()
	_ = RetryWithBackoff(context.Background(), 3, 40*time.Millisecond, func(int) (bool, error) {
		return true, errors.New("retry")
	})
	// 40ms + 80ms between the three attempts.
	if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
		t.Fatalf("expected at least 120ms of backoff, got %v", elapsed)
	}
}
