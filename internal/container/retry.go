// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"time"
)

// RetryWithBackoff runs op up to maxAttempts times, doubling the delay after
// each failed attempt. The wait between attempts is interrupted by ctx.
//
// op returns (retry, err). A nil err ends the loop with success; a non-nil
// err with retry=false is returned as-is. When attempts run out the last
// error is returned.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	delay := baseBackoff
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return fmt.Errorf("retry aborted after %d attempt(s): %w", attempt, err)
			}
			delay *= 2
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
