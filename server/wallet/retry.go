package wallet

import (
	"context"
	"fmt"
	"time"
)

// ConfirmWithRetry polls Confirm up to maxRetries times, sleeping delay
// between attempts. A transport error on the final attempt is returned; a
// transfer that never confirms yields ErrNotConfirmed.
func ConfirmWithRetry(ctx context.Context, c Client, ref string, maxRetries int, delay time.Duration) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ok, err := c.Confirm(ctx, ref)
		switch {
		case err == nil && ok:
			return nil
		case err != nil:
			lastErr = err
		default:
			lastErr = nil
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrNotConfirmed, ref, maxRetries)
}
