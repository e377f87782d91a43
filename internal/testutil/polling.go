// Package testutil holds the waiting helpers shared by tests that drive the
// bridge from the test goroutine.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// Poll checks condition every interval until it holds, timeout passes or
// ctx is done.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timeout waiting for condition (threshold: %v)", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// TickUntil calls tick, then checks cond, until cond holds. It fails tb
// after DefaultTimeout. tick runs on the calling goroutine, so it may drain
// work that must not run concurrently with the test.
func TickUntil(tb testing.TB, tick func(), cond func() bool) {
	tb.Helper()
	err := Poll(context.Background(), func() bool {
		tick()
		return cond()
	}, DefaultTimeout, time.Millisecond)
	if err != nil {
		tb.Fatal(err)
	}
}
