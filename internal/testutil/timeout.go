package testutil

import (
	"context"
	"testing"
	"time"
)

const (
	// DefaultNetworkTimeout bounds tests that talk to a local device
	// simulator or httptest server.
	DefaultNetworkTimeout = 10 * time.Second

	// cleanupMargin is kept free before the test binary's -timeout so that
	// deferred Close calls on bridges and servers still run.
	cleanupMargin = 2 * time.Second
)

// ContextWithTimeout returns a context that expires after timeout, or
// earlier if the test binary's deadline (less a cleanup margin) comes
// first. The context is also cancelled when the test ends.
func ContextWithTimeout(t testing.TB, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithDeadline(context.Background(), clampDeadline(t, time.Now().Add(timeout)))
	t.Cleanup(cancel)
	return ctx, cancel
}

// NetworkContext is ContextWithTimeout(t, DefaultNetworkTimeout).
func NetworkContext(t testing.TB) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTimeout(t, DefaultNetworkTimeout)
}

func clampDeadline(t testing.TB, want time.Time) time.Time {
	d, ok := t.(interface{ Deadline() (time.Time, bool) })
	if !ok {
		return want
	}
	limit, ok := d.Deadline()
	if !ok {
		return want
	}
	limit = limit.Add(-cleanupMargin)
	if limit.After(time.Now()) && limit.Before(want) {
		return limit
	}
	return want
}
