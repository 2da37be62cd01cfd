package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/turnlink/internal/route"
)

const pollInterval = 5 * time.Millisecond

// WaitFor polls cond until it returns true or timeout elapses, failing the
// test in the latter case.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, timeout, pollInterval, msg)
}

// Never asserts that cond stays false for the whole window.
func Never(t *testing.T, window time.Duration, cond func() bool, msg string) {
	t.Helper()
	assert.Never(t, cond, window, pollInterval, msg)
}

// AssertRouteSteps asserts that r has exactly the given instructions, in
// order.
func AssertRouteSteps(t *testing.T, r *route.Route, instructions ...string) {
	t.Helper()
	require.NotNil(t, r, "route is nil")
	require.Len(t, r.Steps, len(instructions), "step count mismatch")
	for i, want := range instructions {
		assert.Equal(t, want, r.Steps[i].Instruction, "step[%d].Instruction mismatch", i)
	}
}
