package testhelpers

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

// RunTestMain is the TestMain body for packages that launch the fake engine:
// it becomes the fake when asked to, otherwise runs the tests under goleak.
func RunTestMain(m *testing.M, opts ...goleak.Option) {
	RunFakeEngineIfRequested()
	goleak.VerifyTestMain(m, opts...)
}

// WaitFor waits for a condition to become true with timeout
// Usage:
//
//	testhelpers.WaitFor(t, func() bool {
//	    return resolver.Current() != nil
//	}, 5*time.Second)
func WaitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v", timeout)
			return
		}
	}
}

// SkipIfShort skips the test if -short flag is provided
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skipping in short mode: %s", reason)
	}
}
