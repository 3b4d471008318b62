package hybrid

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that push/pullAndVerify's background goroutines
// (see push and pullAndVerify in engine.go) always exit before a test
// finishes, never leaving a stray PushDelta/LatestArtifact call running
// past its timeout.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
