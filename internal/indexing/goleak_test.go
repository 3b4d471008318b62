package indexing

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that Watcher.Run's fsnotify-driven loop (watch.go)
// always exits when its context is cancelled, rather than leaking a
// goroutine blocked on fw.Events/fw.Errors past the end of a test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
