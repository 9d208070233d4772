package testutils

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/revolverobotics/gokubi/internal/runloop"
)

// TestHelper bundles the fixtures most engine tests need: a started loop and
// a logger. Cleanup is registered on the test.
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
	Loop   *runloop.Loop
}

// NewTestHelper creates a test helper with a quiet logger and a running loop.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetOutput(io.Discard)

	loop := runloop.New()
	loop.Start()
	t.Cleanup(loop.Stop)

	return &TestHelper{
		T:      t,
		Logger: logger,
		Loop:   loop,
	}
}

// Run posts fn onto the loop and waits for it to complete, plus any work fn
// posted behind itself. Two barriers cover the common post-then-post pattern
// of queue confirmations.
func (h *TestHelper) Run(fn func()) {
	h.Loop.Post(fn)
	h.Loop.Sync()
	h.Loop.Sync()
}

// Eventually polls cond on the loop until it holds or the deadline passes.
func (h *TestHelper) Eventually(cond func() bool, timeout time.Duration, msgAndArgs ...interface{}) {
	h.T.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var ok bool
		h.Loop.Post(func() { ok = cond() })
		h.Loop.Sync()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.T.Fatalf("condition not met within %v: %v", timeout, msgAndArgs)
}
