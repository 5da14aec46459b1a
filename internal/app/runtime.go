package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv makes binaries skip runtime side effects when set to a true value.
const TestModeEnv = "STOCKROOM_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

func loadTestMode() {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether binaries should exit before touching Postgres,
// Redis or NATS.
func InTestMode() bool {
	testModeInit.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment after it changed.
func RefreshTestMode() {
	testModeInit.Do(func() {})
	loadTestMode()
}
