// Package testing flips the binaries into test mode when imported by a test
// package, so code paths guarded by app.InTestMode skip network side effects.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const testModeEnv = "STOCKROOM_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		if os.Getenv("NATS_URL") != "" {
			_ = os.Setenv("NATS_URL", "")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
