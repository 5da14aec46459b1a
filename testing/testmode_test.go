package testing

import (
	"os"
	stdtesting "testing"

	"github.com/stretchr/testify/require"
)

func TestImportEnablesTestMode(t *stdtesting.T) {
	require.Equal(t, "1", os.Getenv(testModeEnv))
}
