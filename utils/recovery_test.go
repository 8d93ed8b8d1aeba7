package utils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// MyRecover is deferred at the top of long-running server goroutines, so a
// panic inside one must never escape through it.
func TestMyRecoverSwallowsPanic(t *testing.T) {
	// The recovery path dumps a panic file into the working directory.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	require.NotPanics(t, func() {
		defer MyRecover()
		panic("boom")
	})
}
