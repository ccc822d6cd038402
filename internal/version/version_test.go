package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Full embeds the short version and the Go runtime.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Contains(t, Full(), runtime.Version())
	require.NotEmpty(t, commit())
}
