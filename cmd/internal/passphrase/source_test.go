package passphrase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPrefersEnvironment(t *testing.T) {
	calls := 0
	src := NewSource("PCN_KEY_PASS")
	src.lookup = func(name string) (string, bool) {
		calls++
		require.Equal(t, "PCN_KEY_PASS", name)
		return "hunter2", true
	}
	for i := 0; i < 2; i++ {
		value, err := src.Get()
		require.NoError(t, err)
		require.Equal(t, "hunter2", value)
	}
	require.Equal(t, 1, calls)
}

func TestGetRejectsBlankEnvironment(t *testing.T) {
	src := NewSource("PCN_KEY_PASS")
	src.lookup = func(string) (string, bool) { return "  ", true }
	_, err := src.Get()
	require.ErrorContains(t, err, "PCN_KEY_PASS is set but empty")
}
