package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetKey(t *testing.T) {
	require.Equal(t, "pk:linux", getKey(KeyPackage, "linux"))
	require.Equal(t, "oc", getKey(KeyCounters))
}
