package tutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsIntegrationTest(t *testing.T) {
	t.Setenv("SFIO_TEST", "Integration")
	require.True(t, IsIntegrationTest())

	t.Setenv("SFIO_TEST", "unit")
	require.False(t, IsIntegrationTest())
}
