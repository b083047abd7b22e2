package tutil

import (
	"os"
	"strings"
	"testing"
)

// IsIntegrationTest is true when SFIO_TEST=integration, which enables the tests that
// touch the filesystem or a real database.
func IsIntegrationTest() bool {
	testType := os.Getenv("SFIO_TEST")
	return strings.ToLower(testType) == "integration"
}

func SkipUnlessIntegration(t *testing.T) {
	t.Helper()
	if !IsIntegrationTest() {
		t.Skip("set SFIO_TEST=integration to run")
	}
}
