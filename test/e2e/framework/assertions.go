package framework

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func AssertErrorContains(t *testing.T, err error, expected string) {
	t.Helper()
	assert.Error(t, err, "Expected error containing '%s', but got no error", expected)
	assert.Contains(t, err.Error(), expected, "Expected error containing '%s', got: %v", expected, err)
}

func AssertOutputContains(t *testing.T, output, expected string) {
	t.Helper()
	assert.Contains(t, output, expected, "Expected output containing '%s', got: %s", expected, output)
}

func AssertOutputNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	assert.NotContains(t, output, unexpected, "Expected output not to contain '%s', got: %s", unexpected, output)
}

// AssertOutputOrder checks that each string appears after the previous one.
func AssertOutputOrder(t *testing.T, output string, expected []string) {
	t.Helper()

	rest := output
	for _, exp := range expected {
		idx := strings.Index(rest, exp)
		if idx == -1 {
			t.Errorf("Expected '%s' in order within output, got: %s", exp, output)
			return
		}
		rest = rest[idx+len(exp):]
	}
}

func AssertHelpfulError(t *testing.T, output string) {
	t.Helper()

	helpfulElements := []string{
		"Solutions:",
		"Solution:",
		"Cause:",
		"Tip:",
		"•",
		"Examples:",
		"Usage:",
	}

	for _, element := range helpfulElements {
		if strings.Contains(output, element) {
			return
		}
	}
	t.Errorf("Error message does not appear to be helpful. Got: %s", output)
}

func AssertMultipleStringsInOutput(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, exp := range expected {
		assert.Contains(t, output, exp, "Expected output to contain '%s', got: %s", exp, output)
	}
}

func AssertExitCode(t *testing.T, result Result, expected int) {
	t.Helper()
	assert.Equal(t, expected, result.ExitCode,
		"Expected exit code %d, got %d\nstdout: %s\nstderr: %s", expected, result.ExitCode, result.Stdout, result.Stderr)
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	assert.NoError(t, err)
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	assert.Error(t, err)
}

func AssertFileExists(t *testing.T, project *Project, name string) {
	t.Helper()
	assert.True(t, project.HasFile(name), "Expected file '%s' to exist", name)
}

func AssertFileNotExists(t *testing.T, project *Project, name string) {
	t.Helper()
	assert.False(t, project.HasFile(name), "Expected file '%s' not to exist", name)
}

func AssertFileContains(t *testing.T, project *Project, name, content string) {
	t.Helper()
	if !project.HasFile(name) {
		t.Errorf("File '%s' does not exist", name)
		return
	}
	fileContent := project.ReadFile(name)
	assert.Contains(t, fileContent, content, "Expected file '%s' to contain '%s', got: %s", name, content, fileContent)
}

func AssertTrue(t *testing.T, condition bool, message string) {
	t.Helper()
	assert.True(t, condition, message)
}
