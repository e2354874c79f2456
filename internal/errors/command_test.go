package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: errors.New("plain"), want: KindUnknown},
		{name: "configuration", err: WorkingDirectoryNotFound("/x", fs.ErrNotExist), want: KindConfiguration},
		{name: "command", err: &ShellCommandError{ExitCode: 1}, want: KindCommandFailure},
		{name: "async", err: &AsyncShellCommandError{ExitCode: 1}, want: KindAsyncCommandFailure},
		{name: "capture", err: &CaptureError{Stream: "stdout", Err: errors.New("eio")}, want: KindCaptureWorker},
		{name: "wrapped", err: fmt.Errorf("outer: %w", &ShellCommandError{ExitCode: 2}), want: KindCommandFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "command failure", KindCommandFailure.String())
	assert.Equal(t, "async command failure", KindAsyncCommandFailure.String())
	assert.Equal(t, "capture worker", KindCaptureWorker.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestExitCode(t *testing.T) {
	code, ok := ExitCode(&ShellCommandError{ExitCode: 3})
	assert.True(t, ok)
	assert.Equal(t, 3, code)

	code, ok = ExitCode(fmt.Errorf("wrapped: %w", &AsyncShellCommandError{ExitCode: 4}))
	assert.True(t, ok)
	assert.Equal(t, 4, code)

	_, ok = ExitCode(errors.New("no code"))
	assert.False(t, ok)
}

func TestConfigurationError(t *testing.T) {
	t.Run("should name the field and value", func(t *testing.T) {
		err := WorkingDirectoryNotFound("/missing", fs.ErrNotExist)

		assert.Equal(t, "invalid working directory: '/missing': file does not exist", err.Error())
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("should explain a path that is not a directory", func(t *testing.T) {
		err := WorkingDirectoryNotFound("/etc/hosts", nil)

		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("should build invalid command errors", func(t *testing.T) {
		err := InvalidCommand("max retries", "-1", "must be at least 1")

		var configErr *ConfigurationError
		require.ErrorAs(t, err, &configErr)
		assert.Equal(t, "max retries", configErr.Field)
		assert.Equal(t, "invalid max retries: '-1': must be at least 1", err.Error())
	})
}

func TestShellCommandError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ShellCommandError
		expected []string
		excluded []string
	}{
		{
			name:     "stderr is preferred",
			err:      &ShellCommandError{Command: "make", Stdout: "building", Stderr: "make: *** failed", ExitCode: 2, Attempts: 1},
			expected: []string{"shell command failed with exit code 2: make", "Details: make: *** failed"},
			excluded: []string{"building", "attempts"},
		},
		{
			name:     "stdout when stderr is empty",
			err:      &ShellCommandError{Command: "check", Stdout: "3 problems", ExitCode: 1, Attempts: 3},
			expected: []string{"after 3 attempts", "Details: 3 problems"},
		},
		{
			name:     "no output",
			err:      &ShellCommandError{Command: "false", ExitCode: 1, Attempts: 1},
			expected: []string{"exit code 1: false"},
			excluded: []string{"Details"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, expected := range tt.expected {
				assert.Contains(t, msg, expected)
			}
			for _, excluded := range tt.excluded {
				assert.NotContains(t, msg, excluded)
			}
		})
	}

	t.Run("unwraps its cause", func(t *testing.T) {
		cause := errors.New("cause")
		assert.ErrorIs(t, &ShellCommandError{Err: cause}, cause)
	})
}

func TestAsyncShellCommandError(t *testing.T) {
	err := &AsyncShellCommandError{
		Command:     "./job.sh",
		PID:         1234,
		Stdout:      "step 1\n",
		Stderr:      "boom\n",
		StdoutLines: []string{"step 1"},
		StderrLines: []string{"boom"},
		ExitCode:    1,
	}

	assert.Contains(t, err.Error(), "(pid 1234) failed with exit code 1: ./job.sh")
	assert.Contains(t, err.Error(), "Details: boom")
}

func TestCaptureError(t *testing.T) {
	cause := errors.New("input/output error")
	err := &CaptureError{Stream: "stderr", PID: 7, Err: cause}

	assert.Equal(t, "failed to read stderr of process 7: input/output error", err.Error())
	assert.ErrorIs(t, err, cause)
}
