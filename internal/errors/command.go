package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures raised by the command engine.
type Kind int

const (
	// KindUnknown is any error not produced by the command engine.
	KindUnknown Kind = iota
	// KindConfiguration is an invalid command configuration, such as a missing
	// working directory. It is raised before any process starts and is never retried.
	KindConfiguration
	// KindCommandFailure is a blocking command that exited non-zero on its last attempt.
	KindCommandFailure
	// KindAsyncCommandFailure is a non-blocking command that exited non-zero at Wait.
	KindAsyncCommandFailure
	// KindCaptureWorker is a read failure inside an output capture worker.
	KindCaptureWorker
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindCommandFailure:
		return "command failure"
	case KindAsyncCommandFailure:
		return "async command failure"
	case KindCaptureWorker:
		return "capture worker"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of the first engine error found in err's chain.
func KindOf(err error) Kind {
	var configErr *ConfigurationError
	var cmdErr *ShellCommandError
	var asyncErr *AsyncShellCommandError
	var captureErr *CaptureError

	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &configErr):
		return KindConfiguration
	case errors.As(err, &asyncErr):
		return KindAsyncCommandFailure
	case errors.As(err, &cmdErr):
		return KindCommandFailure
	case errors.As(err, &captureErr):
		return KindCaptureWorker
	default:
		return KindUnknown
	}
}

// ExitCode extracts the command exit code from err's chain.
// It returns false when err carries no exit code.
func ExitCode(err error) (int, bool) {
	var cmdErr *ShellCommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode, true
	}
	var asyncErr *AsyncShellCommandError
	if errors.As(err, &asyncErr) {
		return asyncErr.ExitCode, true
	}
	return 0, false
}

// ConfigurationError reports a command that cannot be launched as configured.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid %s: '%s'", e.Field, e.Value)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// WorkingDirectoryNotFound is returned when a command's working directory is
// missing or is not a directory.
func WorkingDirectoryNotFound(dir string, cause error) error {
	if cause == nil {
		cause = errors.New("not a directory")
	}
	return &ConfigurationError{Field: "working directory", Value: dir, Err: cause}
}

// InvalidCommand is returned when a command field holds an unusable value.
func InvalidCommand(field, value, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Err: errors.New(reason)}
}

// ShellCommandError reports a blocking command that failed on every attempt.
// The output fields hold the last attempt's output.
type ShellCommandError struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Attempts int
	Err      error
}

func (e *ShellCommandError) Error() string {
	msg := fmt.Sprintf("shell command failed with exit code %d", e.ExitCode)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	msg += fmt.Sprintf(": %s", e.Command)

	if details := failureDetails(e.Stdout, e.Stderr); details != "" {
		msg += fmt.Sprintf("\n\nDetails: %s", details)
	}
	return msg
}

func (e *ShellCommandError) Unwrap() error {
	return e.Err
}

// AsyncShellCommandError reports a non-blocking command that exited non-zero.
// It carries everything captured while the command ran.
type AsyncShellCommandError struct {
	ID          string
	Command     string
	PID         int
	Stdout      string
	Stderr      string
	StdoutLines []string
	StderrLines []string
	ExitCode    int
}

func (e *AsyncShellCommandError) Error() string {
	msg := fmt.Sprintf("asynchronous shell command (pid %d) failed with exit code %d: %s", e.PID, e.ExitCode, e.Command)
	if details := failureDetails(e.Stdout, e.Stderr); details != "" {
		msg += fmt.Sprintf("\n\nDetails: %s", details)
	}
	return msg
}

// CaptureError reports a capture worker that stopped on a read failure.
type CaptureError struct {
	Stream string
	PID    int
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("failed to read %s of process %d: %v", e.Stream, e.PID, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// failureDetails prefers stderr and falls back to stdout.
func failureDetails(stdout, stderr string) string {
	if details := strings.TrimSpace(stderr); details != "" {
		return details
	}
	return strings.TrimSpace(stdout)
}
