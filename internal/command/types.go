// Package command launches shell commands and captures their output line by line
// while they run.
//
// Blocking commands are run to completion by an Executor, which retries non-zero
// exits a bounded number of times. Non-blocking commands return an AsyncResult as
// soon as the process has started; two capture goroutines drain stdout and stderr
// concurrently so the child never stalls on a full pipe, and Wait reconciles the
// process exit with the end of capture.
package command

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/satococoa/shellrun/internal/errors"
)

const (
	DefaultMaxRetries   = 1
	DefaultRetryDelay   = time.Second
	DefaultPollInterval = 10 * time.Millisecond
)

// LineHandler receives one captured line with its terminator removed.
// Handlers for a single stream are called sequentially, in output order.
type LineHandler func(line string) error

// Command describes a shell command to run. Build one with New so the
// defaults are applied; the zero value runs non-blocking with a single attempt.
type Command struct {
	Text string

	// Env is the child environment. nil inherits the caller's environment,
	// an empty non-nil map gives the child an empty environment.
	Env map[string]string
	// InheritEnv layers Env over the caller's environment instead of replacing it.
	InheritEnv bool

	WorkDir    string // Optional, must exist
	Executable string // Alternate shell executable

	MaxRetries int
	RetryDelay time.Duration
	Blocking   bool

	// PollInterval is how long a capture worker backs off after reaching the end
	// of a stream whose process has not exited yet.
	PollInterval time.Duration

	StdoutHandlers []LineHandler
	StderrHandlers []LineHandler
}

// CommandResult is the outcome of a blocking run.
type CommandResult struct {
	Command  string
	Stdout   string // Trailing newlines stripped
	Stderr   string // Trailing newlines stripped
	ExitCode int
	Attempts int
}

// ExecutionResult holds the outcome of Executor.Execute. Exactly one of
// Result and Async is set, depending on Command.Blocking.
type ExecutionResult struct {
	Result *CommandResult
	Async  *AsyncResult
}

// Executor runs commands.
type Executor interface {
	// Run executes cmd to completion, retrying non-zero exits.
	Run(ctx context.Context, cmd Command) (*CommandResult, error)
	// Start launches cmd and returns without waiting for it.
	Start(ctx context.Context, cmd Command) (*AsyncResult, error)
	// Execute runs or starts cmd depending on cmd.Blocking.
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)
}

// Validate reports whether c can be launched. The working directory is checked
// at launch time.
func (c Command) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return errors.InvalidCommand("command", c.Text, "command text is required")
	}
	if c.MaxRetries < 0 {
		return errors.InvalidCommand("max retries", strconv.Itoa(c.MaxRetries), "must be at least 1")
	}
	if c.RetryDelay < 0 {
		return errors.InvalidCommand("retry delay", c.RetryDelay.String(), "must not be negative")
	}
	if c.PollInterval < 0 {
		return errors.InvalidCommand("poll interval", c.PollInterval.String(), "must not be negative")
	}
	return nil
}

// withDefaults fills in zero-valued attempt and polling settings.
func (c Command) withDefaults() Command {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}
