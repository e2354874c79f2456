package command

import (
	"context"
	"fmt"
	"time"

	"github.com/satococoa/shellrun/internal/errors"
	"github.com/satococoa/shellrun/internal/logging"
)

// Launcher starts a process for a command. Launch is the production launcher.
type Launcher func(cmd Command) (*Process, error)

// executor implements Executor
type executor struct {
	launch Launcher
	logger logging.Logger
}

// ExecutorOption configures an Executor built by NewExecutor.
type ExecutorOption func(*executor)

// WithLogger injects the logger that receives command diagnostics.
func WithLogger(logger logging.Logger) ExecutorOption {
	return func(e *executor) {
		e.logger = logging.OrNop(logger)
	}
}

// WithLauncher replaces the process launcher.
func WithLauncher(launch Launcher) ExecutorOption {
	return func(e *executor) {
		if launch != nil {
			e.launch = launch
		}
	}
}

// NewExecutor creates an Executor. Without options it launches real processes
// and discards diagnostics.
func NewExecutor(opts ...ExecutorOption) Executor {
	e := &executor{
		launch: Launch,
		logger: logging.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs cmd when it is blocking and starts it otherwise.
func (e *executor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if !cmd.Blocking {
		async, err := e.Start(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{Async: async}, nil
	}

	result, err := e.Run(ctx, cmd)
	if err != nil {
		return &ExecutionResult{Result: result}, err
	}
	return &ExecutionResult{Result: result}, nil
}

// Run launches cmd up to cmd.MaxRetries times, sleeping cmd.RetryDelay between
// attempts, and stops at the first zero exit. When every attempt fails, the
// last attempt's result is returned with a *errors.ShellCommandError.
// Configuration errors are returned before the first attempt.
func (e *executor) Run(ctx context.Context, cmd Command) (*CommandResult, error) {
	cmd = cmd.withDefaults()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := checkWorkDir(cmd.WorkDir); err != nil {
		return nil, err
	}

	e.logger.Debug("running shell command", "command", cmd.Text, "max_retries", cmd.MaxRetries)

	var (
		last    *CommandResult
		lastErr error
	)
	for attempt := 1; attempt <= cmd.MaxRetries; attempt++ {
		result, details, err := e.runOnce(ctx, cmd)
		if err != nil {
			return nil, err
		}
		result.Attempts = attempt

		if result.ExitCode == 0 {
			return result, nil
		}
		last = result
		lastErr = details.exitErr

		if attempt == cmd.MaxRetries {
			logFailure(e.logger,
				fmt.Sprintf("maximum retries (%d) exceeded for shell command", cmd.MaxRetries),
				details.stdout, details.stderr, result.ExitCode,
				"command", cmd.Text)
			break
		}

		e.logger.Debug("retrying shell command",
			"command", cmd.Text, "attempt", attempt, "exit_code", result.ExitCode, "delay", cmd.RetryDelay)
		if err := sleep(ctx, cmd.RetryDelay); err != nil {
			return last, fmt.Errorf("retry shell command %q: %w", cmd.Text, err)
		}
	}

	return last, &errors.ShellCommandError{
		Command:  last.Command,
		Stdout:   last.Stdout,
		Stderr:   last.Stderr,
		ExitCode: last.ExitCode,
		Attempts: last.Attempts,
		Err:      lastErr,
	}
}

// attemptDetails is what a failed attempt contributes to logs and errors.
type attemptDetails struct {
	stdout  []string
	stderr  []string
	exitErr error
}

// runOnce performs one attempt and collects its output to completion.
func (e *executor) runOnce(ctx context.Context, cmd Command) (*CommandResult, attemptDetails, error) {
	proc, err := e.launch(cmd)
	if err != nil {
		return nil, attemptDetails{}, err
	}

	run := newAsyncResult(cmd, proc, e.logger)
	if err := run.Wait(ctx, false); err != nil {
		return nil, attemptDetails{}, err
	}

	stdout, stderr := run.output()
	result := &CommandResult{
		Command:  cmd.Text,
		Stdout:   trimOutput(stdout),
		Stderr:   trimOutput(stderr),
		ExitCode: run.ExitCode(),
	}
	e.logger.Debug("shell command attempt finished",
		"id", run.ID(), "pid", proc.PID(), "exit_code", result.ExitCode, "runtime", proc.Runtime())

	return result, attemptDetails{
		stdout:  run.StdoutLines(),
		stderr:  run.StderrLines(),
		exitErr: proc.ExitError(),
	}, nil
}

// Start launches cmd once and returns immediately. The caller must call Wait.
func (e *executor) Start(ctx context.Context, cmd Command) (*AsyncResult, error) {
	cmd = cmd.withDefaults()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := checkWorkDir(cmd.WorkDir); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("start shell command %q: %w", cmd.Text, err)
	}

	proc, err := e.launch(cmd)
	if err != nil {
		return nil, err
	}

	result := newAsyncResult(cmd, proc, e.logger)
	e.logger.Debug("started shell command", "id", result.ID(), "pid", result.PID(), "command", cmd.Text)

	return result, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
