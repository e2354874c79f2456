package command

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/satococoa/shellrun/internal/errors"
	"github.com/satococoa/shellrun/internal/logging"
)

// cancelDrainGrace bounds how long a cancelled Wait lets the capture workers
// drain before the pipes are closed under them.
const cancelDrainGrace = 500 * time.Millisecond

// AsyncResult is a handle on a running command whose output is being captured.
// It is safe for concurrent use.
type AsyncResult struct {
	id      string
	command string
	process *Process
	stdout  *LineCapture
	stderr  *LineCapture
	logger  logging.Logger

	workers errgroup.Group

	// exitCode is -1 until Wait completes.
	exitCode atomic.Int32

	// waitMu serializes Wait; waited and waitErr record the first outcome.
	waitMu  sync.Mutex
	waited  bool
	waitErr error
}

// newAsyncResult wraps a started process and starts its capture workers.
func newAsyncResult(cmd Command, proc *Process, logger logging.Logger) *AsyncResult {
	logger = logging.OrNop(logger)

	r := &AsyncResult{
		id:      uuid.NewString(),
		command: cmd.Text,
		process: proc,
		logger:  logger,
	}
	r.exitCode.Store(-1)

	r.stdout = newLineCapture("stdout", proc.Stdout(), proc, cmd.PollInterval, logger, cmd.StdoutHandlers...)
	r.stderr = newLineCapture("stderr", proc.Stderr(), proc, cmd.PollInterval, logger, cmd.StderrHandlers...)

	r.workers.Go(r.stdout.run)
	r.workers.Go(r.stderr.run)

	return r
}

// ID returns the identifier used to correlate log records for this run.
func (r *AsyncResult) ID() string {
	return r.id
}

// Command returns the command text.
func (r *AsyncResult) Command() string {
	return r.command
}

// PID returns the OS process id.
func (r *AsyncResult) PID() int {
	return r.process.PID()
}

// Running reports whether the process is still running or its output is still
// being drained.
func (r *AsyncResult) Running() bool {
	if _, exited := r.process.Poll(); !exited {
		return true
	}
	return r.stdout.Active() || r.stderr.Active()
}

// Stdout returns the stdout captured so far, one line separator after each line.
func (r *AsyncResult) Stdout() string {
	return r.stdout.Text()
}

// Stderr returns the stderr captured so far, one line separator after each line.
func (r *AsyncResult) Stderr() string {
	return r.stderr.Text()
}

// output returns both streams exactly as the process wrote them.
func (r *AsyncResult) output() (stdout, stderr string) {
	return r.stdout.Raw(), r.stderr.Raw()
}

// StdoutLines returns a copy of the stdout lines captured so far.
func (r *AsyncResult) StdoutLines() []string {
	return r.stdout.Lines()
}

// StderrLines returns a copy of the stderr lines captured so far.
func (r *AsyncResult) StderrLines() []string {
	return r.stderr.Lines()
}

// ExitCode returns the exit code recorded by Wait, or -1 before Wait completes.
func (r *AsyncResult) ExitCode() int {
	return int(r.exitCode.Load())
}

// CaptureErr reports capture workers that stopped on a read failure.
func (r *AsyncResult) CaptureErr() error {
	return stderrors.Join(r.stdout.Err(), r.stderr.Err())
}

// Wait blocks until the process has exited and both streams are drained, then
// releases the pipes and records the exit code. With raiseOnError, a non-zero
// exit is returned as a *errors.AsyncShellCommandError.
//
// If ctx is done first the process is killed and the drain still completes, so
// no handler runs after Wait returns; the context error is returned.
func (r *AsyncResult) Wait(ctx context.Context, raiseOnError bool) error {
	r.waitMu.Lock()
	defer r.waitMu.Unlock()

	if !r.waited {
		r.waitErr = r.complete(ctx)
		r.waited = true
	}
	if r.waitErr != nil {
		return r.waitErr
	}

	if raiseOnError && r.ExitCode() != 0 {
		err := r.failure()
		logFailure(r.logger, "asynchronous shell command failed", err.StdoutLines, err.StderrLines, err.ExitCode,
			"id", r.id, "pid", err.PID, "command", r.command)
		return err
	}

	return nil
}

func (r *AsyncResult) complete(ctx context.Context) error {
	var ctxErr error

	select {
	case <-r.process.Done():
	case <-ctx.Done():
		ctxErr = ctx.Err()
		r.logger.Warn("wait cancelled, killing process", "id", r.id, "pid", r.PID(), "error", ctxErr)
		if err := r.process.Kill(); err != nil {
			r.logger.Warn("failed to kill process", "id", r.id, "pid", r.PID(), "error", err)
		}
		<-r.process.Done()
		r.drainWithin(cancelDrainGrace)
	}

	// Worker failures are logged by the workers and exposed through CaptureErr
	_ = r.workers.Wait()

	if err := r.process.Close(); err != nil {
		r.logger.Warn("failed to release output pipes", "id", r.id, "pid", r.PID(), "error", err)
	}

	r.exitCode.Store(int32(r.process.Wait()))

	if ctxErr != nil {
		return fmt.Errorf("wait for command %q: %w", r.command, ctxErr)
	}
	return nil
}

// drainWithin gives the capture workers until d to finish, then closes the
// pipes so workers blocked on output held open by other processes return.
func (r *AsyncResult) drainWithin(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for _, c := range []*LineCapture{r.stdout, r.stderr} {
		select {
		case <-c.Done():
		case <-timer.C:
			_ = r.process.Close()
			return
		}
	}
}

func (r *AsyncResult) failure() *errors.AsyncShellCommandError {
	return &errors.AsyncShellCommandError{
		ID:          r.id,
		Command:     r.command,
		PID:         r.PID(),
		Stdout:      r.Stdout(),
		Stderr:      r.Stderr(),
		StdoutLines: r.StdoutLines(),
		StderrLines: r.StderrLines(),
		ExitCode:    r.ExitCode(),
	}
}

// logFailure records the full output of a failed command, one record per line,
// so the failure context reaches the log even if the error is discarded.
func logFailure(logger logging.Logger, msg string, stdout, stderr []string, exitCode int, args ...any) {
	logger.Error(msg, args...)
	for _, line := range stdout {
		logger.Error("stdout", "line", line)
	}
	for _, line := range stderr {
		logger.Error("stderr", "line", line)
	}
	logger.Error("exit code", "exit_code", exitCode)
}
