package command

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/satococoa/shellrun/internal/errors"
)

// Process is one spawned child process whose stdout and stderr are pipes
// owned by the caller.
//
// A single reaper goroutine waits on the child and records the exit code once.
// The pipe read ends stay open after the child exits so buffered output can be
// drained; Close releases them.
type Process struct {
	cmd     *exec.Cmd
	stdout  *os.File
	stderr  *os.File
	started time.Time

	// done is closed when the process exits.
	done chan struct{}

	// exitCode is -1 until the process exits.
	exitCode atomic.Int32

	// mu protects exitErr and exited.
	mu      sync.RWMutex
	exitErr error
	exited  time.Time

	closeOnce sync.Once
	closeErr  error
}

// Launch validates the working directory and starts cmd with stdout and stderr
// redirected to pipes. Stdin is the null device.
func Launch(cmd Command) (*Process, error) {
	cmd = cmd.withDefaults()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := checkWorkDir(cmd.WorkDir); err != nil {
		return nil, err
	}

	argv := cmd.argv()
	// #nosec G204 - running caller-supplied shell text is the purpose of this package
	c := exec.Command(argv[0], argv[1:]...)
	c.Dir = cmd.WorkDir
	c.Env = cmd.environ()

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	c.Stdout = stdoutW
	c.Stderr = stderrW

	if err := c.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, fs.ErrNotExist) {
			return nil, &errors.ConfigurationError{Field: "shell executable", Value: argv[0], Err: err}
		}
		return nil, fmt.Errorf("start process: %w", err)
	}

	// The child holds its own copies of the write ends; EOF on the read ends
	// now means every writer is gone.
	closeAll(stdoutW, stderrW)

	p := &Process{
		cmd:     c,
		stdout:  stdoutR,
		stderr:  stderrR,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	p.exitCode.Store(-1)

	go p.reap()

	return p, nil
}

// reap waits for the process to exit and records its status.
func (p *Process) reap() {
	err := p.cmd.Wait()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			// Killed by signal: report the negated signal number
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				exitCode = -int(status.Signal())
			}
		} else {
			exitCode = -1
		}
	}

	p.mu.Lock()
	p.exitErr = err
	p.exited = time.Now()
	p.mu.Unlock()

	p.exitCode.Store(int32(exitCode))
	close(p.done)
}

// PID returns the OS process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Stdout returns the read end of the stdout pipe.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Stderr returns the read end of the stderr pipe.
func (p *Process) Stderr() io.Reader {
	return p.stderr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Poll reports the exit code without blocking. exited is false while the
// process is still running.
func (p *Process) Poll() (exitCode int, exited bool) {
	select {
	case <-p.done:
		return int(p.exitCode.Load()), true
	default:
		return -1, false
	}
}

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	return int(p.exitCode.Load())
}

// ExitError returns the error reported when the process exited, if any.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Runtime returns how long the process has been running, or how long it ran
// once it has exited.
func (p *Process) Runtime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.exited.IsZero() {
		return p.exited.Sub(p.started)
	}
	return time.Since(p.started)
}

// Kill terminates the process. Killing an exited process is a no-op.
func (p *Process) Kill() error {
	if _, exited := p.Poll(); exited {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %d: %w", p.PID(), err)
	}
	return nil
}

// Close releases the pipe read ends. It is safe to call more than once.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		if err := p.stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdout: %w", err))
		}
		if err := p.stderr.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stderr: %w", err))
		}
		p.closeErr = stderrors.Join(errs...)
	})
	return p.closeErr
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
