package command

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satococoa/shellrun/internal/errors"
	"github.com/satococoa/shellrun/internal/logging"
)

// exitWatcher is the part of a Process a capture worker depends on.
type exitWatcher interface {
	PID() int
	Done() <-chan struct{}
}

// LineCapture turns one output stream of a process into lines.
//
// Each line is appended to an accumulated buffer under a private mutex and
// then handed to every registered handler in order. The worker keeps reading
// until it has seen end of stream and the process has exited; end of stream
// alone is not enough because a process can close its output and keep running.
type LineCapture struct {
	stream       string
	reader       *bufio.Reader
	proc         exitWatcher
	handlers     []LineHandler
	pollInterval time.Duration
	logger       logging.Logger

	mu    sync.Mutex
	lines []string
	text  strings.Builder
	raw   strings.Builder
	err   error

	active atomic.Bool
	done   chan struct{}
}

func newLineCapture(
	stream string,
	r io.Reader,
	proc exitWatcher,
	pollInterval time.Duration,
	logger logging.Logger,
	handlers ...LineHandler,
) *LineCapture {
	c := &LineCapture{
		stream:       stream,
		reader:       bufio.NewReader(r),
		proc:         proc,
		handlers:     handlers,
		pollInterval: pollInterval,
		logger:       logging.OrNop(logger),
		done:         make(chan struct{}),
	}
	// Active from construction so a freshly started result never reports idle
	c.active.Store(true)
	return c
}

// run reads the stream until it is drained. A read failure ends the worker and
// is returned as a *errors.CaptureError.
func (c *LineCapture) run() error {
	defer close(c.done)
	defer c.active.Store(false)

	for {
		raw, err := c.reader.ReadString('\n')
		if raw != "" {
			c.deliver(raw)
		}

		switch {
		case err == nil:
			continue
		case stderrors.Is(err, io.EOF):
			if c.exited() {
				return nil
			}
			c.backoff()
		case stderrors.Is(err, os.ErrClosed):
			// Pipe released by Wait after a cancelled drain
			return nil
		default:
			captureErr := &errors.CaptureError{Stream: c.stream, PID: c.proc.PID(), Err: err}
			c.mu.Lock()
			c.err = captureErr
			c.mu.Unlock()
			c.logger.Error("output capture stopped", "stream", c.stream, "pid", c.proc.PID(), "error", err)
			// Keep the pipe flowing so a child still writing does not block
			c.discard()
			return captureErr
		}
	}
}

func (c *LineCapture) exited() bool {
	select {
	case <-c.proc.Done():
		return true
	default:
		return false
	}
}

// backoff idles until the next poll or until the process exits.
func (c *LineCapture) backoff() {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	select {
	case <-c.proc.Done():
	case <-timer.C:
	}
}

// discard drops the rest of the stream after a read failure. It stops on the
// next error, including the pipe being closed by Wait.
func (c *LineCapture) discard() {
	if _, err := io.Copy(io.Discard, c.reader); err != nil {
		c.logger.Debug("discarding output failed", "stream", c.stream, "pid", c.proc.PID(), "error", err)
	}
}

func (c *LineCapture) deliver(raw string) {
	line := decodeLine(raw)

	c.mu.Lock()
	c.raw.WriteString(raw)
	c.lines = append(c.lines, line)
	c.text.WriteString(line)
	c.text.WriteString(lineSeparator)
	c.mu.Unlock()

	for i, handler := range c.handlers {
		c.invoke(i, handler, line)
	}
}

// invoke calls one handler. A failing handler is logged and does not stop
// delivery to the others.
func (c *LineCapture) invoke(index int, handler LineHandler, line string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("line handler panicked",
				"stream", c.stream, "handler", index, "panic", fmt.Sprint(r))
		}
	}()

	if err := handler(line); err != nil {
		c.logger.Warn("line handler failed", "stream", c.stream, "handler", index, "error", err)
	}
}

// Stream returns the stream name, "stdout" or "stderr".
func (c *LineCapture) Stream() string {
	return c.stream
}

// Lines returns a copy of the lines captured so far.
func (c *LineCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]string, len(c.lines))
	copy(lines, c.lines)
	return lines
}

// Text returns the captured lines, each followed by the platform line separator.
func (c *LineCapture) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text.String()
}

// Raw returns the stream bytes exactly as read, line endings included.
func (c *LineCapture) Raw() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw.String()
}

// Active reports whether the worker is still reading.
func (c *LineCapture) Active() bool {
	return c.active.Load()
}

// Done returns a channel that is closed when the worker stops.
func (c *LineCapture) Done() <-chan struct{} {
	return c.done
}

// Err returns the read failure that stopped the worker, if any.
func (c *LineCapture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
