package command

import (
	"maps"
	"time"
)

// Option configures a Command built by New.
type Option func(*Command)

// New builds a blocking Command with one attempt and a one second retry delay.
func New(text string, opts ...Option) Command {
	cmd := Command{
		Text:         text,
		MaxRetries:   DefaultMaxRetries,
		RetryDelay:   DefaultRetryDelay,
		Blocking:     true,
		PollInterval: DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(&cmd)
	}

	return cmd
}

// WithEnv sets the child environment. The map is copied; an empty map gives
// the child an empty environment.
func WithEnv(env map[string]string) Option {
	return func(c *Command) {
		if env == nil {
			c.Env = nil
			return
		}
		c.Env = maps.Clone(env)
	}
}

// WithInheritEnv layers the command environment over the caller's.
func WithInheritEnv() Option {
	return func(c *Command) {
		c.InheritEnv = true
	}
}

// WithWorkDir sets the working directory.
func WithWorkDir(dir string) Option {
	return func(c *Command) {
		c.WorkDir = dir
	}
}

// WithExecutable runs the command text with an alternate shell.
func WithExecutable(path string) Option {
	return func(c *Command) {
		c.Executable = path
	}
}

// WithRetries sets the attempt bound and the constant delay between attempts.
func WithRetries(maxRetries int, delay time.Duration) Option {
	return func(c *Command) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// NonBlocking makes Execute return an AsyncResult instead of waiting.
func NonBlocking() Option {
	return func(c *Command) {
		c.Blocking = false
	}
}

// WithPollInterval tunes the capture back-off used while a process that closed
// its output is still running.
func WithPollInterval(d time.Duration) Option {
	return func(c *Command) {
		c.PollInterval = d
	}
}

// OnStdout registers handlers for stdout lines.
func OnStdout(handlers ...LineHandler) Option {
	return func(c *Command) {
		c.StdoutHandlers = append(c.StdoutHandlers, handlers...)
	}
}

// OnStderr registers handlers for stderr lines.
func OnStderr(handlers ...LineHandler) Option {
	return func(c *Command) {
		c.StderrHandlers = append(c.StderrHandlers, handlers...)
	}
}
