// Package tasks runs the named commands declared in a shellrun configuration.
package tasks

import (
	"context"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/satococoa/shellrun/internal/command"
	"github.com/satococoa/shellrun/internal/config"
	"github.com/satococoa/shellrun/internal/errors"
	shellio "github.com/satococoa/shellrun/internal/io"
	"github.com/satococoa/shellrun/internal/logging"
)

// Environment variables exported to every task
const (
	EnvTaskName  = "SHELLRUN_TASK"
	EnvConfigDir = "SHELLRUN_CONFIG_DIR"
)

// Runner executes configured tasks
type Runner struct {
	config   *config.Config
	executor command.Executor
	logger   logging.Logger
}

// Options controls how task output is streamed
type Options struct {
	// PrefixOutput tags each streamed line with the task name
	PrefixOutput bool
}

// Outcome records how one task in a run finished
type Outcome struct {
	Task     string
	ExitCode int
	Attempts int
	Async    bool
	Elapsed  time.Duration
}

type pendingTask struct {
	name    string
	result  *command.AsyncResult
	started time.Time
}

// NewRunner creates a new task runner
func NewRunner(cfg *config.Config, executor command.Executor, logger logging.Logger) *Runner {
	return &Runner{
		config:   cfg,
		executor: executor,
		logger:   logging.OrNop(logger),
	}
}

// Run executes the named task after its dependencies and streams their output
// to w. Blocking tasks run one after another; non-blocking tasks keep running
// alongside the tasks that follow them and are waited for before Run returns.
func (r *Runner) Run(ctx context.Context, w io.Writer, name string, opts Options) ([]Outcome, error) {
	if _, ok := r.config.Tasks[name]; !ok {
		return nil, errors.TaskNotFound(name, r.config.TaskNames())
	}

	order, err := r.config.ExecutionOrder(name)
	if err != nil {
		return nil, err
	}

	out := shellio.NewFlushingWriter(w)
	outcomes := make([]Outcome, 0, len(order))
	var pending []pendingTask

	for _, taskName := range order {
		cmd, err := r.commandFor(taskName, out, opts)
		if err != nil {
			r.abandon(pending)
			return outcomes, err
		}

		if cmd.Blocking {
			fmt.Fprintf(out, "→ %s: %s\n", taskName, cmd.Text)
		} else {
			fmt.Fprintf(out, "→ %s (background): %s\n", taskName, cmd.Text)
		}
		r.logger.Debug("running task", "task", taskName, "command", cmd.Text, "blocking", cmd.Blocking)

		started := time.Now()
		if !cmd.Blocking {
			result, err := r.executor.Start(ctx, cmd)
			if err != nil {
				r.abandon(pending)
				return outcomes, errors.TaskFailed(taskName, err)
			}
			pending = append(pending, pendingTask{name: taskName, result: result, started: started})
			continue
		}

		result, err := r.executor.Run(ctx, cmd)
		if result != nil {
			outcomes = append(outcomes, Outcome{
				Task:     taskName,
				ExitCode: result.ExitCode,
				Attempts: result.Attempts,
				Elapsed:  time.Since(started),
			})
		}
		if err != nil {
			r.abandon(pending)
			return outcomes, errors.TaskFailed(taskName, err)
		}
	}

	var firstErr error
	for _, p := range pending {
		err := p.result.Wait(ctx, true)
		outcomes = append(outcomes, Outcome{
			Task:     p.name,
			ExitCode: p.result.ExitCode(),
			Attempts: 1,
			Async:    true,
			Elapsed:  time.Since(p.started),
		})
		if err != nil && firstErr == nil {
			firstErr = errors.TaskFailed(p.name, err)
		}
	}

	return outcomes, firstErr
}

// commandFor resolves a task and attaches the streaming handlers and task
// environment.
func (r *Runner) commandFor(name string, out io.Writer, opts Options) (command.Command, error) {
	cmd, err := r.config.CommandFor(name)
	if err != nil {
		return command.Command{}, err
	}

	env := make(map[string]string, len(cmd.Env)+2)
	if cmd.Env == nil {
		cmd.InheritEnv = true
	}
	maps.Copy(env, cmd.Env)
	env[EnvTaskName] = name
	if dir := r.config.Dir(); dir != "" {
		env[EnvConfigDir] = dir
	}
	cmd.Env = env

	prefix := shellio.Prefix(name, opts.PrefixOutput)
	cmd.StdoutHandlers = append(cmd.StdoutHandlers, shellio.LineWriter(out, prefix))
	cmd.StderrHandlers = append(cmd.StderrHandlers, shellio.LineWriter(out, prefix))

	return cmd, nil
}

// abandon reaps background tasks after a failure so none outlive the run.
func (r *Runner) abandon(pending []pendingTask) {
	for _, p := range pending {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		// A cancelled context makes Wait kill the process and drain what is left
		if err := p.result.Wait(ctx, false); err != nil {
			r.logger.Debug("stopped background task", "task", p.name, "pid", p.result.PID(), "error", err)
		}
	}
}
