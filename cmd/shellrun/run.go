package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/satococoa/shellrun/internal/command"
	"github.com/satococoa/shellrun/internal/errors"
	shellio "github.com/satococoa/shellrun/internal/io"
	"github.com/satococoa/shellrun/internal/logging"
)

// Variable to allow mocking in tests
var runNewExecutor = func(logger logging.Logger) command.Executor {
	return command.NewExecutor(command.WithLogger(logger))
}

// runOptions are the flags of the run command that shape output and failure
// reporting rather than the command itself.
type runOptions struct {
	prefix bool
	noFail bool
}

// NewRunCommand creates the run command definition
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a shell command and stream its output",
		UsageText: "shellrun run [options] -- <command>",
		ArgsUsage: "-- <command>",
		Description: "Runs the command text with /bin/sh -c, streaming stdout and stderr line by line " +
			"as they are produced. Non-zero exits are retried when --retries is greater than 1, " +
			"and shellrun exits with the command's exit code.",
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Set an environment variable (NAME=value), repeatable",
			},
			&cli.BoolFlag{
				Name:  "clear-env",
				Usage: "Start from an empty environment instead of inheriting the current one",
			},
			&cli.StringFlag{
				Name:    "cwd",
				Aliases: []string{"C"},
				Usage:   "Working directory for the command",
			},
			&cli.StringFlag{
				Name:  "shell",
				Usage: "Shell executable used to run the command text",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "Maximum number of attempts",
				Value: command.DefaultMaxRetries,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Delay between attempts",
				Value: command.DefaultRetryDelay,
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Back-off while waiting for a process that closed its output",
				Value: command.DefaultPollInterval,
			},
			&cli.BoolFlag{
				Name:  "async",
				Usage: "Start the command without retries and wait on its handle",
			},
			&cli.BoolFlag{
				Name:  "no-fail",
				Usage: "Report a non-zero exit without failing",
			},
			&cli.BoolFlag{
				Name:  "prefix",
				Usage: "Tag streamed lines with [stdout] or [stderr]",
			},
			&cli.BoolFlag{
				Name:  "confirm",
				Usage: "Ask for confirmation before running",
			},
		},
		Action: runCommand,
	}
}

func runCommand(ctx context.Context, cmd *cli.Command) error {
	text := commandText(cmd.Args().Slice())
	if text == "" {
		return errors.CommandTextRequired()
	}

	env, err := parseEnv(cmd.StringSlice("env"))
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("confirm") {
		confirmed, err := confirmRun(text)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(errWriter(cmd), "Aborted.")
			return nil
		}
	}

	opts := []command.Option{
		command.WithRetries(cmd.Int("retries"), cmd.Duration("retry-delay")),
		command.WithPollInterval(cmd.Duration("poll-interval")),
		command.WithWorkDir(cmd.String("cwd")),
		command.WithExecutable(cmd.String("shell")),
	}
	switch {
	case cmd.Bool("clear-env"):
		if env == nil {
			env = map[string]string{}
		}
		opts = append(opts, command.WithEnv(env))
	case env != nil:
		opts = append(opts, command.WithEnv(env), command.WithInheritEnv())
	}
	if cmd.Bool("async") {
		opts = append(opts, command.NonBlocking())
	}

	return runWithExecutor(ctx, runNewExecutor(logger), command.New(text, opts...),
		outWriter(cmd), errWriter(cmd), runOptions{prefix: cmd.Bool("prefix"), noFail: cmd.Bool("no-fail")})
}

func runWithExecutor(
	ctx context.Context,
	executor command.Executor,
	c command.Command,
	w, ew io.Writer,
	opts runOptions,
) error {
	stdout := shellio.NewFlushingWriter(w)
	stderr := shellio.NewFlushingWriter(ew)
	c.StdoutHandlers = append(c.StdoutHandlers, shellio.LineWriter(stdout, shellio.Prefix("stdout", opts.prefix)))
	c.StderrHandlers = append(c.StderrHandlers, shellio.LineWriter(stderr, shellio.Prefix("stderr", opts.prefix)))

	started := time.Now()
	out, err := executor.Execute(ctx, c)

	if err == nil && out.Async != nil {
		err = out.Async.Wait(ctx, !opts.noFail)
		if err == nil && opts.noFail && out.Async.ExitCode() != 0 {
			err = &errors.AsyncShellCommandError{Command: c.Text, PID: out.Async.PID(), ExitCode: out.Async.ExitCode()}
		}
	}
	if err == nil {
		return nil
	}

	code, ok := errors.ExitCode(err)
	if !ok {
		return err
	}

	elapsed := time.Since(started).Round(time.Millisecond)
	if opts.noFail {
		fmt.Fprintf(stderr, "shellrun: command exited with code %d after %s (ignored)\n", code, elapsed)
		return nil
	}
	return cli.Exit(fmt.Sprintf("shellrun: command exited with code %d after %s", code, elapsed), exitStatus(code))
}

// exitStatus maps a command exit code to a process exit status. Signal
// deaths are reported as negative codes and map to 128+signal like a shell.
func exitStatus(code int) int {
	if code < 0 {
		return 128 - code
	}
	return code
}

// commandText joins the arguments after the "--" terminator into one line of
// shell text.
func commandText(args []string) string {
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	return strings.TrimSpace(strings.Join(args, " "))
}

// parseEnv parses NAME=value assignments. It returns nil when there are none.
func parseEnv(assignments []string) (map[string]string, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		name, value, ok := strings.Cut(assignment, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.InvalidEnvAssignment(assignment)
		}
		env[name] = value
	}
	return env, nil
}
