package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/satococoa/shellrun/internal/config"
	"github.com/satococoa/shellrun/internal/errors"
	"github.com/satococoa/shellrun/internal/tasks"
)

const maxCommandWidth = 48

// Variable to allow mocking in tests
var taskGetwd = os.Getwd

// NewTaskCommand creates the task command definition
func NewTaskCommand() *cli.Command {
	return &cli.Command{
		Name:      "task",
		Usage:     "Run a task defined in the configuration file",
		UsageText: "shellrun task [options] <task-name>",
		ArgsUsage: "<task-name>",
		Description: "Runs a named task from .shellrun.yml (or .shellrun.toml) after the tasks it " +
			"depends on, streaming their output.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List configured tasks",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file",
			},
			&cli.BoolFlag{
				Name:  "prefix",
				Usage: "Tag streamed lines with the task name",
			},
		},
		ShellComplete: completeTasks,
		Action:        taskCommand,
	}
}

func taskCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadTaskConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	w := outWriter(cmd)
	if cmd.Bool("list") {
		return listTasks(w, cfg)
	}

	name := strings.TrimSpace(cmd.Args().First())
	if name == "" {
		return errors.TaskNameRequired()
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	runner := tasks.NewRunner(cfg, runNewExecutor(logger), logger)
	outcomes, err := runner.Run(ctx, w, name, tasks.Options{PrefixOutput: cmd.Bool("prefix")})
	printOutcomes(w, outcomes)
	if err != nil {
		if code, ok := errors.ExitCode(err); ok {
			return cli.Exit(err.Error(), exitStatus(code))
		}
		return err
	}

	return nil
}

func loadTaskConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, errors.ConfigLoadFailed(path, err)
		}
		return cfg, nil
	}

	cwd, err := taskGetwd()
	if err != nil {
		return nil, errors.DirectoryAccessFailed("access current", ".", err)
	}

	cfg, err := config.LoadConfig(cwd)
	if err != nil {
		return nil, errors.ConfigLoadFailed(cwd, err)
	}
	return cfg, nil
}

func listTasks(w io.Writer, cfg *config.Config) error {
	if !cfg.HasTasks() {
		fmt.Fprintln(w, "No tasks configured.")
		return nil
	}

	names := cfg.TaskNames()
	nameWidth := len("TASK")
	commandWidth := len("COMMAND")
	for _, name := range names {
		nameWidth = max(nameWidth, len(name))
		commandWidth = max(commandWidth, len([]rune(truncate(cfg.Tasks[name].Command, maxCommandWidth))))
	}

	fmt.Fprintf(w, "%-*s  %-*s  %s\n", nameWidth, "TASK", commandWidth, "COMMAND", "DESCRIPTION")
	fmt.Fprintf(w, "%-*s  %-*s  %s\n", nameWidth, "----", commandWidth, "-------", "-----------")
	for _, name := range names {
		task := cfg.Tasks[name]
		fmt.Fprintf(w, "%-*s  %-*s  %s\n", nameWidth, name, commandWidth, truncate(task.Command, maxCommandWidth), task.Description)
	}
	return nil
}

func printOutcomes(w io.Writer, outcomes []tasks.Outcome) {
	for _, o := range outcomes {
		mark := "✓"
		if o.ExitCode != 0 {
			mark = "✗"
		}
		attempts := "1 attempt"
		if o.Attempts != 1 {
			attempts = fmt.Sprintf("%d attempts", o.Attempts)
		}
		fmt.Fprintf(w, "%s %s (exit %d, %s, %s)\n", mark, o.Task, o.ExitCode, attempts, o.Elapsed.Round(time.Millisecond))
	}
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= width {
		return s
	}
	return string([]rune(s)[:width-1]) + "…"
}

func completeTasks(_ context.Context, cmd *cli.Command) {
	cfg, err := loadTaskConfig(cmd.String("config"))
	if err != nil {
		return
	}
	for _, name := range cfg.TaskNames() {
		fmt.Fprintln(outWriter(cmd), name)
	}
}
