package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/satococoa/shellrun/internal/config"
	"github.com/satococoa/shellrun/internal/errors"
)

const configFileMode = 0o600

// Variable to allow mocking in tests
var osGetwd = os.Getwd

const yamlTemplate = `# shellrun configuration
version: "1.0"

# Settings applied to every task
defaults:
  # Number of attempts for a failing command
  max_retries: 1

  # Delay between attempts (duration string or seconds)
  retry_delay: 1s

  # Variables layered over the current environment
  # env:
  #   CI: "true"

tasks:
  # Example: a plain task
  hello:
    description: Print a greeting
    command: echo "hello from $SHELLRUN_TASK"

  # Example: retry a flaky step and run it after hello
  check:
    description: Retry a flaky check
    command: test -d .
    max_retries: 3
    retry_delay: 2s
    depends_on: [hello]

  # More examples (commented out):
  # serve:
  #   command: python3 -m http.server
  #   blocking: false
  # build:
  #   command: make build
  #   work_dir: ./backend
`

// NewInitCommand creates the init command definition
func NewInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize configuration file",
		Description: "Creates a .shellrun.yml configuration file in the current directory " +
			"with example tasks and settings.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing configuration file",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Configuration format: yaml or toml",
				Value: "yaml",
			},
		},
		Action: initCommand,
	}
}

func initCommand(_ context.Context, cmd *cli.Command) error {
	cwd, err := osGetwd()
	if err != nil {
		return errors.DirectoryAccessFailed("access current", ".", err)
	}

	format := strings.ToLower(cmd.String("format"))
	var configPath string
	switch format {
	case "yaml", "yml":
		configPath = filepath.Join(cwd, config.ConfigFileName)
	case "toml":
		configPath = filepath.Join(cwd, config.TOMLConfigFileName)
	default:
		return fmt.Errorf("unsupported configuration format '%s', must be 'yaml' or 'toml'", format)
	}

	if _, err := os.Stat(configPath); err == nil && !cmd.Bool("force") {
		return errors.ConfigAlreadyExists(configPath)
	}

	if format == "toml" {
		// TOML has no comment-preserving encoder, so the sample is written from a value
		if err := config.SaveConfigFile(configPath, sampleConfig()); err != nil {
			return errors.DirectoryAccessFailed("create configuration file", configPath, err)
		}
	} else if err := os.WriteFile(configPath, []byte(yamlTemplate), configFileMode); err != nil {
		return errors.DirectoryAccessFailed("create configuration file", configPath, err)
	}

	w := outWriter(cmd)
	fmt.Fprintf(w, "Configuration file created: %s\n", configPath)
	fmt.Fprintln(w, "Edit this file to define your tasks, then run 'shellrun task --list'.")
	return nil
}

func sampleConfig() *config.Config {
	return &config.Config{
		Version: config.CurrentVersion,
		Defaults: config.Defaults{
			MaxRetries: 1,
			RetryDelay: config.NewDuration(time.Second),
		},
		Tasks: map[string]config.Task{
			"hello": {
				Description: "Print a greeting",
				Command:     `echo "hello from $SHELLRUN_TASK"`,
			},
			"check": {
				Description: "Retry a flaky check",
				Command:     "test -d .",
				MaxRetries:  3,
				RetryDelay:  config.NewDuration(2 * time.Second),
				DependsOn:   []string{"hello"},
			},
		},
	}
}
