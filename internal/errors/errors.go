package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common error messages with helpful context and suggestions

// Validation Errors
func CommandTextRequired() error {
	msg := `command text is required

Usage: shellrun run [options] -- <command>

Examples:
  • shellrun run -- 'make test'
  • shellrun run --retries 3 --retry-delay 2s -- './flaky.sh'
  • shellrun run --async -- 'tail -n 20 build.log'`
	return errors.New(msg)
}

func TaskNameRequired() error {
	msg := `task name is required

Usage: shellrun task <task-name>

Tip: Run 'shellrun task --list' to see configured tasks`
	return errors.New(msg)
}

func InvalidEnvAssignment(assignment string) error {
	msg := fmt.Sprintf(`invalid environment assignment: '%s'

Expected format: NAME=value

Examples:
  • shellrun run -e GOFLAGS=-count=1 -- 'go test ./...'
  • shellrun run -e EMPTY= -- 'env'`, assignment)
	return errors.New(msg)
}

// Task Errors
func TaskNotFound(name string, availableTasks []string) error {
	msg := fmt.Sprintf("task '%s' not found", name)

	if len(availableTasks) > 0 {
		msg += "\n\nAvailable tasks:"
		for _, task := range availableTasks {
			msg += fmt.Sprintf("\n  • %s", task)
		}
	} else {
		msg += "\n\nNo tasks configured."
	}

	msg += "\n\nTip: Define tasks under 'tasks:' in .shellrun.yml"
	return errors.New(msg)
}

// TaskFailed decorates a failed task run with hints. The original error stays
// in the chain so exit codes can still be extracted.
func TaskFailed(name string, originalError error) error {
	msg := fmt.Sprintf("task '%s' failed", name)

	errorStr := originalError.Error()
	if code, ok := ExitCode(originalError); (ok && code == 127) || strings.Contains(errorStr, "command not found") {
		msg += `

Cause: Command not found
Solutions:
  • Install the required command
  • Check command spelling in .shellrun.yml
  • Use full path to command`
	} else if strings.Contains(errorStr, "permission denied") {
		msg += `

Cause: Permission denied
Solutions:
  • Check file permissions
  • Ensure the script is executable`
	} else if KindOf(originalError) == KindConfiguration {
		msg += `

Cause: Invalid task configuration
Solution: Check the task's work_dir and shell in .shellrun.yml`
	}

	return fmt.Errorf("%s\n\nOriginal error: %w", msg, originalError)
}

// Configuration Errors
func ConfigLoadFailed(configPath string, parseError error) error {
	msg := fmt.Sprintf("failed to load configuration from '%s'", configPath)

	parseErrorStr := parseError.Error()
	if strings.Contains(parseErrorStr, "yaml") || strings.Contains(parseErrorStr, "unmarshal") {
		msg += `

Cause: YAML syntax error in configuration file
Solutions:
  • Check YAML syntax and indentation
  • Run 'shellrun init --force' to recreate the configuration`
	} else if strings.Contains(parseErrorStr, "toml") {
		msg += `

Cause: TOML syntax error in configuration file
Solution: Check key names and quoting in the configuration`
	} else if strings.Contains(parseErrorStr, "no such file") {
		msg += `

Cause: Configuration file does not exist
Solution: Run 'shellrun init' to create a configuration file`
	} else if strings.Contains(parseErrorStr, "permission denied") {
		msg += `

Cause: Permission denied reading configuration file
Solution: Check file permissions with 'ls -la .shellrun.yml'`
	}

	msg += fmt.Sprintf("\n\nOriginal error: %v", parseError)
	return errors.New(msg)
}

func ConfigAlreadyExists(configPath string) error {
	msg := fmt.Sprintf(`configuration file already exists: %s

Options:
  • Edit the existing file manually
  • Use 'shellrun init --force' to overwrite it`, configPath)
	return errors.New(msg)
}

// File System Errors
func DirectoryAccessFailed(operation, path string, originalError error) error {
	msg := fmt.Sprintf("failed to %s directory: %s", operation, path)

	errorStr := originalError.Error()
	if strings.Contains(errorStr, "permission denied") {
		msg += `

Cause: Permission denied
Solutions:
  • Check directory permissions
  • Ensure you own the directory`
	} else if strings.Contains(errorStr, "no such file or directory") {
		msg += `

Cause: Directory does not exist
Solutions:
  • Check the path spelling
  • Use an absolute path`
	}

	msg += fmt.Sprintf("\n\nOriginal error: %v", originalError)
	return errors.New(msg)
}
