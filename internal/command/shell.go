package command

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/satococoa/shellrun/internal/errors"
)

// DefaultShell runs command text when no alternate executable is set.
const DefaultShell = "/bin/sh"

// lineSeparator terminates each line in accumulated output text.
var lineSeparator = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// argv returns the shell invocation for the command text.
func (c Command) argv() []string {
	if runtime.GOOS == "windows" {
		shell := c.Executable
		if shell == "" {
			shell = "cmd"
		}
		return []string{shell, "/c", c.Text}
	}

	shell := c.Executable
	if shell == "" {
		shell = DefaultShell
	}
	return []string{shell, "-c", c.Text}
}

// environ returns the child environment in exec.Cmd form. A nil result makes
// the child inherit the caller's environment.
func (c Command) environ() []string {
	if c.Env == nil {
		if c.InheritEnv {
			return os.Environ()
		}
		return nil
	}

	env := make([]string, 0, len(c.Env))
	if c.InheritEnv {
		env = append(env, os.Environ()...)
	}

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, c.Env[k]))
	}

	return env
}

// checkWorkDir fails fast on a working directory that does not exist.
func checkWorkDir(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return errors.WorkingDirectoryNotFound(dir, err)
	}
	if !info.IsDir() {
		return errors.WorkingDirectoryNotFound(dir, nil)
	}

	return nil
}

// decodeLine strips the line terminator and repairs invalid UTF-8.
func decodeLine(raw string) string {
	line := strings.TrimSuffix(raw, "\n")
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) {
		line = strings.ToValidUTF8(line, "\uFFFD")
	}
	return line
}

// trimOutput strips trailing newlines from accumulated output.
func trimOutput(text string) string {
	return strings.TrimRight(text, "\n")
}
