package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/satococoa/shellrun/internal/logging"
)

// newLogger builds the diagnostic logger from the global flags. Records go to
// the error writer so they never mix with streamed command output.
func newLogger(cmd *cli.Command) (logging.Logger, error) {
	level, err := logging.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return nil, err
	}
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}

	format, err := logging.ParseFormat(cmd.String("log-format"))
	if err != nil {
		return nil, err
	}

	return logging.New(errWriter(cmd), logging.Options{Level: level, Format: format}), nil
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
