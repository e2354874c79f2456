package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/urfave/cli/v3"
)

const defaultVersion = "dev"

// Version information (set by GoReleaser)
var (
	version = defaultVersion
	_       = "none"    // commit - set by GoReleaser but not used
	_       = "unknown" // date - set by GoReleaser but not used
)

var readBuildInfo = debug.ReadBuildInfo

func main() {
	initVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := createApp()
	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			if msg := exitErr.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			stop()
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		stop()
		os.Exit(1)
	}
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:  "shellrun",
		Usage: "Run shell commands with live output, retries, and named tasks",
		Description: "shellrun launches shell commands, streams their stdout and stderr line by line " +
			"while they run, retries failures, and runs project tasks defined in .shellrun.yml.",
		Version:               version,
		EnableShellCompletion: true,

		// Environment values may contain commas
		DisableSliceFlagSeparator: true,

		// Exit codes are mapped in main so tests can inspect them
		ExitErrHandler: func(context.Context, *cli.Command, error) {},

		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log command diagnostics at debug level",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Diagnostic log level: debug, info, warn, error, off",
				Value: "off",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Diagnostic log format: text or json",
				Value: "text",
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewTaskCommand(),
			NewInitCommand(),
		},
	}
}

func initVersion() {
	if version != defaultVersion {
		return
	}

	info, ok := readBuildInfo()
	if !ok || info == nil {
		return
	}

	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return
	}

	version = info.Main.Version
}
