package main

import (
	"os"

	"github.com/urfave/cli/v2"
)

const (
	fFormat = "format"
	fOut    = "out"
	fWatch  = "watch"
	fConfig = "config"
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "schedule",
		Usage:     "compute and print the critical path for a construction task list",
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,

		Commands: []*cli.Command{
			{
				Name:      "compute",
				Usage:     "schedule a task list and print the critical path",
				ArgsUsage: "<input-file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: fFormat, Usage: "input/output format: json or msproject-xml (default: inferred from file extension)"},
					&cli.PathFlag{Name: fOut, Usage: "write the scheduled result to this file instead of stdout"},
					&cli.PathFlag{Name: fConfig, Usage: "calendar/engine config file (YAML)"},
					&cli.BoolFlag{Name: fWatch, Usage: "watch the config file and republish the calendar on edit"},
				},
				Action: runCompute,
			},
		},
	}
}
