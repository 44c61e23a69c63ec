// Command schedule computes the critical path for a construction task list
// and prints or writes the scheduled result, optionally watching a calendar
// config file for hot-reload.
package main

import (
	"fmt"
	"os"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "schedule: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}
