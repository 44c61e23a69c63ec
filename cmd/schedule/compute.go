package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/buildwright/cpmschedule/internal/calendar"
	"github.com/buildwright/cpmschedule/internal/config"
	"github.com/buildwright/cpmschedule/internal/controller"
	"github.com/buildwright/cpmschedule/internal/interchange"
	"github.com/buildwright/cpmschedule/internal/logging"
	"github.com/buildwright/cpmschedule/internal/schederr"
	"github.com/buildwright/cpmschedule/internal/task"
)

const formatJSON = "json"
const formatMSProjectXML = "msproject-xml"

func inferFormat(explicit, path string) string {
	if explicit != "" {
		return explicit
	}
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return formatMSProjectXML
	}
	return formatJSON
}

func decodeInput(format string, data []byte) ([]task.Task, *calendar.Calendar, error) {
	switch format {
	case formatMSProjectXML:
		return interchange.DecodeMSProjectXML(data)
	case formatJSON:
		return interchange.DecodeJSON(data)
	default:
		return nil, nil, fmt.Errorf("unknown format %q (want %q or %q)", format, formatJSON, formatMSProjectXML)
	}
}

func runCompute(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file argument")
	}
	inputPath := c.Args().Get(0)
	format := inferFormat(c.String(fFormat), inputPath)

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	tasks, cal, err := decodeInput(format, data)
	if err != nil {
		return err
	}

	var configPaths []string
	if p := c.Path(fConfig); p != "" {
		configPaths = append(configPaths, p)
	}
	mgr := config.NewManager(nil, configPaths...)
	cfg, err := mgr.Load()
	if err != nil {
		return err
	}
	applyLogEnvDefaults(cfg)
	logger := logging.New("[schedule] ")

	ctrl := controller.New(cal, logger)
	defer ctrl.Close()

	if start, err := cfg.ProjectStartDate(); err == nil {
		ctrl.SetProjectStart(start)
	}

	tasksCh := ctrl.Tasks()

	ctx := context.Background()
	if err := ctrl.SyncTasks(ctx, tasks); err != nil {
		return err
	}

	scheduled, err := waitForSnapshot(tasksCh, 10*time.Second)
	if err != nil {
		return err
	}

	if c.Bool(fWatch) && len(configPaths) > 0 {
		return watchAndServe(c, mgr, ctrl, tasksCh, scheduled, cal, format)
	}

	return emit(c, scheduled, cal, format)
}

func applyLogEnvDefaults(cfg config.Config) {
	if os.Getenv("SCHED_LOG_LEVEL") == "" && cfg.LogLevel != "" {
		os.Setenv("SCHED_LOG_LEVEL", cfg.LogLevel)
	}
	if os.Getenv("SCHED_LOG_FORMAT") == "" && cfg.LogFormat != "" {
		os.Setenv("SCHED_LOG_FORMAT", cfg.LogFormat)
	}
}

func waitForSnapshot(ch <-chan []task.Task, timeout time.Duration) ([]task.Task, error) {
	select {
	case snap := <-ch:
		return snap, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out waiting for the scheduler to produce a result")
	}
}

func emit(c *cli.Context, tasks []task.Task, cal *calendar.Calendar, format string) error {
	var out []byte
	var err error
	switch format {
	case formatMSProjectXML:
		out, err = interchange.EncodeMSProjectXML(tasks, cal)
	default:
		out, err = interchange.EncodeJSON(tasks, cal)
	}
	if err != nil {
		return err
	}

	if outPath := c.Path(fOut); outPath != "" {
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	} else {
		fmt.Fprintln(c.App.Writer, string(out))
	}

	printCriticalPathSummary(c.App.ErrWriter, tasks)
	return nil
}

func watchAndServe(c *cli.Context, mgr *config.Manager, ctrl *controller.Controller, tasksCh <-chan []task.Task, initial []task.Task, cal *calendar.Calendar, format string) error {
	if err := emit(c, initial, cal, format); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "watching config for changes (ctrl-c to stop)...\n")

	if err := mgr.StartWatch(func(ev config.ReloadEvent) {
		if !ev.Success {
			fmt.Fprintf(c.App.ErrWriter, "config reload failed: %v\n", ev.Error)
			return
		}
		newCal, err := ev.Config.BuildCalendar()
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "config reload produced an invalid calendar: %v\n", err)
			return
		}
		if err := ctrl.UpdateCalendar(context.Background(), newCal); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "failed to apply reloaded calendar: %v\n", err)
		}
	}); err != nil {
		return err
	}
	defer mgr.StopWatch()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case snap := <-tasksCh:
			fmt.Fprintf(c.App.ErrWriter, "calendar changed, rescheduled %d tasks\n", len(snap))
			printCriticalPathSummary(c.App.ErrWriter, snap)
		case <-sigCh:
			return nil
		}
	}
}

type coder interface{ Code() schederr.Code }

func exitCodeFor(err error) int {
	var c coder
	if errors.As(err, &c) {
		switch c.Code() {
		case schederr.CodeValidation:
			return 2
		case schederr.CodeCycle:
			return 3
		case schederr.CodeConstraintInfeasible:
			return 4
		case schederr.CodeCalendarExhausted:
			return 5
		case schederr.CodeConfig:
			return 6
		}
	}
	return 1
}
