// Package config loads engine configuration from layered sources: compiled
// defaults, an optional YAML file, then environment variables, the same
// overlay order the rest of the stack's configuration loaders use.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/goccy/go-yaml"

	"github.com/buildwright/cpmschedule/internal/calendar"
)

// Config is the engine's runtime configuration.
type Config struct {
	// ProjectStart seeds PS when no task anchors it; RFC3339 date, e.g.
	// "2024-01-01".
	ProjectStart string `yaml:"projectStart" env:"SCHED_PROJECT_START"`

	// WorkingDays lists the weekday names (English, case-insensitive) the
	// default calendar treats as working days.
	WorkingDays []string `yaml:"workingDays" env:"SCHED_WORKING_DAYS" envSeparator:","`

	// RunBudgetSeconds is loaded and validated as a number only; nothing
	// applies it. The controller's slow-run warning uses its fixed
	// controller.RunBudget of 5 seconds.
	RunBudgetSeconds int `yaml:"runBudgetSeconds" env:"SCHED_RUN_BUDGET_SECONDS"`

	// LogLevel and LogFormat mirror internal/logging's own env vars so a
	// single config file can set them alongside scheduling options.
	LogLevel  string `yaml:"logLevel" env:"SCHED_LOG_LEVEL"`
	LogFormat string `yaml:"logFormat" env:"SCHED_LOG_FORMAT"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		WorkingDays:      []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		RunBudgetSeconds: 5,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load builds a Config starting from defaults, overlaying each YAML file in
// order (missing files are skipped, not an error), then overlaying
// environment variables, which always win.
func Load(paths ...string) (Config, error) {
	cfg := Default()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.ProjectStart == "" {
		cfg.ProjectStart = time.Now().UTC().Format("2006-01-02")
	}

	return cfg, nil
}

// ProjectStartDate parses ProjectStart as a calendar date.
func (c Config) ProjectStartDate() (time.Time, error) {
	d, err := time.Parse("2006-01-02", c.ProjectStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid projectStart %q: %w", c.ProjectStart, err)
	}
	return d, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WorkingDaysMap converts WorkingDays into the map calendar.New expects,
// rejecting any name that isn't a recognized English weekday.
func (c Config) WorkingDaysMap() (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool, len(c.WorkingDays))
	for _, name := range c.WorkingDays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unrecognized working day %q", name)
		}
		days[wd] = true
	}
	return days, nil
}

// BuildCalendar constructs the calendar.Calendar described by WorkingDays.
func (c Config) BuildCalendar() (*calendar.Calendar, error) {
	days, err := c.WorkingDaysMap()
	if err != nil {
		return nil, err
	}
	return calendar.New(days)
}
