package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buildwright/cpmschedule/internal/logging"
)

func TestManagerLoadPopulatesCurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("runBudgetSeconds: 9\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := NewManager(logging.New("[test] "), path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RunBudgetSeconds != 9 {
		t.Errorf("expected RunBudgetSeconds 9, got %d", cfg.RunBudgetSeconds)
	}
	if m.Current().RunBudgetSeconds != 9 {
		t.Errorf("expected Current() to reflect the load, got %+v", m.Current())
	}
}

func TestManagerStartWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("runBudgetSeconds: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := NewManager(logging.New("[test] "), path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	events := make(chan ReloadEvent, 4)
	if err := m.StartWatch(func(e ReloadEvent) { events <- e }); err != nil {
		t.Fatalf("start watch: %v", err)
	}
	defer m.StopWatch()

	if err := os.WriteFile(path, []byte("runBudgetSeconds: 42\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case e := <-events:
		if !e.Success {
			t.Fatalf("expected successful reload, got error %v", e.Error)
		}
		if e.Config.RunBudgetSeconds != 42 {
			t.Errorf("expected reloaded RunBudgetSeconds 42, got %d", e.Config.RunBudgetSeconds)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a reload event")
	}
}
