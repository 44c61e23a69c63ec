package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/buildwright/cpmschedule/internal/calendar"
	"github.com/buildwright/cpmschedule/internal/logging"
)

// ReloadEvent reports the outcome of a hot-reload triggered by a watched
// config file changing on disk.
type ReloadEvent struct {
	Timestamp time.Time
	Success   bool
	Error     error
	Config    Config
	Reason    string
}

// Manager loads Config from a fixed set of file paths and can watch those
// files for changes, re-running Load and invoking a callback on every
// write event.
type Manager struct {
	paths  []string
	logger *logging.Logger

	mu     sync.RWMutex
	config Config

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
}

// NewManager returns a Manager that loads from paths.
func NewManager(logger *logging.Logger, paths ...string) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{paths: paths, logger: logger}
}

// Load reads and parses the configured paths, storing the result as the
// manager's current config.
func (m *Manager) Load() (Config, error) {
	cfg, err := Load(m.paths...)
	if err != nil {
		return cfg, err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Current returns the most recently loaded config.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Calendar builds a calendar.Calendar from the current config's working-day
// list.
func (m *Manager) Calendar() (*calendar.Calendar, error) {
	return m.Current().BuildCalendar()
}

// StartWatch begins watching the manager's config paths for writes,
// reloading and invoking callback on every change. It returns an error if a
// watch is already active.
func (m *Manager) StartWatch(callback func(ReloadEvent)) error {
	if m.watcher != nil {
		return fmt.Errorf("config watch already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	for _, path := range m.paths {
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return fmt.Errorf("watch config file %q: %w", path, err)
		}
	}

	m.watcher = watcher
	m.stopChan = make(chan struct{})
	go m.watchLoop(callback)
	m.logger.Info("config hot-reload enabled", "paths", m.paths)
	return nil
}

// StopWatch stops a watch started by StartWatch. It is a no-op if no watch
// is active.
func (m *Manager) StopWatch() {
	if m.watcher == nil {
		return
	}
	close(m.stopChan)
	m.watcher.Close()
	m.watcher = nil
}

func (m *Manager) watchLoop(callback func(ReloadEvent)) {
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) {
				m.reload(callback, ev.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("config watcher error", "error", err)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) reload(callback func(ReloadEvent), reason string) {
	cfg, err := m.Load()
	event := ReloadEvent{Timestamp: time.Now(), Reason: reason}
	if err != nil {
		event.Success = false
		event.Error = err
		m.logger.Error("config reload failed", "error", err)
	} else {
		event.Success = true
		event.Config = cfg
		m.logger.Info("config reloaded", "reason", reason)
	}
	if callback != nil {
		callback(event)
	}
}
